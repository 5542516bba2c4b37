package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/event"
	"github.com/mkykode/agentcrew/internal/session"
	"github.com/mkykode/agentcrew/internal/supervisor"
	"github.com/mkykode/agentcrew/internal/util"
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 100

// printer renders command output. Colors are only emitted when the writer is
// a color-capable terminal.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	width int

	header  lipgloss.Style
	muted   lipgloss.Style
	errText lipgloss.Style
	status  map[agent.Status]lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)

	width := defaultWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = tw
		}
	}

	return &printer{
		w:       w,
		width:   width,
		header:  r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		errText: r.NewStyle().Foreground(lipgloss.Color("196")),
		status: map[agent.Status]lipgloss.Style{
			agent.StatusIdle:       r.NewStyle().Foreground(lipgloss.Color("245")),
			agent.StatusRunning:    r.NewStyle().Foreground(lipgloss.Color("42")),
			agent.StatusPaused:     r.NewStyle().Foreground(lipgloss.Color("214")),
			agent.StatusFailed:     r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			agent.StatusTerminated: r.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, args...)
}

// statusLabel pads before styling so columns stay aligned with colors on.
func (p *printer) statusLabel(s agent.Status) string {
	label := fmt.Sprintf("%-10s", s)
	if style, ok := p.status[s]; ok {
		return style.Render(label)
	}
	return label
}

// agentRow prints one agent line: id, provider, status and a detail column
// cut to the remaining width.
func (p *printer) agentRow(idWidth int, snap agent.Snapshot, detail string, failed bool) {
	row := fmt.Sprintf("  %-*s  %-7s  %s", idWidth, snap.ID, snap.Provider, p.statusLabel(snap.Status))
	if detail != "" {
		room := max(p.width-idWidth-26, 20)
		detail = util.Preview(detail, room)
		if failed {
			detail = p.errText.Render(detail)
		} else {
			detail = p.muted.Render(detail)
		}
		row += "  " + detail
	}
	p.println(row)
}

// report prints the result of a deployment.
func (p *printer) report(report *supervisor.Report, sess *session.Session) {
	bound := "unbounded"
	if report.MaxConcurrency > 0 {
		bound = fmt.Sprintf("max %d at once", report.MaxConcurrency)
	}
	p.println(p.header.Render(fmt.Sprintf("Deployed %s (%s, peak %d) in %s",
		util.Plural(len(report.Outcomes), "agent"), bound, report.PeakConcurrency,
		report.Duration.Round(time.Millisecond))))

	idWidth := 0
	for _, o := range report.Outcomes {
		idWidth = max(idWidth, len(o.AgentID))
	}
	for _, o := range report.Outcomes {
		snap := agent.Snapshot{ID: o.AgentID, Provider: o.Provider, Status: o.Status}
		if o.Err != nil {
			p.agentRow(idWidth, snap, o.Err.Error(), true)
			continue
		}
		p.agentRow(idWidth, snap, o.Response, false)
	}

	summary := fmt.Sprintf("%d succeeded, %d failed", report.Succeeded(), report.Failed())
	if report.Failed() > 0 {
		summary = p.errText.Render(summary)
	}
	p.println(summary)
	if sess != nil {
		p.println(p.muted.Render("Session: " + sess.ID))
	}
}

// session prints the agents of a stored session.
func (p *printer) session(sess *session.Session, agents []agent.Snapshot) {
	name := sess.Name
	if name == "" {
		name = "(unnamed)"
	}
	p.println(p.header.Render(fmt.Sprintf("Session %s  %s", sess.ID, name)))
	p.printf("Created:  %s\n", sess.Created.Format("2006-01-02 15:04:05"))
	if sess.Prompt != "" {
		p.printf("Prompt:   %s\n", util.Truncate(util.FirstLine(sess.Prompt), p.width-10))
	}
	p.printf("Agents:   %s\n\n", formatCounts(sess.StatusCounts(), len(sess.Agents)))

	if len(agents) == 0 {
		p.println("No matching agents.")
		return
	}

	idWidth := 0
	for _, a := range agents {
		idWidth = max(idWidth, len(a.ID))
	}
	for _, a := range agents {
		res, _ := sess.Result(a.ID)
		if res.Error != "" {
			p.agentRow(idWidth, a, res.Error, true)
			continue
		}
		p.agentRow(idWidth, a, res.Response, false)
	}
}

// agentDetail prints everything recorded about one agent.
func (p *printer) agentDetail(a agent.Snapshot, res session.Result) {
	p.println(p.header.Render(a.ID))
	p.printf("  Provider:     %s\n", a.Provider)
	if a.Name != "" {
		p.printf("  Name:         %s\n", a.Name)
	}
	if a.Model != "" {
		p.printf("  Model:        %s\n", a.Model)
	}
	p.printf("  Status:       %s\n", p.statusLabel(a.Status))
	if a.WorktreePath != "" {
		p.printf("  Worktree:     %s\n", a.WorktreePath)
	}

	caps := make([]string, 0, 5)
	for _, c := range a.Capabilities.List() {
		caps = append(caps, string(c))
	}
	p.printf("  Capabilities: %s\n", strings.Join(caps, ", "))
	p.printf("  Created:      %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
	p.printf("  Last active:  %s\n", a.LastActive.Format("2006-01-02 15:04:05"))
	p.printf("  Messages:     %d\n", a.MessageCount)
	if res.Attempts > 0 {
		p.printf("  Attempts:     %d\n", res.Attempts)
	}
	if res.Error != "" {
		p.printf("  Error:        %s\n", p.errText.Render(res.Error))
	}
	if res.Response != "" {
		p.println()
		p.println(res.Response)
	}
}

// event prints a lifecycle event as a single progress line. The bus calls it
// from agent goroutines.
func (p *printer) event(e event.Event) {
	ts := p.muted.Render(e.Timestamp().Format("15:04:05.000"))
	switch ev := e.(type) {
	case event.DeploymentStartedEvent:
		p.printf("%s deployment %s started with %s\n", ts, ev.DeploymentID, util.Plural(ev.AgentCount, "agent"))
	case event.AgentCreatedEvent:
		p.printf("%s %s created (%s)\n", ts, ev.AgentID, ev.Provider)
	case event.AgentStatusChangedEvent:
		p.printf("%s %s %s -> %s\n", ts, ev.AgentID, ev.From, p.statusLabel(agent.Status(ev.To)))
	case event.AgentRespondedEvent:
		if ev.Success {
			p.printf("%s %s responded after %s\n", ts, ev.AgentID, util.Plural(ev.Attempts, "attempt"))
		} else {
			p.printf("%s %s %s\n", ts, ev.AgentID, p.errText.Render("failed: "+ev.Error))
		}
	case event.BatchCompletedEvent:
		p.printf("%s %s batch %d done (%d/%d ok)\n", ts, ev.Phase, ev.Batch+1, ev.Size-ev.Failed, ev.Size)
	case event.DeploymentCompletedEvent:
		p.printf("%s deployment %s finished in %s\n", ts, ev.DeploymentID, ev.Duration.Round(time.Millisecond))
	}
}

// formatCounts renders status counts in lifecycle order, e.g.
// "3 (2 running, 1 failed)".
func formatCounts(counts map[agent.Status]int, total int) string {
	order := []agent.Status{
		agent.StatusIdle,
		agent.StatusRunning,
		agent.StatusPaused,
		agent.StatusFailed,
		agent.StatusTerminated,
	}
	var parts []string
	for _, s := range order {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprint(total)
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", "))
}
