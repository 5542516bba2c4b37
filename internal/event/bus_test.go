package event

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/logging"
)

// nopTransport accepts every call.
type nopTransport struct{}

func (nopTransport) Open(ctx context.Context) error                     { return nil }
func (nopTransport) Send(ctx context.Context, s string) (string, error) { return s, nil }
func (nopTransport) Close() error                                       { return nil }

// publishingAgent returns an idle agent whose transitions are published on bus
// the way the supervisor wires them.
func publishingAgent(t *testing.T, bus *Bus, id string) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{ID: id, Provider: "claude", Transport: nopTransport{}})
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}
	a.SetObserver(func(tr agent.Transition) {
		bus.Publish(NewAgentStatusChangedEvent(tr.AgentID, tr.Seq, string(tr.From), string(tr.To), tr.Reason))
	})
	return a
}

// statusLog collects status-changed events from any goroutine.
type statusLog struct {
	mu     sync.Mutex
	events []AgentStatusChangedEvent
}

func (l *statusLog) handle(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e.(AgentStatusChangedEvent))
}

func (l *statusLog) forAgent(id string) []AgentStatusChangedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []AgentStatusChangedEvent
	for _, e := range l.events {
		if e.AgentID == id {
			out = append(out, e)
		}
	}
	return out
}

func TestBus_AgentLifecycle(t *testing.T) {
	bus := NewBus(nil)
	log := &statusLog{}
	bus.Subscribe(TypeAgentStatusChanged, log.handle)

	a := publishingAgent(t, bus, "claude-1")
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = a.Pause()
	_ = a.Resume()
	_ = a.Terminate()
	// no transition, no event
	_ = a.Terminate()

	want := []string{
		"1 idle->running",
		"2 running->paused",
		"3 paused->running",
		"4 running->terminated",
	}
	var got []string
	for _, e := range log.forAgent("claude-1") {
		got = append(got, fmt.Sprintf("%d %s->%s", e.Seq, e.From, e.To))
		if e.Timestamp().IsZero() {
			t.Errorf("event %d has no timestamp", e.Seq)
		}
	}
	if !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestBus_ConcurrentAgents(t *testing.T) {
	bus := NewBus(nil)
	log := &statusLog{}
	bus.Subscribe(TypeAgentStatusChanged, log.handle)

	const agents = 12
	var wg sync.WaitGroup
	for i := range agents {
		a := publishingAgent(t, bus, fmt.Sprintf("openai-%d", i))
		wg.Go(func() {
			_ = a.Initialize(context.Background())
			// Pause and Terminate race; both may or may not apply.
			var inner sync.WaitGroup
			inner.Go(func() { _ = a.Pause() })
			inner.Go(func() { _ = a.Terminate() })
			inner.Wait()
		})
	}
	wg.Wait()

	for i := range agents {
		id := fmt.Sprintf("openai-%d", i)
		events := log.forAgent(id)
		slices.SortFunc(events, func(x, y AgentStatusChangedEvent) int { return int(x.Seq) - int(y.Seq) })

		// Sorted by Seq, each event starts where the previous one ended.
		prev := string(agent.StatusIdle)
		for n, e := range events {
			if e.Seq != uint64(n+1) {
				t.Errorf("%s: seq %d at position %d", id, e.Seq, n)
			}
			if e.From != prev {
				t.Errorf("%s: event %d from %s, previous ended at %s", id, e.Seq, e.From, prev)
			}
			prev = e.To
		}
		if prev != string(agent.StatusTerminated) {
			t.Errorf("%s: last status %s, want terminated", id, prev)
		}
	}
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus(nil)

	var calls []string
	bus.SubscribeAll(func(e Event) { calls = append(calls, "progress:"+e.EventType()) })
	bus.Subscribe(TypeDeploymentCompleted, func(e Event) { calls = append(calls, "report") })
	bus.Subscribe(TypeDeploymentCompleted, func(e Event) { calls = append(calls, "session") })

	bus.Publish(NewDeploymentStartedEvent("dep-1", 3, 2))
	bus.Publish(NewDeploymentCompletedEvent("dep-1", 3, 0, 2, time.Second))

	want := []string{
		"progress:" + TypeDeploymentStarted,
		"report",
		"session",
		"progress:" + TypeDeploymentCompleted,
	}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var progress, report int
	progressID := bus.SubscribeAll(func(e Event) { progress++ })
	bus.Subscribe(TypeBatchCompleted, func(e Event) { report++ })

	if progressID == "" {
		t.Fatal("SubscribeAll() returned an empty id")
	}
	bus.Publish(NewBatchCompletedEvent("dep-1", PhaseInitialize, 0, 2, 0))

	if !bus.Unsubscribe(progressID) {
		t.Fatal("Unsubscribe() = false for a live subscription")
	}
	if bus.Unsubscribe(progressID) {
		t.Error("Unsubscribe() = true for an already removed subscription")
	}
	bus.Publish(NewBatchCompletedEvent("dep-1", PhaseDispatch, 0, 2, 1))

	if progress != 1 || report != 2 {
		t.Errorf("progress = %d, report = %d; want 1 and 2", progress, report)
	}
}

func TestBus_HandlerPanicIsLogged(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewRotatingLogger(dir, "debug", logging.RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewRotatingLogger() error = %v", err)
	}
	bus := NewBus(logger)

	delivered := 0
	bus.Subscribe(TypeAgentResponded, func(e Event) { panic("printer closed") })
	bus.Subscribe(TypeAgentResponded, func(e Event) { delivered++ })

	bus.Publish(NewAgentRespondedEvent("google-1", false, 3, "rate limited"))
	_ = logger.Close()

	if delivered != 1 {
		t.Errorf("second handler called %d times, want 1", delivered)
	}

	data, err := os.ReadFile(filepath.Join(dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	for _, want := range []string{"event handler panicked", TypeAgentResponded, "printer closed"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log should mention %q, got: %s", want, data)
		}
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	ids := make(map[string]bool)
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe(TypeAgentCreated, func(e Event) {
				t.Error("handler survived Unsubscribe")
			})
			mu.Lock()
			if ids[id] {
				t.Errorf("duplicate subscription id %s", id)
			}
			ids[id] = true
			mu.Unlock()
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	bus.Publish(NewAgentCreatedEvent("dep-1", "claude-1", "claude", "/wt/claude-1"))
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{NewAgentCreatedEvent("dep-1", "claude-1", "claude", "/wt/claude-1"), TypeAgentCreated},
		{NewAgentStatusChangedEvent("claude-1", 2, "running", "paused", "pause"), TypeAgentStatusChanged},
		{NewAgentRespondedEvent("claude-1", true, 1, ""), TypeAgentResponded},
		{NewDeploymentStartedEvent("dep-1", 3, 2), TypeDeploymentStarted},
		{NewBatchCompletedEvent("dep-1", PhaseDispatch, 0, 2, 1), TypeBatchCompleted},
		{NewDeploymentCompletedEvent("dep-1", 2, 1, 2, time.Second), TypeDeploymentCompleted},
		{NewSupervisorShutdownEvent(3, 0), TypeSupervisorShutdown},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if tt.event.EventType() != tt.want {
				t.Errorf("EventType() = %q, want %q", tt.event.EventType(), tt.want)
			}
		})
	}
}
