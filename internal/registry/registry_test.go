package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mkykode/agentcrew/internal/agent"
	"github.com/mkykode/agentcrew/internal/errors"
)

type nopTransport struct{}

func (nopTransport) Open(context.Context) error                       { return nil }
func (nopTransport) Send(_ context.Context, s string) (string, error) { return s, nil }
func (nopTransport) Close() error                                     { return nil }

func newAgent(t *testing.T, id string) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{ID: id, Provider: "claude", Transport: nopTransport{}})
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}
	return a
}

func ids(r *Registry) []string {
	var out []string
	for a := range r.List() {
		out = append(out, a.ID())
	}
	return out
}

func TestRegistry_RegisterGet(t *testing.T) {
	r := New(nil)
	a := newAgent(t, "claude-1")

	if err := r.Register(a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Get("claude-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != a {
		t.Error("Get() returned a different agent")
	}

	if _, err := r.Get("missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := New(nil)
	_ = r.Register(newAgent(t, "claude-1"))

	err := r.Register(newAgent(t, "claude-1"))
	if !errors.Is(err, errors.ErrDuplicateID) {
		t.Errorf("Register(dup) error = %v, want ErrDuplicateID", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ListOrderAndRestart(t *testing.T) {
	r := New(nil)
	want := []string{"claude-1", "claude-2", "openai-1"}
	for _, id := range want {
		_ = r.Register(newAgent(t, id))
	}

	for pass := 0; pass < 2; pass++ {
		got := ids(r)
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("pass %d: List() = %v, want %v", pass, got, want)
		}
	}

	// early break stops the sequence
	count := 0
	for range r.List() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("break should stop iteration, saw %d", count)
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := New(nil)
	for _, id := range []string{"a", "b", "c"} {
		_ = r.Register(newAgent(t, id))
	}

	if err := r.Remove("b"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := ids(r); fmt.Sprint(got) != "[a c]" {
		t.Errorf("List() after Remove = %v", got)
	}
	if err := r.Remove("b"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Remove(missing) error = %v, want ErrNotFound", err)
	}

	// an id can be reused once removed
	if err := r.Register(newAgent(t, "b")); err != nil {
		t.Errorf("Register() after Remove error = %v", err)
	}
	if got := ids(r); fmt.Sprint(got) != "[a c b]" {
		t.Errorf("List() = %v, want [a c b]", got)
	}
}

func TestRegistry_RemoveDuringIteration(t *testing.T) {
	r := New(nil)
	for _, id := range []string{"a", "b", "c"} {
		_ = r.Register(newAgent(t, id))
	}

	var seen []string
	for a := range r.List() {
		seen = append(seen, a.ID())
		if a.ID() == "a" {
			_ = r.Remove("b")
		}
	}
	if fmt.Sprint(seen) != "[a c]" {
		t.Errorf("iteration = %v, want [a c]", seen)
	}
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := New(nil)
	const workers = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	var dupes int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// half the workers race on the same id
			id := fmt.Sprintf("agent-%d", i%(workers/2))
			a, _ := agent.New(agent.Config{ID: id, Provider: "claude", Transport: nopTransport{}})
			if err := r.Register(a); errors.Is(err, errors.ErrDuplicateID) {
				mu.Lock()
				dupes++
				mu.Unlock()
			}
			_ = r.Len()
			for range r.List() {
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != workers/2 {
		t.Errorf("Len() = %d, want %d", r.Len(), workers/2)
	}
	if dupes != workers/2 {
		t.Errorf("duplicates = %d, want %d", dupes, workers/2)
	}
}
