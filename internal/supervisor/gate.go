package supervisor

import (
	"fmt"
	"sync/atomic"

	"github.com/mkykode/agentcrew/internal/errors"
)

// gate counts in-flight agent operations and remembers the high-water mark.
// Batching keeps the count within limit; enter refuses to exceed it.
type gate struct {
	limit    int // 0 means unbounded
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newGate(limit int) *gate {
	return &gate{limit: limit}
}

func (g *gate) enter() error {
	n := g.inFlight.Add(1)
	if g.limit > 0 && n > int64(g.limit) {
		g.inFlight.Add(-1)
		return fmt.Errorf("%w: %d in flight, limit %d", errors.ErrConcurrencyLimitExceeded, n, g.limit)
	}
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			return nil
		}
	}
}

func (g *gate) leave() {
	g.inFlight.Add(-1)
}

func (g *gate) highWater() int {
	return int(g.peak.Load())
}

// batches splits items into consecutive groups of at most size items.
// size <= 0 yields a single batch.
func batches[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
