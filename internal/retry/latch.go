package retry

import "github.com/giantswarm/testhooks/internal/framework"

type latchKey struct {
	runner framework.Handle
	method framework.Handle
}

type latchEntry struct {
	index int
	held  bool
}

// ParameterLatch pins the parameter set of a parameterized method while it
// is retried, so the next attempt runs with the same parameters as the
// failing one. A latch belongs to one goroutine and is not locked.
type ParameterLatch struct {
	entries map[latchKey]*latchEntry
}

// NewParameterLatch creates an empty latch.
func NewParameterLatch() *ParameterLatch {
	return &ParameterLatch{entries: make(map[latchKey]*latchEntry)}
}

// Next returns the held index for (runner, method) if a retry is pending,
// and otherwise advances through next and remembers the result.
func (l *ParameterLatch) Next(runner, method framework.Handle, next func() int) int {
	key := latchKey{runner, method}
	if e, ok := l.entries[key]; ok && e.held {
		e.held = false
		return e.index
	}
	idx := next()
	l.entries[key] = &latchEntry{index: idx}
	return idx
}

// Hold makes the next call to Next for (runner, method) return the index
// of the current attempt. It reports false when no index was recorded.
func (l *ParameterLatch) Hold(runner, method framework.Handle) bool {
	e, ok := l.entries[latchKey{runner, method}]
	if !ok {
		return false
	}
	e.held = true
	return true
}

// Release forgets (runner, method).
func (l *ParameterLatch) Release(runner, method framework.Handle) {
	delete(l.entries, latchKey{runner, method})
}

// Len returns the number of tracked methods.
func (l *ParameterLatch) Len() int {
	return len(l.entries)
}
