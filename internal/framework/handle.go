package framework

import "sync/atomic"

// Handle is a stable identity for a framework object (runner, method, instance,
// description, notifier). Handles are never derived from hashes or string
// renderings, so two distinct objects can never collide on the same key.
type Handle uint64

// Arena hands out process-unique handles.
type Arena struct {
	next atomic.Uint64
}

// Next returns a fresh handle. The zero handle is never returned.
func (a *Arena) Next() Handle {
	return Handle(a.next.Add(1))
}

var defaultArena Arena

// NewHandle returns a fresh handle from the process-wide arena.
func NewHandle() Handle {
	return defaultArena.Next()
}
