package namespace

import (
	"sync"
	"time"
)

// Clock tracks the modification time reported for each note. Local writes
// move the reported time immediately; server times only move it when they
// advance past the last server time seen, so a note's mtime does not jump
// back and forth after an edit round-trips through the server.
type Clock struct {
	mu      sync.Mutex
	entries map[string]clockEntry
}

type clockEntry struct {
	local  time.Time
	server time.Time
}

// NewClock returns an empty clock.
func NewClock() *Clock {
	return &Clock{entries: make(map[string]clockEntry)}
}

// Touch records a local write.
func (c *Clock) Touch(uuid string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uuid] = clockEntry{local: t}
}

// Observe folds in the modification times known after a sync round. Notes
// absent from times are forgotten.
func (c *Clock) Observe(times map[string]time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for uuid, modified := range times {
		e, ok := c.entries[uuid]
		switch {
		case !ok:
			e = clockEntry{local: modified, server: modified}
		case e.server.IsZero():
			e.server = modified
		case modified.After(e.server):
			e = clockEntry{local: modified, server: modified}
		}
		c.entries[uuid] = e
	}
	for uuid := range c.entries {
		if _, ok := times[uuid]; !ok {
			delete(c.entries, uuid)
		}
	}
}

// Forget drops a note.
func (c *Clock) Forget(uuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uuid)
}

// Local returns the reported modification time of a note.
func (c *Clock) Local(uuid string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uuid]
	return e.local, ok
}
