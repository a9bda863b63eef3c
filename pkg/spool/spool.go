// Package spool holds uploaded audio for the lifetime of one pipeline run.
//
// Every Upload must be released exactly once; Release is idempotent so it can
// sit in a defer alongside explicit early releases.
package spool

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrReleased is returned when reading an upload after Release.
var ErrReleased = errors.New("spool: upload already released")

// Spool acquires scoped storage for an uploaded clip.
type Spool interface {
	Acquire(audio []byte, mime string) (*Upload, error)
	Stats() Stats
}

// Stats counts uploads over the life of a spool.
type Stats struct {
	Acquired int64
	Released int64
}

// Active is the number of uploads not yet released.
func (s Stats) Active() int64 {
	return s.Acquired - s.Released
}

// Upload is one clip held by a spool.
type Upload struct {
	mime string
	size int

	mu       sync.Mutex
	released bool
	read     func() ([]byte, error)
	free     func()
}

// MIME returns the content type the clip was uploaded with.
func (u *Upload) MIME() string { return u.mime }

// Len returns the clip size in bytes.
func (u *Upload) Len() int { return u.size }

// Bytes returns the clip contents. The slice is only valid until Release.
func (u *Upload) Bytes() ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.released {
		return nil, ErrReleased
	}
	return u.read()
}

// Release frees the storage. Calls after the first are no-ops.
func (u *Upload) Release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.released {
		return
	}
	u.released = true
	u.free()
}

// Released reports whether Release has run.
func (u *Upload) Released() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.released
}

type counters struct {
	acquired atomic.Int64
	released atomic.Int64
}

func (c *counters) stats() Stats {
	return Stats{Acquired: c.acquired.Load(), Released: c.released.Load()}
}
