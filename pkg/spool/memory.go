package spool

import "github.com/valyala/bytebufferpool"

// Memory keeps uploads in pooled buffers.
type Memory struct {
	pool bytebufferpool.Pool
	counters
}

// NewMemory creates an in-memory spool.
func NewMemory() *Memory {
	return &Memory{}
}

// Acquire copies audio into a pooled buffer.
func (m *Memory) Acquire(audio []byte, mime string) (*Upload, error) {
	buf := m.pool.Get()
	buf.Write(audio)
	m.acquired.Add(1)

	return &Upload{
		mime: mime,
		size: buf.Len(),
		read: func() ([]byte, error) { return buf.B, nil },
		free: func() {
			m.pool.Put(buf)
			m.released.Add(1)
		},
	}, nil
}

// Stats returns acquire and release counts.
func (m *Memory) Stats() Stats {
	return m.stats()
}

var _ Spool = (*Memory)(nil)
