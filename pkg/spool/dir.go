package spool

import (
	"fmt"
	"log/slog"
	"os"
)

// Dir writes uploads to temporary files under a directory and removes them
// on release.
type Dir struct {
	path   string
	logger *slog.Logger
	counters
}

// NewDir creates a file-backed spool. The directory is created if missing.
func NewDir(path string, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("spool dir: %w", err)
	}
	return &Dir{
		path:   path,
		logger: logger.With("component", "spool.dir"),
	}, nil
}

// Acquire writes audio to a new temporary file.
func (d *Dir) Acquire(audio []byte, mime string) (*Upload, error) {
	f, err := os.CreateTemp(d.path, "upload-*.audio")
	if err != nil {
		return nil, fmt.Errorf("spool create: %w", err)
	}
	name := f.Name()

	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(name)
		return nil, fmt.Errorf("spool write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("spool close: %w", err)
	}
	d.acquired.Add(1)

	return &Upload{
		mime: mime,
		size: len(audio),
		read: func() ([]byte, error) { return os.ReadFile(name) },
		free: func() {
			if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
				d.logger.Warn("remove spooled upload", "path", name, "error", err)
			}
			d.released.Add(1)
		},
	}, nil
}

// Stats returns acquire and release counts.
func (d *Dir) Stats() Stats {
	return d.stats()
}

var _ Spool = (*Dir)(nil)
