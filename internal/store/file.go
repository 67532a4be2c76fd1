package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// FileSink appends entries as JSON lines to a local file. Writers in this
// process are serialised by a mutex; writers in other processes by an
// exclusive lock on "<path>.lock".
type FileSink struct {
	path string
	mu   sync.Mutex
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Append(ctx context.Context, e Entry) error {
	line, err := e.Line()
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	if _, err := f.Write(line); err != nil {
		return errors.Join(fmt.Errorf("write %s: %w", s.path, err), f.Close())
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync %s: %w", s.path, err), f.Close())
	}
	return f.Close()
}

func (s *FileSink) Close() error { return nil }
