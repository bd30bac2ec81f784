package models

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

var ErrLogInit = errors.New("log initialisation failed")

// DefaultLogLimit caps the log file at 10 MiB.
const DefaultLogLimit = 10 << 20

// LogSink is a single log file, truncated when opened.
// Once the file reaches Limit bytes, further writes are dropped.
type LogSink struct {
	Path  string
	Limit int64

	mu      sync.Mutex
	f       *os.File
	written int64
}

func OpenLogSink(path string, limit int64) (*LogSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(ErrLogInit, "opening %s: %v", path, err)
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return &LogSink{Path: path, Limit: limit, f: f}, nil
}

func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil || s.written >= s.Limit {
		return len(p), nil
	}
	n, err := s.f.Write(p)
	s.written += int64(n)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return len(p), nil
}

// Full reports whether the sink has stopped accepting writes.
func (s *LogSink) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written >= s.Limit
}

func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return errors.WithStack(err)
}
