package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// FileSink appends a three line block per entry: message, translation and a
// blank line.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenFile opens path for appending, creating it when missing.
func OpenFile(path string) (*FileSink, error) {
	if _, err := os.Stat(path); err == nil {
		slog.Info("Report exists, resuming", "path", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat report file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}
	return &FileSink{path: path, f: f}, nil
}

// Path returns the report file path.
func (s *FileSink) Path() string { return s.path }

// Report implements pipeline.Sink. Each entry is a single write; a failed
// entry does not stop the others.
func (s *FileSink) Report(_ context.Context, entries []pipeline.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if _, err := fmt.Fprintf(s.f, "%s\n%s\n\n", e.Message, e.Translation); err != nil {
			errs = append(errs, fmt.Errorf("write report entry %q: %w", e.Message, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements pipeline.Sink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
