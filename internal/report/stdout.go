package report

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// StdoutSink echoes "message -> translation" lines.
type StdoutSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutSink writes to w.
func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w}
}

// Report implements pipeline.Sink.
func (s *StdoutSink) Report(_ context.Context, entries []pipeline.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, err := fmt.Fprintf(s.w, "%s -> %s\n", e.Message, e.Translation); err != nil {
			return err
		}
	}
	return nil
}

// Close implements pipeline.Sink.
func (s *StdoutSink) Close() error { return nil }
