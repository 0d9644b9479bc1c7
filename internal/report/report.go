// Package report persists the entries of every processed image: an append
// only text log, an echo on stdout and an optional Postgres history table.
package report

import (
	"context"
	"errors"
	"os"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// Config selects the sinks to build.
type Config struct {
	FilePath    string
	Stdout      bool
	PostgresDSN string
}

// New opens every configured sink. The report file is created empty when it
// does not exist yet.
func New(ctx context.Context, cfg Config) (*Multi, error) {
	var sinks []pipeline.Sink

	if cfg.FilePath != "" {
		fs, err := OpenFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.Stdout {
		sinks = append(sinks, NewStdoutSink(os.Stdout))
	}
	if cfg.PostgresDSN != "" {
		ps, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			_ = NewMulti(sinks...).Close()
			return nil, err
		}
		sinks = append(sinks, ps)
	}
	return NewMulti(sinks...), nil
}

// Multi fans a report out to several sinks. Every sink is tried; the
// failures are joined.
type Multi struct {
	sinks []pipeline.Sink
}

// NewMulti combines sinks.
func NewMulti(sinks ...pipeline.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Report implements pipeline.Sink.
func (m *Multi) Report(ctx context.Context, entries []pipeline.Entry) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Report(ctx, entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements pipeline.Sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
