package server

import (
	"bytes"
	"context"
	"sync"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// mockProcessor returns canned entries and records what it was given.
type mockProcessor struct {
	mu       sync.Mutex
	entries  []pipeline.Entry
	err      error
	block    chan struct{}
	started  chan struct{}
	images   [][]byte
	ids      []string
	closed   bool
	closeErr error
}

func (m *mockProcessor) ProcessImage(ctx context.Context, image []byte) ([]pipeline.Entry, error) {
	m.mu.Lock()
	m.images = append(m.images, bytes.Clone(image))
	m.ids = append(m.ids, pipeline.RequestID(ctx))
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.entries, m.err
}

func (m *mockProcessor) Close() error {
	m.closed = true
	return m.closeErr
}

func (m *mockProcessor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

func helloWorld() []pipeline.Entry {
	return []pipeline.Entry{{X: 10, Y: 20, W: 90, H: 20, Message: "Hola Mundo", Translation: "Hello World"}}
}

func newTestServer(p Processor) *Server {
	return NewServer(Config{
		MaxUploadMB:     1,
		TimeoutSec:      5,
		QueueTimeoutSec: 1,
		Workers:         2,
	}, p)
}
