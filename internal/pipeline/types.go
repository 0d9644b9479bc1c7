package pipeline

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/subtext/internal/geometry"
)

// Entry is one translated text box returned to the overlay client.
type Entry struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	W           int    `json:"w"`
	H           int    `json:"h"`
	Message     string `json:"message"`
	Translation string `json:"translation"`
}

// NewEntry places message and translation at r.
func NewEntry(r geometry.Rect, message, translation string) Entry {
	return Entry{X: r.X, Y: r.Y, W: r.W, H: r.H, Message: message, Translation: translation}
}

// Rect returns the entry's rectangle.
func (e Entry) Rect() geometry.Rect {
	return geometry.Rect{X: e.X, Y: e.Y, W: e.W, H: e.H}
}

// Sink receives the final entries of every processed image. Report failures
// are logged by the pipeline and never fail a request.
type Sink interface {
	Report(ctx context.Context, entries []Entry) error
	Close() error
}

// Stage names a pipeline step for error reporting.
type Stage string

const (
	StageOCR       Stage = "ocr"
	StageTranslate Stage = "translate"
)

// StageError wraps a failure with the stage it happened in so the transport
// can map it to a status code.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type requestIDKey struct{}

// WithRequestID attaches a request ID to ctx for logs and report rows.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
