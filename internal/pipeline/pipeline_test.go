package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

type failingEngine struct{ err error }

func (f failingEngine) Detect(context.Context, []byte) ([]ocr.Detection, error) { return nil, f.err }
func (f failingEngine) Close() error                                            { return nil }

type recordingSink struct {
	mu      sync.Mutex
	reports [][]Entry
	ids     []string
	err     error
	closed  bool
}

func (s *recordingSink) Report(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, entries)
	s.ids = append(s.ids, RequestID(ctx))
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func holaMundo() []ocr.Detection {
	return []ocr.Detection{
		det("Hola", 0.9, 10, 20, 50, 40),
		det("Mundo", 0.9, 40, 20, 90, 40),
	}
}

func newTestPipeline(t *testing.T, engine ocr.Engine, tr translate.Translator, sink Sink, merge bool) *Pipeline {
	t.Helper()
	b := NewBuilder().
		WithEngine(engine).
		WithTranslator(tr).
		WithMerge(merge, DefaultMaxYDiff)
	if sink != nil {
		b = b.WithSink(sink)
	}
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestProcessImage_MergesTranslatedEntries(t *testing.T) {
	dict := translate.NewDictionary(map[string]string{"Hola": "Hello", "Mundo": "World"})
	sink := &recordingSink{}
	p := newTestPipeline(t, ocr.NewFixtureEngine(holaMundo()), dict, sink, true)

	ctx := WithRequestID(context.Background(), "req-1")
	got, err := p.ProcessImage(ctx, []byte("image"))
	require.NoError(t, err)

	want := []Entry{{X: 10, Y: 20, W: 90, H: 20, Message: "Hola Mundo", Translation: "Hello World"}}
	assert.Equal(t, want, got)
	require.Len(t, sink.reports, 1)
	assert.Equal(t, want, sink.reports[0])
	assert.Equal(t, []string{"req-1"}, sink.ids)
}

func TestProcessImage_MergeDisabled(t *testing.T) {
	dict := translate.NewDictionary(map[string]string{"Hola": "Hello", "Mundo": "World"})
	p := newTestPipeline(t, ocr.NewFixtureEngine(holaMundo()), dict, nil, false)

	got, err := p.ProcessImage(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{X: 10, Y: 20, W: 40, H: 20, Message: "Hola", Translation: "Hello"},
		{X: 40, Y: 20, W: 50, H: 20, Message: "Mundo", Translation: "World"},
	}, got)
}

func TestProcessImage_FiltersNoise(t *testing.T) {
	tr := &fakeTranslator{}
	dets := []ocr.Detection{
		det("low", 0.05, 0, 0, 10, 10),
		det("", 0.95, 0, 100, 10, 110),
		det("kept", 0.5, 0, 200, 10, 210),
	}
	p := newTestPipeline(t, ocr.NewFixtureEngine(dets), tr, nil, true)

	got, err := p.ProcessImage(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Message)
	assert.Equal(t, []string{"kept"}, tr.calls)
}

func TestProcessImage_NoDetections(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPipeline(t, ocr.NewFixtureEngine(nil), &fakeTranslator{}, sink, true)

	got, err := p.ProcessImage(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, sink.reports)
}

func TestProcessImage_PreservesDetectionOrder(t *testing.T) {
	var dets []ocr.Detection
	for i := range 20 {
		y := float64(i * 100)
		dets = append(dets, det(fmt.Sprintf("t%02d", i), 0.9, 0, y, 10, y+10))
	}

	// Earlier detections take longer, so they finish last.
	tr := &fakeTranslator{onCall: func(text string) {
		var n int
		_, _ = fmt.Sscanf(text, "t%d", &n)
		time.Sleep(time.Duration(20-n) * time.Millisecond)
	}}
	p, err := NewBuilder().
		WithEngine(ocr.NewFixtureEngine(dets)).
		WithTranslator(tr).
		WithTranslateWorkers(8).
		Build()
	require.NoError(t, err)

	got, err := p.ProcessImage(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("t%02d", i), e.Message)
		assert.Equal(t, i*100, e.Y)
	}
}

func TestProcessImage_OCRFailure(t *testing.T) {
	p := newTestPipeline(t, failingEngine{err: ocr.ErrInvalidImage}, &fakeTranslator{}, nil, false)

	_, err := p.ProcessImage(context.Background(), []byte("junk"))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageOCR, se.Stage)
	assert.ErrorIs(t, err, ocr.ErrInvalidImage)
}

func TestProcessImage_TranslationFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			tr := &fakeTranslator{errFor: map[string]error{"Mundo": boom}}
			sink := &recordingSink{}
			p, err := NewBuilder().
				WithEngine(ocr.NewFixtureEngine(holaMundo())).
				WithTranslator(tr).
				WithSink(sink).
				WithTranslateWorkers(workers).
				Build()
			require.NoError(t, err)

			_, err = p.ProcessImage(context.Background(), nil)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, StageTranslate, se.Stage)
			assert.ErrorIs(t, err, boom)
			assert.Empty(t, sink.reports)
		})
	}
}

func TestProcessImage_TranslationFallback(t *testing.T) {
	tr := &fakeTranslator{
		table:  map[string]string{"Hola": "Hello"},
		errFor: map[string]error{"Mundo": errors.New("quota exceeded")},
	}
	cfg := DefaultConfig()
	cfg.TranslationFallback = true
	cfg.Merge = MergeConfig{Enabled: true, MaxYDiff: DefaultMaxYDiff}

	p, err := NewBuilder().
		WithConfig(cfg).
		WithEngine(ocr.NewFixtureEngine(holaMundo())).
		WithTranslator(tr).
		Build()
	require.NoError(t, err)

	got, err := p.ProcessImage(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{X: 10, Y: 20, W: 90, H: 20, Message: "Hola Mundo", Translation: "Hello "}}, got)
}

func TestProcessImage_SinkFailureDoesNotFailRequest(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	p := newTestPipeline(t, ocr.NewFixtureEngine(holaMundo()), &fakeTranslator{}, sink, false)

	got, err := p.ProcessImage(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, sink.reports, 1)
}

func TestProcessImage_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, ocr.NewFixtureEngine(holaMundo()), &fakeTranslator{}, nil, false)
	_, err := p.ProcessImage(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_Validation(t *testing.T) {
	_, err := NewBuilder().WithTranslator(&fakeTranslator{}).Build()
	assert.ErrorContains(t, err, "engine is required")

	_, err = NewBuilder().WithEngine(ocr.NewFixtureEngine(nil)).Build()
	assert.ErrorContains(t, err, "translator is required")

	_, err = NewBuilder().
		WithEngine(ocr.NewFixtureEngine(nil)).
		WithTranslator(&fakeTranslator{}).
		WithMinConfidence(1.5).
		Build()
	assert.ErrorContains(t, err, "min confidence")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 0.2, cfg.MinConfidence, 1e-9)
	assert.False(t, cfg.Merge.Enabled)
	assert.Equal(t, 20, cfg.Merge.MaxYDiff)
	assert.Equal(t, 4, cfg.TranslateWorkers)
	assert.False(t, cfg.TranslationFallback)
}

func TestPipeline_Close(t *testing.T) {
	tr := &fakeTranslator{}
	sink := &recordingSink{}
	p := newTestPipeline(t, ocr.NewFixtureEngine(nil), tr, sink, false)

	require.NoError(t, p.Close())
	assert.True(t, tr.closed)
	assert.True(t, sink.closed)
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "abc", RequestID(WithRequestID(context.Background(), "abc")))
}
