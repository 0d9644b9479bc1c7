// Package pipeline turns the detections of one image into merged, translated
// entries: confidence filter, entry building with translation, overlap merge
// and reporting.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// Config holds the pipeline settings.
type Config struct {
	MinConfidence float64
	Merge         MergeConfig

	// TranslateWorkers bounds the translations in flight per image.
	TranslateWorkers int

	// TranslationFallback keeps entries with an empty translation when the
	// translator fails instead of failing the request.
	TranslationFallback bool
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		MinConfidence:    DefaultMinConfidence,
		Merge:            MergeConfig{Enabled: false, MaxYDiff: DefaultMaxYDiff},
		TranslateWorkers: 4,
	}
}

// Pipeline processes images with a shared engine and translator. It is safe
// for concurrent use.
type Pipeline struct {
	engine     ocr.Engine
	translator translate.Translator
	builder    *EntryBuilder
	sink       Sink
	cfg        Config
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	engine     ocr.Engine
	translator translate.Translator
	sink       Sink
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces all settings.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithEngine sets the OCR engine.
func (b *Builder) WithEngine(e ocr.Engine) *Builder {
	b.engine = e
	return b
}

// WithTranslator sets the translator.
func (b *Builder) WithTranslator(t translate.Translator) *Builder {
	b.translator = t
	return b
}

// WithSink sets the report sink. Without one nothing is reported.
func (b *Builder) WithSink(s Sink) *Builder {
	b.sink = s
	return b
}

// WithMinConfidence sets the confidence threshold.
func (b *Builder) WithMinConfidence(v float64) *Builder {
	b.cfg.MinConfidence = v
	return b
}

// WithMerge enables or disables the overlap merge.
func (b *Builder) WithMerge(enabled bool, maxYDiff int) *Builder {
	b.cfg.Merge = MergeConfig{Enabled: enabled, MaxYDiff: maxYDiff}
	return b
}

// WithTranslateWorkers sets the per-image translation fan-out.
func (b *Builder) WithTranslateWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.TranslateWorkers = n
	}
	return b
}

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.engine == nil {
		return nil, errors.New("pipeline: OCR engine is required")
	}
	if b.translator == nil {
		return nil, errors.New("pipeline: translator is required")
	}
	if b.cfg.MinConfidence < 0 || b.cfg.MinConfidence > 1 {
		return nil, errors.New("pipeline: min confidence must be within [0,1]")
	}
	if b.cfg.TranslateWorkers <= 0 {
		b.cfg.TranslateWorkers = 1
	}
	return &Pipeline{
		engine:     b.engine,
		translator: b.translator,
		builder:    NewEntryBuilder(b.translator, b.cfg.MinConfidence, b.cfg.TranslationFallback),
		sink:       b.sink,
		cfg:        b.cfg,
	}, nil
}

// Config returns the pipeline settings.
func (p *Pipeline) Config() Config { return p.cfg }

// ProcessImage runs OCR once on image, builds and merges the entries and
// reports them. The result is never nil.
func (p *Pipeline) ProcessImage(ctx context.Context, image []byte) ([]Entry, error) {
	requestID := RequestID(ctx)

	start := time.Now()
	dets, err := p.engine.Detect(ctx, image)
	stageDuration.WithLabelValues(string(StageOCR)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &StageError{Stage: StageOCR, Err: err}
	}

	start = time.Now()
	entries, err := p.buildEntries(ctx, dets)
	stageDuration.WithLabelValues(string(StageTranslate)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &StageError{Stage: StageTranslate, Err: err}
	}

	start = time.Now()
	merged := Merge(entries, p.cfg.Merge)
	stageDuration.WithLabelValues("merge").Observe(time.Since(start).Seconds())
	entriesMerged.Add(float64(len(entries) - len(merged)))

	if p.sink != nil && len(merged) > 0 {
		start = time.Now()
		// The client may already be gone; the report is still written.
		if err := p.sink.Report(context.WithoutCancel(ctx), merged); err != nil {
			reportFailures.Inc()
			slog.Warn("Report failed", "request_id", requestID, "error", err)
		}
		stageDuration.WithLabelValues("report").Observe(time.Since(start).Seconds())
	}

	slog.Debug("Processed image",
		"request_id", requestID,
		"detections", len(dets),
		"entries", len(entries),
		"merged", len(merged))

	if merged == nil {
		merged = []Entry{}
	}
	return merged, nil
}

// Close releases the engine, the translator and the sink.
func (p *Pipeline) Close() error {
	errs := []error{p.engine.Close(), p.translator.Close()}
	if p.sink != nil {
		errs = append(errs, p.sink.Close())
	}
	return errors.Join(errs...)
}
