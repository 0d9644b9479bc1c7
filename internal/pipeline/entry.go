package pipeline

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/subtext/internal/geometry"
	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// DefaultMinConfidence is the detection confidence below which text is
// treated as noise.
const DefaultMinConfidence = 0.2

// Accept reports whether a detection clears the confidence threshold.
func Accept(d ocr.Detection, minConfidence float64) bool {
	return d.Confidence >= minConfidence
}

// EntryBuilder turns detections into translated entries.
type EntryBuilder struct {
	translator    translate.Translator
	minConfidence float64
	fallback      bool
}

// NewEntryBuilder returns a builder using t. With fallback set, a translator
// error yields an entry with an empty translation instead of an error.
func NewEntryBuilder(t translate.Translator, minConfidence float64, fallback bool) *EntryBuilder {
	return &EntryBuilder{translator: t, minConfidence: minConfidence, fallback: fallback}
}

// Build returns ok=false for detections that are filtered out: low
// confidence or empty text. The translator is not called for those.
func (b *EntryBuilder) Build(ctx context.Context, d ocr.Detection) (Entry, bool, error) {
	rect := geometry.Normalize(d.Quad)

	if !Accept(d, b.minConfidence) {
		detectionsTotal.WithLabelValues("low_confidence").Inc()
		return Entry{}, false, nil
	}
	if d.Text == "" {
		detectionsTotal.WithLabelValues("empty_text").Inc()
		return Entry{}, false, nil
	}

	translation, err := b.translator.Translate(ctx, norm.NFC.String(d.Text))
	if err != nil {
		if !b.fallback || ctx.Err() != nil {
			return Entry{}, false, err
		}
		slog.Warn("Translation failed, keeping untranslated entry",
			"request_id", RequestID(ctx), "text", d.Text, "error", err)
		translation = ""
	}

	// Single characters are usually punctuation or OCR noise echoed back.
	if utf8.RuneCountInString(translation) <= 1 {
		translation = ""
	}

	detectionsTotal.WithLabelValues("accepted").Inc()
	return NewEntry(rect, d.Text, translation), true, nil
}
