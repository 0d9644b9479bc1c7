//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/subtext/internal/geometry"
)

// tesseractEngine reads text lines with a local Tesseract installation.
// gosseract clients are not goroutine safe, so each call creates its own.
type tesseractEngine struct {
	languages []string
}

func newTesseractEngine(cfg Config) (Engine, error) {
	return &tesseractEngine{languages: tesseractLanguages(cfg.Languages)}, nil
}

func (t *tesseractEngine) Detect(ctx context.Context, data []byte) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	dets := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		dets = append(dets, Detection{
			Quad: geometry.QuadFromRect(
				float64(b.Box.Min.X), float64(b.Box.Min.Y),
				float64(b.Box.Max.X), float64(b.Box.Max.Y),
			),
			Text:       strings.TrimSpace(b.Word),
			Confidence: b.Confidence / 100.0,
		})
	}
	return dets, nil
}

func (t *tesseractEngine) Close() error { return nil }
