package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Downscaler validates image bytes and shrinks oversized images before they
// reach the wrapped engine. Detections are mapped back to the coordinate
// space of the original image.
type Downscaler struct {
	next    Engine
	maxSide int
}

// NewDownscaler wraps next. maxSide <= 0 disables resizing but keeps validation.
func NewDownscaler(next Engine, maxSide int) *Downscaler {
	return &Downscaler{next: next, maxSide: maxSide}
}

// Detect implements Engine.
func (d *Downscaler) Detect(ctx context.Context, data []byte) ([]Detection, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if d.maxSide <= 0 || max(cfg.Width, cfg.Height) <= d.maxSide {
		return d.next.Detect(ctx, data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	resized := imaging.Fit(img, d.maxSide, d.maxSide, imaging.Lanczos)
	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("encode downscaled image: %w", err)
	}

	rb := resized.Bounds()
	sx := float64(cfg.Width) / float64(rb.Dx())
	sy := float64(cfg.Height) / float64(rb.Dy())
	slog.Debug("Downscaled image for OCR",
		"width", cfg.Width, "height", cfg.Height,
		"scaled_width", rb.Dx(), "scaled_height", rb.Dy())

	dets, err := d.next.Detect(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}
	for i := range dets {
		dets[i].Quad = dets[i].Quad.Scale(sx, sy)
	}
	return dets, nil
}

// Close closes the wrapped engine.
func (d *Downscaler) Close() error {
	return d.next.Close()
}
