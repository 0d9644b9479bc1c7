// Package ocr defines the text detection collaborator consumed by the
// translation pipeline and the concrete engines that implement it.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/subtext/internal/geometry"
)

// Engine names accepted by New.
const (
	EngineRemote    = "remote"
	EngineVision    = "vision"
	EngineTesseract = "tesseract"
	EngineFixture   = "fixture"
)

// ErrInvalidImage is returned when the request body is not a decodable image.
var ErrInvalidImage = errors.New("ocr: invalid image data")

// Detection is one raw OCR result.
type Detection struct {
	Quad       geometry.Quad
	Text       string
	Confidence float64
}

// Engine detects and recognizes text in encoded image bytes.
// Implementations must be safe for concurrent use.
type Engine interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
	Close() error
}

// Config holds engine selection and the options forwarded to the engine.
type Config struct {
	Engine string

	// Languages are the recognition languages, source language first.
	Languages []string
	UseGPU    bool
	BatchSize int
	Workers   int

	// MaxImageSize downsizes images whose longest side exceeds it (0 = off).
	MaxImageSize int

	RemoteURL             string
	RemoteTimeoutSec      int
	VisionCredentialsFile string
	FixturePath           string
}

// Languages returns the source language followed by "en", deduplicated.
func Languages(source string) []string {
	source = strings.TrimSpace(source)
	if source == "" || strings.EqualFold(source, "en") {
		return []string{"en"}
	}
	return []string{source, "en"}
}

// New constructs the configured engine wrapped in a Downscaler, which also
// rejects bodies that are not decodable images.
func New(ctx context.Context, cfg Config) (Engine, error) {
	var (
		engine Engine
		err    error
	)
	switch cfg.Engine {
	case EngineRemote, "":
		engine, err = NewRemoteEngine(cfg)
	case EngineVision:
		engine, err = NewVisionEngine(ctx, cfg)
	case EngineTesseract:
		engine, err = newTesseractEngine(cfg)
	case EngineFixture:
		engine, err = LoadFixtureEngine(cfg.FixturePath)
	default:
		return nil, fmt.Errorf("unknown OCR engine: %q", cfg.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", cfg.Engine, err)
	}
	return NewDownscaler(engine, cfg.MaxImageSize), nil
}
