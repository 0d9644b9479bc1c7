package ocr

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/subtext/internal/geometry"
)

// FixtureDetection is the YAML form of a detection.
type FixtureDetection struct {
	Quad       [4][2]float64 `yaml:"quad"`
	Text       string        `yaml:"text"`
	Confidence float64       `yaml:"confidence"`
}

// FixtureFile is the document read by LoadFixtureEngine.
type FixtureFile struct {
	Detections []FixtureDetection `yaml:"detections"`
}

// FixtureEngine returns the same canned detections for every image. It backs
// offline demos and the integration suite.
type FixtureEngine struct {
	detections []Detection
}

// NewFixtureEngine returns an engine replaying dets.
func NewFixtureEngine(dets []Detection) *FixtureEngine {
	return &FixtureEngine{detections: append([]Detection(nil), dets...)}
}

// LoadFixtureEngine reads detections from a YAML file.
func LoadFixtureEngine(path string) (*FixtureEngine, error) {
	if path == "" {
		return nil, fmt.Errorf("fixture path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture document.
func ParseFixture(data []byte) (*FixtureEngine, error) {
	var f FixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	dets := make([]Detection, 0, len(f.Detections))
	for _, fd := range f.Detections {
		var q geometry.Quad
		for i, p := range fd.Quad {
			q[i] = geometry.Point{X: p[0], Y: p[1]}
		}
		dets = append(dets, Detection{Quad: q, Text: fd.Text, Confidence: fd.Confidence})
	}
	return NewFixtureEngine(dets), nil
}

// Detect implements Engine.
func (f *FixtureEngine) Detect(ctx context.Context, _ []byte) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Detection(nil), f.detections...), nil
}

// Close implements Engine.
func (f *FixtureEngine) Close() error { return nil }
