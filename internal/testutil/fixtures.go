package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// Box builds an axis-aligned fixture detection covering x..x+w, y..y+h.
func Box(x, y, w, h float64, text string, confidence float64) ocr.FixtureDetection {
	return ocr.FixtureDetection{
		Quad:       [4][2]float64{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}},
		Text:       text,
		Confidence: confidence,
	}
}

// HolaMundo is the two-box line used across the test suites: "Hola" at
// x 10..50 and "Mundo" at x 40..90, both on y 20..40.
func HolaMundo() []ocr.FixtureDetection {
	return []ocr.FixtureDetection{
		Box(10, 20, 40, 20, "Hola", 0.9),
		Box(40, 20, 50, 20, "Mundo", 0.85),
	}
}

// SpanishPhrases is a small es->en phrase table for the dictionary translator.
func SpanishPhrases() map[string]string {
	return map[string]string{
		"Hola":       "Hello",
		"Mundo":      "World",
		"Hola Mundo": "Hello World",
		"Adiós":      "Goodbye",
		"Sí":         "Yes",
	}
}

// WriteFixture writes detections in the fixture engine's YAML format and
// returns the file path.
func WriteFixture(t testing.TB, dets []ocr.FixtureDetection) string {
	t.Helper()
	return WriteYAML(t, "fixture.yaml", ocr.FixtureFile{Detections: dets})
}

// WriteDictionary writes a phrase table for the dictionary translator and
// returns the file path.
func WriteDictionary(t testing.TB, phrases map[string]string) string {
	t.Helper()
	return WriteYAML(t, "dictionary.yaml", translate.DictionaryFile{Phrases: phrases})
}

// WriteYAML marshals v into name inside a fresh temp dir.
func WriteYAML(t testing.TB, name string, v any) string {
	t.Helper()
	data, err := yaml.Marshal(v)
	require.NoError(t, err)
	return WriteFile(t, name, data)
}

// WriteFile writes data into name inside a fresh temp dir.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
