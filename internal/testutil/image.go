package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextLine is a string drawn with its baseline origin at (X, Y).
type TextLine struct {
	Text string
	X, Y int
}

// ScreenshotConfig describes a synthetic screenshot.
type ScreenshotConfig struct {
	Width, Height int
	Background    color.Color
	Foreground    color.Color
	Lines         []TextLine
}

// DefaultScreenshotConfig returns a 320x240 black-on-white canvas with no text.
func DefaultScreenshotConfig() ScreenshotConfig {
	return ScreenshotConfig{
		Width:      320,
		Height:     240,
		Background: color.White,
		Foreground: color.Black,
	}
}

// RenderScreenshot draws the configured lines with the 7x13 bitmap font.
func RenderScreenshot(cfg ScreenshotConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{cfg.Foreground},
		Face: basicfont.Face7x13,
	}
	for _, line := range cfg.Lines {
		drawer.Dot = fixed.P(line.X, line.Y)
		drawer.DrawString(line.Text)
	}
	return img
}

// TextWidth returns the rendered width of s in pixels.
func TextWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// EncodePNG encodes img and fails the test on error.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// BlankPNG returns a white w x h PNG.
func BlankPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	cfg := DefaultScreenshotConfig()
	cfg.Width, cfg.Height = w, h
	return EncodePNG(t, RenderScreenshot(cfg))
}
