package support

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"strconv"

	"github.com/cucumber/godog"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/testutil"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// theOCREngineDetects records the detections the fixture engine replays.
// The table columns are x, y, w, h, text and confidence.
func (testCtx *TestContext) theOCREngineDetects(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("detection table needs a header and at least one row")
	}

	header := map[string]int{}
	for i, cell := range table.Rows[0].Cells {
		header[cell.Value] = i
	}
	for _, col := range []string{"x", "y", "w", "h", "text", "confidence"} {
		if _, ok := header[col]; !ok {
			return fmt.Errorf("detection table is missing column %q", col)
		}
	}

	for _, row := range table.Rows[1:] {
		num := func(col string) (float64, error) {
			v, err := strconv.ParseFloat(row.Cells[header[col]].Value, 64)
			if err != nil {
				return 0, fmt.Errorf("column %s: %w", col, err)
			}
			return v, nil
		}

		var vals [5]float64
		for i, col := range []string{"x", "y", "w", "h", "confidence"} {
			v, err := num(col)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		text := row.Cells[header["text"]].Value
		testCtx.Detections = append(testCtx.Detections,
			testutil.Box(vals[0], vals[1], vals[2], vals[3], text, vals[4]))
	}
	return nil
}

// theOCREngineDetectsTheHolaMundoLine uses the shared two-box fixture.
func (testCtx *TestContext) theOCREngineDetectsTheHolaMundoLine() error {
	testCtx.Detections = append(testCtx.Detections, testutil.HolaMundo()...)
	return nil
}

// theDictionaryTranslates records source/target phrase pairs.
func (testCtx *TestContext) theDictionaryTranslates(table *godog.Table) error {
	for i, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("dictionary row %d needs two cells", i+1)
		}
		if i == 0 && row.Cells[0].Value == "source" {
			continue
		}
		testCtx.Phrases[row.Cells[0].Value] = row.Cells[1].Value
	}
	return nil
}

// theDictionaryHasTheSpanishPhrases uses the shared es->en phrase table.
func (testCtx *TestContext) theDictionaryHasTheSpanishPhrases() error {
	for k, v := range testutil.SpanishPhrases() {
		testCtx.Phrases[k] = v
	}
	return nil
}

func (testCtx *TestContext) mergingIs(state string) error {
	testCtx.Config.Pipeline.MergeXOverlapping = state == "enabled"
	return nil
}

func (testCtx *TestContext) mergingIsEnabledWithMaxYDiff(maxYDiff int) error {
	testCtx.Config.Pipeline.MergeXOverlapping = true
	testCtx.Config.Pipeline.MergeMaxYDiff = maxYDiff
	return nil
}

func (testCtx *TestContext) theMinimumConfidenceIs(v float64) error {
	testCtx.Config.Pipeline.MinConfidence = v
	return nil
}

func (testCtx *TestContext) theReportFileIsDisabled() error {
	testCtx.Config.Report.FilePath = ""
	return nil
}

// writeInputs writes the fixture and dictionary files and points the
// configuration at them.
func (testCtx *TestContext) writeInputs() error {
	fixture, err := yaml.Marshal(ocr.FixtureFile{Detections: testCtx.Detections})
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	fixturePath := testCtx.TempPath("fixture.yaml")
	if err := os.WriteFile(fixturePath, fixture, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	dict, err := yaml.Marshal(translate.DictionaryFile{Phrases: testCtx.Phrases})
	if err != nil {
		return fmt.Errorf("marshal dictionary: %w", err)
	}
	dictPath := testCtx.TempPath("dictionary.yaml")
	if err := os.WriteFile(dictPath, dict, 0o644); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}

	testCtx.Config.OCR.Fixture.Path = fixturePath
	testCtx.Config.Translate.Dictionary.Path = dictPath
	return nil
}

// screenshot renders the detected texts onto a PNG at their box origins.
func (testCtx *TestContext) screenshot() ([]byte, error) {
	cfg := testutil.DefaultScreenshotConfig()
	for _, d := range testCtx.Detections {
		cfg.Lines = append(cfg.Lines, testutil.TextLine{
			Text: d.Text,
			X:    int(d.Quad[0][0]),
			Y:    int(d.Quad[3][1]),
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, testutil.RenderScreenshot(cfg)); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// writeScreenshot stores the rendered screenshot and returns its path.
func (testCtx *TestContext) writeScreenshot() (string, error) {
	data, err := testCtx.screenshot()
	if err != nil {
		return "", err
	}
	path := testCtx.TempPath("screenshot.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// RegisterFixtureSteps registers the steps describing the OCR and
// translation inputs of a scenario.
func (testCtx *TestContext) RegisterFixtureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the OCR engine detects:$`, testCtx.theOCREngineDetects)
	sc.Step(`^the OCR engine detects the "Hola Mundo" line$`, testCtx.theOCREngineDetectsTheHolaMundoLine)
	sc.Step(`^the dictionary translates:$`, testCtx.theDictionaryTranslates)
	sc.Step(`^the dictionary has the Spanish phrases$`, testCtx.theDictionaryHasTheSpanishPhrases)
	sc.Step(`^merging of overlapping boxes is (enabled|disabled)$`, testCtx.mergingIs)
	sc.Step(`^merging is enabled with a maximum y difference of (\d+)$`, testCtx.mergingIsEnabledWithMaxYDiff)
	sc.Step(`^the minimum confidence is ([0-9.]+)$`, testCtx.theMinimumConfidenceIs)
	sc.Step(`^the report file is disabled$`, testCtx.theReportFileIsDisabled)
}
