package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/subtext/internal/config"
	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/pipeline"
	"github.com/MeKo-Tech/subtext/internal/report"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// buildPipeline constructs the OCR engine, the translator and the report
// sinks up front and wires them into a pipeline. Everything built so far is
// closed again when a later step fails.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	engine, err := ocr.New(ctx, cfg.ToOCRConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	translator, err := translate.New(ctx, cfg.ToTranslateConfig())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create translator: %w", err), engine.Close())
	}

	sink, err := report.New(ctx, cfg.ToReportConfig())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open report: %w", err), engine.Close(), translator.Close())
	}

	p, err := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithEngine(engine).
		WithTranslator(translator).
		WithSink(sink).
		Build()
	if err != nil {
		return nil, errors.Join(err, engine.Close(), translator.Close(), sink.Close())
	}

	slog.Info("Pipeline ready",
		"engine", cfg.OCR.Engine,
		"source_lang", cfg.OCR.SourceLang,
		"provider", cfg.Translate.Provider,
		"target_lang", cfg.Translate.TargetLang,
		"merge", cfg.Pipeline.MergeXOverlapping,
		"report_sinks", sink.Len())
	return p, nil
}
