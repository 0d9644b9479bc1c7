package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/subtext/internal/batch"
	"github.com/MeKo-Tech/subtext/internal/config"
)

// batchCmd translates many image files with one pipeline.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Translate the text in many image files",
	Long: `Run OCR and translation on every image found in the given files and
directories. Images are processed in parallel on ocr.workers workers and
every entry is reported exactly as the server would report it.

Supported formats: PNG, JPEG, GIF, BMP, WebP

Examples:
  subtext batch shots/
  subtext batch shots/ --recursive --workers 8
  subtext batch a.png b.png --format csv --output results.csv
  subtext batch shots/ --include 'frame-*' --exclude '*_overlay.png'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	RootCmd.AddCommand(batchCmd)
	addPipelineFlags(batchCmd)

	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "only process files whose name matches these patterns")
	batchCmd.Flags().StringSlice("exclude", nil, "skip files whose name matches these patterns")
	batchCmd.Flags().StringP("format", "f", batch.FormatText, "output format: text, json, jsonl or csv")
	batchCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
	batchCmd.Flags().IntP("workers", "w", 0, "images processed at once (default ocr.workers)")
	batchCmd.Flags().Bool("continue-on-error", false, "record failed images and keep going")
	batchCmd.Flags().Bool("stats", false, "print processing statistics")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress informational output")
}

// configToBatchConfig maps the configuration and flags to batch.Config.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	flags := cmd.Flags()
	bc := &batch.Config{Workers: cfg.OCR.Workers}

	if flags.Changed("workers") {
		bc.Workers, _ = flags.GetInt("workers")
	}
	bc.Recursive, _ = flags.GetBool("recursive")
	bc.IncludePatterns, _ = flags.GetStringSlice("include")
	bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	bc.Format, _ = flags.GetString("format")
	bc.OutputFile, _ = flags.GetString("output")
	bc.Quiet, _ = flags.GetBool("quiet")
	bc.ContinueOnError, _ = flags.GetBool("continue-on-error")
	return bc
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	bc := configToBatchConfig(cfg, cmd)
	switch bc.Format {
	case batch.FormatText, batch.FormatJSON, batch.FormatJSONL, batch.FormatCSV:
	default:
		return fmt.Errorf("invalid format %q (must be one of: text, json, jsonl, csv)", bc.Format)
	}

	ctx := cmd.Context()
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("Pipeline cleanup error", "error", err)
		}
	}()

	result, err := batch.ProcessBatch(ctx, p, args, bc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := result.SaveResults(out, bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		result.PrintStats(out, bc.Quiet)
	}

	slog.Info("Batch finished",
		"images", len(result.Files),
		"failed", result.Failed(),
		"duration", result.Duration.String())
	return nil
}
