package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// translateCmd runs the pipeline once on an image file.
var translateCmd = &cobra.Command{
	Use:   "translate <image>",
	Short: "Translate the text in one image file",
	Long: `Run OCR and translation on a single image and print the entries as JSON,
exactly as the server would answer a POST with the same bytes.

Examples:
  subtext translate screenshot.png
  subtext translate screenshot.png --engine fixture --provider dictionary`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	RootCmd.AddCommand(translateCmd)
	addPipelineFlags(translateCmd)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
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

	entries, err := p.ProcessImage(pipeline.WithRequestID(ctx, "cli"), data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
