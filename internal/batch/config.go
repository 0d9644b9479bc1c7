package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatText  = "text"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Images processed at once.
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings
	Format     string
	OutputFile string
	Quiet      bool

	// Record failed files in the result instead of aborting the run.
	ContinueOnError bool
}

// FileResult is the outcome for one image file.
type FileResult struct {
	File    string           `json:"file"`
	Entries []pipeline.Entry `json:"entries"`
	Error   string           `json:"error,omitempty"`
}

// Result holds the result of batch processing. Files keep discovery order.
type Result struct {
	Files       []FileResult
	Duration    time.Duration
	WorkerCount int
}

// Failed returns the number of files that could not be processed.
func (r *Result) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Files, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, err := fmt.Fprint(w, output)
		return err
	}

	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
	}
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	entries := 0
	for _, f := range r.Files {
		entries += len(f.Entries)
	}
	perImage := time.Duration(0)
	throughput := 0.0
	if n := len(r.Files); n > 0 {
		perImage = r.Duration / time.Duration(n)
		if r.Duration > 0 {
			throughput = float64(n) / r.Duration.Seconds()
		}
	}

	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", len(r.Files))
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(w, "  Entries: %d\n", entries)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", perImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", throughput)
}
