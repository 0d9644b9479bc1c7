// Package batch translates many image files in one run, reusing the same
// pipeline the server uses.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// Processor runs the pipeline on one image.
type Processor interface {
	ProcessImage(ctx context.Context, image []byte) ([]pipeline.Entry, error)
}

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers the images named by paths and runs p on each.
func ProcessBatch(ctx context.Context, p Processor, paths []string, config *Config) (*Result, error) {
	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}

	startTime := time.Now()
	results, err := processImagesParallel(ctx, p, files, workers, config.ContinueOnError)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{
		Files:       results,
		Duration:    duration,
		WorkerCount: workers,
	}, nil
}
