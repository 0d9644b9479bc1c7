package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// processSingleImage reads one file and runs it through the pipeline. The
// request ID is derived from the file name so log lines and report rows can
// be traced back to it.
func processSingleImage(ctx context.Context, p Processor, path string) ([]pipeline.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	ctx = pipeline.WithRequestID(ctx, "batch:"+filepath.Base(path))
	entries, err := p.ProcessImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// processImagesParallel processes images on a fixed number of workers.
// Results keep the order of paths. Without continueOnError the first failure
// cancels the remaining work and is returned.
func processImagesParallel(ctx context.Context, p Processor, paths []string, workers int,
	continueOnError bool) ([]FileResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]FileResult, len(paths))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for range min(workers, len(paths)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entries, err := processSingleImage(ctx, p, paths[i])
				if entries == nil {
					entries = []pipeline.Entry{}
				}
				results[i] = FileResult{File: paths[i], Entries: entries}
				if err == nil {
					continue
				}

				results[i].Error = err.Error()
				if continueOnError {
					slog.Warn("Image failed, continuing", "file", paths[i], "error", err)
					continue
				}
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
