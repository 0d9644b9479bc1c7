package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/subtext/internal/ocr"
)

// buildJob is one detection waiting for translation.
type buildJob struct {
	index int
	det   ocr.Detection
}

// buildResult is the outcome of building one detection.
type buildResult struct {
	index int
	entry Entry
	ok    bool
	err   error
}

// buildEntries builds entries for dets on up to workers goroutines. Entries
// keep detection order. The first failure cancels the remaining work.
func (p *Pipeline) buildEntries(ctx context.Context, dets []ocr.Detection) ([]Entry, error) {
	workers := min(p.cfg.TranslateWorkers, len(dets))
	if workers <= 1 {
		return p.buildSequential(ctx, dets)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan buildJob, len(dets))
	results := make(chan buildResult, len(dets))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, d := range dets {
			select {
			case jobs <- buildJob{index: i, det: d}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	built := make([]buildResult, len(dets))
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("detection %d: %w", r.index, r.err)
			cancel()
		}
		built[r.index] = r
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dets))
	for _, r := range built {
		if r.ok {
			entries = append(entries, r.entry)
		}
	}
	return entries, nil
}

func (p *Pipeline) buildSequential(ctx context.Context, dets []ocr.Detection) ([]Entry, error) {
	entries := make([]Entry, 0, len(dets))
	for i, d := range dets {
		e, ok, err := p.builder.Build(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// worker builds detections from the jobs channel.
func (p *Pipeline) worker(ctx context.Context, jobs <-chan buildJob, results chan<- buildResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			e, built, err := p.builder.Build(ctx, job.det)
			select {
			case results <- buildResult{index: job.index, entry: e, ok: built, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
