// Package batch runs several independent compression sessions with bounded
// concurrency, so that peak memory stays at a fixed number of decoded rasters.
package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/logger"
)

// Item is one input of a batch.
type Item struct {
	Name        string
	Data        []byte
	Constraints compressor.Constraints
}

// ItemResult is the outcome for the Item at the same index.
type ItemResult struct {
	Name       string
	Result     *compressor.Result
	Error      error
	StartedAt  time.Time
	FinishedAt time.Time
}

// ProgressFunc receives per-item progress tagged with the item index.
type ProgressFunc func(index int, percent int)

// Runner dispatches items to a fixed pool of workers.
type Runner struct {
	compressor compressor.Compressor
	workers    int
	logger     *logrus.Logger
}

// NewRunner returns a Runner with the given worker count (minimum 1).
func NewRunner(c compressor.Compressor, workers int, log *logrus.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		compressor: c,
		workers:    max(workers, 1),
		logger:     log,
	}
}

// Run compresses all items and returns results in input order. Items not
// started before ctx is cancelled get ctx.Err() as their error.
func (r *Runner) Run(ctx context.Context, items []Item, onProgress ProgressFunc) []ItemResult {
	type job struct {
		index int
		item  Item
	}
	type result struct {
		index int
		res   ItemResult
	}

	results := make([]ItemResult, len(items))
	if len(items) == 0 {
		return results
	}

	numWorkers := min(r.workers, len(items))
	jobs := make(chan job, len(items))
	out := make(chan result, len(items))

	for w := 0; w < numWorkers; w++ {
		go func() {
			for j := range jobs {
				out <- result{index: j.index, res: r.runOne(ctx, j.index, j.item, onProgress)}
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)

	for range items {
		res := <-out
		results[res.index] = res.res
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, index int, item Item, onProgress ProgressFunc) ItemResult {
	res := ItemResult{Name: item.Name, StartedAt: time.Now()}
	if err := ctx.Err(); err != nil {
		res.Error = err
		res.FinishedAt = time.Now()
		return res
	}

	var progress compressor.ProgressFunc
	if onProgress != nil {
		progress = func(p int) { onProgress(index, p) }
	}

	out, err := r.compressor.Compress(ctx, item.Data, item.Constraints, progress)
	res.FinishedAt = time.Now()
	if err != nil {
		logger.WithOperation(r.logger, "compress").WithField("input", item.Name).WithError(err).Warn("Compression failed")
		res.Error = err
		return res
	}
	res.Result = out
	return res
}

// LoadFiles reads paths into Items sharing the same constraints.
func LoadFiles(paths []string, cons compressor.Constraints) ([]Item, error) {
	items := make([]Item, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		items = append(items, Item{Name: path, Data: data, Constraints: cons})
	}
	return items, nil
}
