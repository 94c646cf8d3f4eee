package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"yelpetl/internal/cleaner"
	"yelpetl/internal/config"
	"yelpetl/internal/loader"
	"yelpetl/internal/merger"
	"yelpetl/internal/metrics"
	"yelpetl/internal/reporter"
	"yelpetl/internal/sampler"
	"yelpetl/internal/storage"
)

// newRepositoryFn indirects storage.New so tests can install a fake backend
// without touching the registry.
var newRepositoryFn = storage.New

// stageFn runs one pipeline stage and reports how many rows it handled.
// Stages that have no meaningful row count return 0.
type stageFn func(ctx context.Context, p *config.Pipeline) (int64, error)

// stages maps task names to their implementations. "all" is handled
// separately in runTask because it owns the ordering between stages.
var stages = map[string]stageFn{
	"sample-business": runSampleBusiness,
	"sample-review":   runSampleReview,
	"merge":           runMerge,
	"load":            runLoad,
	"report":          runReport,
	"clean":           runClean,
}

// taskNames lists the accepted -task values in execution order.
var taskNames = []string{
	"sample-business", "sample-review", "merge", "load", "report", "clean", "all",
}

// runTask executes a single named stage, or the full graph for "all".
// Per-stage retries come from p.Runtime; an external orchestrator that runs
// one stage per invocation gets the same retry behavior per stage.
func runTask(ctx context.Context, task string, p *config.Pipeline) error {
	if task == "all" {
		return runAll(ctx, p)
	}
	fn, ok := stages[task]
	if !ok {
		return fmt.Errorf("unknown task %q (valid: %v)", task, taskNames)
	}
	return runStage(ctx, task, p, fn)
}

// runAll drives the full task graph: both samplers concurrently, then
// merge, load, report, and clean in sequence. The first stage failure
// (after retries) aborts the run; clean does not execute on a failed run so
// the intermediates stay available for inspection.
func runAll(ctx context.Context, p *config.Pipeline) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runStage(gctx, "sample-business", p, runSampleBusiness)
	})
	g.Go(func() error {
		return runStage(gctx, "sample-review", p, runSampleReview)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, task := range []string{"merge", "load", "report", "clean"} {
		if err := runStage(ctx, task, p, stages[task]); err != nil {
			return err
		}
	}
	return nil
}

// runStage wraps one stage with the retry policy and metrics. Attempts are
// 1 + p.Runtime.Retries, with a fixed delay between them.
func runStage(ctx context.Context, task string, p *config.Pipeline, fn stageFn) error {
	attempts := 1 + p.Runtime.Retries
	delay := time.Duration(p.Runtime.RetryDelayMS) * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		var rows int64
		rows, err = fn(ctx, p)
		metrics.RecordStage(p.Job, task, err, time.Since(start))
		if err == nil {
			metrics.RecordRows(p.Job, task, rows)
			return nil
		}

		log.Printf("runner: task=%s attempt=%d/%d failed: %v", task, attempt, attempts, err)
		if attempt < attempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("task %s failed after %d attempts: %w", task, attempts, err)
}

func runSampleBusiness(ctx context.Context, p *config.Pipeline) (int64, error) {
	n, err := sampler.Run(ctx, sampler.Config{
		Input:      p.Datasets.Business.Input,
		Output:     p.Datasets.Business.Output,
		SampleSize: p.SampleSize,
	})
	return int64(n), err
}

func runSampleReview(ctx context.Context, p *config.Pipeline) (int64, error) {
	n, err := sampler.Run(ctx, sampler.Config{
		Input:      p.Datasets.Review.Input,
		Output:     p.Datasets.Review.Output,
		SampleSize: p.SampleSize,
	})
	return int64(n), err
}

func runMerge(ctx context.Context, p *config.Pipeline) (int64, error) {
	n, err := merger.Run(ctx, merger.Config{
		BusinessCSV: p.Datasets.Business.Output,
		ReviewCSV:   p.Datasets.Review.Output,
		Output:      p.Merge.Output,
		MaxRows:     p.Merge.MaxRows,
		TextLimit:   p.Merge.TextLimit,
	})
	return int64(n), err
}

func runLoad(ctx context.Context, p *config.Pipeline) (int64, error) {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind: p.Storage.Kind,
		DSN:  p.Storage.DB.DSN,
	})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	return loader.Run(ctx, repo, loader.Config{
		CSV:    p.Merge.Output,
		Schema: p.Storage.DB.Schema,
		Table:  p.Storage.DB.Table,
		Append: p.Storage.DB.Append,
	})
}

func runReport(ctx context.Context, p *config.Pipeline) (int64, error) {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind: p.Storage.Kind,
		DSN:  p.Storage.DB.DSN,
	})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	err = reporter.Run(ctx, repo, reporter.Config{
		Schema:  p.Storage.DB.Schema,
		Table:   p.Storage.DB.Table,
		Limit:   p.Report.Limit,
		Chart:   p.Report.Chart,
		Options: p.Report.Options,
	})
	return 0, err
}

func runClean(ctx context.Context, p *config.Pipeline) (int64, error) {
	n, err := cleaner.Run(p.IntermediateDir)
	return int64(n), err
}
