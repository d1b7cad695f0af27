// Package worker runs independent completion tasks on a bounded pool of
// goroutines.
//
// Tasks share nothing but what the caller closes over. Results are returned in
// input order regardless of completion order.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/proofpilot/pkg/logger"
)

var defaultNumWorkers uint = 3

// Config is the configuration options for the worker pool.
type Config struct {
	// NumWorkers is the number of tasks run at once (defaults to 3).
	NumWorkers uint

	// Logger is the operational logger.
	Logger *slog.Logger
}

// Pool runs batches of tasks with bounded concurrency.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool validates c and returns a pool.
func NewPool(c Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return &Pool{workers: int(c.NumWorkers), logger: c.Logger}, nil
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Run applies fn to every item with at most p.Workers() calls in flight and
// returns the results in input order. fn must report failures through its
// result; Run itself only stops early when ctx is done, leaving the results
// of unstarted items as the zero value.
func Run[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) R) ([]R, error) {
	results := make([]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.logger.Debug("task started", "index", i)
			results[i] = fn(gctx, item)
			p.logger.Debug("task finished", "index", i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
