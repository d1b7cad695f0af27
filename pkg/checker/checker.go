// Package checker talks to the external proof checker: one candidate in, one
// verdict out.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/logger"
	"github.com/papercomputeco/proofpilot/pkg/proof"
)

// ErrTimeout is returned when a checker call exceeds its time limit. It is a
// failure of that candidate only, distinct from a verdict.
var ErrTimeout = errors.New("proof checker timed out")

// Position locates the candidate in its document.
type Position struct {
	URI  string        `json:"uri"`
	Hole document.Hole `json:"hole"`
}

// Checker validates one candidate proof.
type Checker interface {
	Check(ctx context.Context, candidate string, at Position) (proof.Verdict, error)
}

// Func adapts a function to Checker.
type Func func(ctx context.Context, candidate string, at Position) (proof.Verdict, error)

func (f Func) Check(ctx context.Context, candidate string, at Position) (proof.Verdict, error) {
	return f(ctx, candidate, at)
}

// Config configures a Pool.
type Config struct {
	// Checker does the work.
	Checker Checker

	// Size caps concurrent checker calls. Defaults to 1.
	Size int64

	// Timeout bounds one call. Zero means no limit.
	Timeout time.Duration

	// Logger is the operational logger.
	Logger *slog.Logger
}

// Pool hands out exclusive use of the checker for one validate-and-respond
// cycle at a time per slot.
type Pool struct {
	checker Checker
	slots   *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger
}

func NewPool(cfg Config) (*Pool, error) {
	if cfg.Checker == nil {
		return nil, errors.New("checker pool requires a checker")
	}
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Pool{
		checker: cfg.Checker,
		slots:   semaphore.NewWeighted(cfg.Size),
		timeout: cfg.Timeout,
		logger:  logger.Named(cfg.Logger, "checker"),
	}, nil
}

// Validate acquires a slot, checks candidate and releases the slot on every
// exit path. Cancelling ctx only interrupts the wait for a slot: once the call
// is issued it runs until it answers or hits the timeout.
func (p *Pool) Validate(ctx context.Context, candidate string, at Position) (proof.Verdict, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return proof.Verdict{}, fmt.Errorf("acquiring proof checker: %w", err)
	}
	defer p.slots.Release(1)

	callCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	verdict, err := p.checker.Check(callCtx, candidate, at)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			p.logger.Warn("proof checker timed out",
				"hole_id", at.Hole.ID,
				"timeout", p.timeout,
			)
			return proof.Verdict{}, fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
		}
		return proof.Verdict{}, fmt.Errorf("checking proof: %w", err)
	}

	p.logger.Debug("proof checked",
		"hole_id", at.Hole.ID,
		"valid", verdict.IsValid,
		"elapsed", time.Since(start),
	)
	return verdict, nil
}
