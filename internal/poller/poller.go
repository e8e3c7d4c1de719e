package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clothai/clothai/internal/gateway"
	"github.com/clothai/clothai/pkg/models"
)

// Sentinel errors for terminal poll outcomes. Callers must be able to tell
// "the provider says it failed" apart from "we stopped waiting".
var (
	ErrExecutionFailed = errors.New("execution failed")
	ErrWaitTimeout     = errors.New("timed out waiting for execution")
)

const (
	DefaultMaxRetries = 30
	DefaultInterval   = 5 * time.Second
)

// state is the tagged outcome of a single poll tick.
type state int

const (
	stateInFlight state = iota
	stateSucceeded
	stateFailed
)

// Poller drives repeated status checks for a triggered execution until it
// reaches a terminal state or the retry budget is exhausted. Backoff is
// constant: job latency on the provider is roughly bounded and known.
type Poller struct {
	gateway    gateway.Client
	maxRetries int
	interval   time.Duration
}

// New creates a Poller. Non-positive maxRetries or interval fall back to
// the defaults.
func New(gw gateway.Client, maxRetries int, interval time.Duration) *Poller {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{gateway: gw, maxRetries: maxRetries, interval: interval}
}

// Wait polls the execution until it succeeds, the provider reports failure,
// the retry budget runs out, or ctx is cancelled. A transport failure on a
// status fetch is transient: it consumes one retry unit and the loop keeps
// going. Cancellation propagates between ticks via ctx.
func (p *Poller) Wait(ctx context.Context, executionID string) (*models.Execution, error) {
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		snapshot, err := p.gateway.GetExecution(ctx, executionID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Warn("status fetch failed, will retry",
				"execution_id", executionID,
				"attempt", attempt,
				"max_retries", p.maxRetries,
				"error", err,
			)
			if err := p.pause(ctx); err != nil {
				return nil, err
			}
			continue
		}

		switch classify(snapshot) {
		case stateSucceeded:
			slog.Info("execution succeeded",
				"execution_id", executionID, "attempt", attempt)
			return snapshot, nil
		case stateFailed:
			detail := snapshot.ErrorDetail
			if detail == "" {
				detail = "unknown error"
			}
			slog.Error("execution failed",
				"execution_id", executionID, "status", snapshot.Status, "error", detail)
			return nil, fmt.Errorf("%w: %s", ErrExecutionFailed, detail)
		default:
			slog.Info("execution in flight",
				"execution_id", executionID,
				"status", snapshot.Status,
				"attempt", attempt,
				"max_retries", p.maxRetries,
			)
			if err := p.pause(ctx); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", ErrWaitTimeout, executionID, p.maxRetries)
}

// pause waits one interval or until ctx is cancelled.
func (p *Poller) pause(ctx context.Context) error {
	select {
	case <-time.After(p.interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classify maps a normalized snapshot to a tagged tick state. Anything that
// is not a recognized terminal token counts as still in flight.
func classify(snapshot *models.Execution) state {
	switch {
	case snapshot.Status == models.StatusSucceeded:
		return stateSucceeded
	case snapshot.Status.IsFailure():
		return stateFailed
	default:
		return stateInFlight
	}
}

// Budget returns the worst-case wall-clock duration of one Wait call, used
// by callers to derive watcher deadlines.
func (p *Poller) Budget() time.Duration {
	return time.Duration(p.maxRetries) * p.interval
}
