package gst

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// RestartConfig contains configuration for exponential backoff restarts.
type RestartConfig struct {
	MaxRetries    int           // maximum restart attempts (default 5)
	RetryDelay    time.Duration // initial retry delay (default 1s)
	MaxRetryDelay time.Duration // retry delay cap (default 30s)
}

// DefaultRestartConfig returns the default restart configuration.
func DefaultRestartConfig() RestartConfig {
	return RestartConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// RestartState tracks restart attempts across pipeline supervision cycles.
type RestartState struct {
	CurrentRetries int
	Restarts       *uint32 // atomic counter, total restart attempts
}

// RunFunc supervises a running pipeline until it fails or ctx is cancelled.
type RunFunc func(ctx context.Context) error

// RunWithRestart executes runFn with exponential backoff between failures.
//
// Backoff schedule with defaults: 1s, 2s, 4s, 8s, 16s, then stop. A clean
// return (nil) resets the retry counter. Returns an error once max retries
// are exceeded, or ctx.Err() on cancellation.
func RunWithRestart(ctx context.Context, runFn RunFunc, cfg RestartConfig, state *RestartState, log zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("context cancelled, stopping restart loop")
			return ctx.Err()
		default:
		}

		err := runFn(ctx)
		if err == nil {
			state.CurrentRetries = 0
			return nil
		}

		log.Error().Err(err).Msg("capture pipeline failed")

		state.CurrentRetries++
		atomic.AddUint32(state.Restarts, 1)
		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("max restarts exceeded (%d attempts)", cfg.MaxRetries)
		}

		delay := backoffDelay(state.CurrentRetries, cfg)
		log.Warn().
			Int("attempt", state.CurrentRetries).
			Int("max_retries", cfg.MaxRetries).
			Dur("delay", delay).
			Msg("restarting capture pipeline")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			log.Info().Msg("context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// backoffDelay computes retryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func backoffDelay(attempt int, cfg RestartConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

// ResetRestartState resets the retry counter after a successful recovery.
func ResetRestartState(state *RestartState) {
	state.CurrentRetries = 0
}
