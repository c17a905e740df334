// Package sweeper runs the periodic expiry pass over pending suggestions.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Ledger is the slice of the suggestion service the sweeper needs.
type Ledger interface {
	SweepExpired(ctx context.Context) (int, error)
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// Sweeper periodically expires pending suggestions past their approval
// window. The sweep never runs synchronously inside a read path; reads
// filter expired suggestions on their own and the sweep catches up here.
type Sweeper struct {
	ledger   Ledger
	logger   *slog.Logger
	interval time.Duration
}

func New(ledger Ledger, opts ...Option) *Sweeper {
	s := &Sweeper{
		ledger:   ledger,
		logger:   slog.Default(),
		interval: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs sweeps until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			startTime := time.Now()
			swept, err := s.ledger.SweepExpired(ctx)
			duration := time.Since(startTime)

			if err != nil {
				s.logger.Error("suggestion_expiry_sweep_failed",
					"error", err,
					"swept", swept,
					"duration_ms", duration.Milliseconds(),
				)
				continue
			}
			if swept > 0 {
				s.logger.Info("suggestion_expiry_sweep_completed",
					"swept", swept,
					"duration_ms", duration.Milliseconds(),
				)
			}

		case <-ctx.Done():
			s.logger.Info("suggestion expiry sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}
