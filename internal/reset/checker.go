// Package reset runs the periodic day-rollover check
package reset

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
)

// Engine is the slice of the break engine the checker needs. Today comes
// from the engine's own clock so the checker can never disagree with the
// date keys the engine writes under.
type Engine interface {
	Today() string
	CheckAndReset(ctx context.Context, today string) (bool, error)
}

// Checker periodically asks the engine to perform the daily reset. The
// engine's marker makes the call idempotent, so the interval only bounds how
// late after midnight the reset can fire.
type Checker struct {
	engine   Engine
	interval time.Duration
	logger   zerolog.Logger
}

// NewChecker creates a new Checker
func NewChecker(engine Engine, interval time.Duration, logger zerolog.Logger) *Checker {
	return &Checker{
		engine:   engine,
		interval: interval,
		logger:   logger.With().Str("component", "reset_checker").Logger(),
	}
}

// Start begins the check loop. One check runs immediately so a restart after
// midnight does not wait a full interval.
func (c *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", c.interval).Msg("reset checker started")
	c.check(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("reset checker stopped")
			return

		case <-ticker.C:
			c.check(ctx)
		}
	}
}

func (c *Checker) check(ctx context.Context) {
	today := c.engine.Today()

	performed, err := c.engine.CheckAndReset(ctx, today)
	if err != nil {
		c.logger.Error().Err(err).Str("date", today).Msg("daily reset check failed")
		return
	}
	if performed {
		metrics.Get().RecordReset()
		c.logger.Info().Str("date", today).Msg("daily reset triggered")
	}
}
