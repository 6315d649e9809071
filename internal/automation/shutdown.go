package automation

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultShutdownCheckInterval is how often the daily shutdown time is checked.
const DefaultShutdownCheckInterval = 60 * time.Second

// ShutdownChecker periodically asks the engine whether the daily shutdown
// minute has arrived.
type ShutdownChecker struct {
	engine   *Engine
	clock    clockwork.Clock
	interval time.Duration
	logger   Logger
}

// NewShutdownChecker creates a checker. A non-positive interval falls back
// to DefaultShutdownCheckInterval.
func NewShutdownChecker(engine *Engine, clock clockwork.Clock, interval time.Duration, logger Logger) *ShutdownChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultShutdownCheckInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &ShutdownChecker{
		engine:   engine,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Run checks once per interval until ctx is cancelled. It always returns
// nil so it can run under an errgroup without cancelling its siblings.
func (c *ShutdownChecker) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("daily shutdown checker started", "interval", c.interval.String())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("daily shutdown checker stopped")
			return nil
		case now := <-ticker.Chan():
			c.engine.CheckDailyShutdown(now)
		}
	}
}
