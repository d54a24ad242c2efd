package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Completer periodically sweeps APPROVED requests whose absence window
// has elapsed and moves them to COMPLETED.
type Completer struct {
	service  *Service
	interval time.Duration
	log      zerolog.Logger
}

func NewCompleter(service *Service, interval time.Duration, log zerolog.Logger) *Completer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Completer{
		service:  service,
		interval: interval,
		log:      log.With().Str("component", "completer").Logger(),
	}
}

func (c *Completer) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Info().Dur("interval", c.interval).Msg("completer started")
	defer c.log.Info().Msg("completer stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := c.service.CompleteElapsed(ctx, now.UTC()); err != nil {
				c.log.Error().Err(err).Msg("completion sweep failed")
			}
		}
	}
}
