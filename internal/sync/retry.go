package sync

import (
	"time"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

// Policy is the pure retry scheduler consumed by the batch loop:
// attempt ceiling plus an exponential backoff schedule, decoupled from
// any I/O.
type Policy struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// PolicyFor maps a strategy name to its schedule. Fast mode halves
// the delays, trading safety margins for throughput.
func PolicyFor(strategy dto.RetryStrategy, enabled, fast bool) Policy {
	var p Policy
	switch strategy {
	case dto.RetryAggressive:
		p = Policy{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, Multiplier: 1.5}
	case dto.RetryConservative:
		p = Policy{MaxAttempts: 2, BaseDelay: time.Second, Multiplier: 3}
	default: // balanced
		p = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2}
	}
	p.Enabled = enabled
	if !enabled {
		p.MaxAttempts = 1
	}
	if fast {
		p.BaseDelay /= 2
	}
	return p
}

// ShouldRetry reports whether another attempt remains after `attempt`
// failures (attempt is 1-based).
func (p Policy) ShouldRetry(attempt int) bool {
	return p.Enabled && attempt < p.MaxAttempts
}

// Delay returns the backoff before attempt n+1, given n failures.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return d
}
