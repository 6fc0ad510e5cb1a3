package tracker

import (
	"time"

	"github.com/facebookgo/clock"
)

// Config holds the timings of the confirmation loop.
//
// Fields:
// - PollInterval: how often the fallback poll fires.
// - MinCheckSpacing: the minimum time between two receipt queries; negative disables it.
// - MaxRetries: the number of backoff retries after provider errors before tracking ends in error.
// - InitialRetryDelay: the first backoff delay, doubled on every further error.
// - Confirmations: the confirmations requested from the push path.
// - MaxPollDuration: how long a not-yet-mined transaction is polled; negative polls forever.
//
// Zero fields take the values of DefaultConfig.
type Config struct {
	PollInterval      time.Duration
	MinCheckSpacing   time.Duration
	MaxRetries        int
	InitialRetryDelay time.Duration
	Confirmations     uint64
	MaxPollDuration   time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:      5 * time.Second,
		MinCheckSpacing:   5 * time.Second,
		MaxRetries:        3,
		InitialRetryDelay: time.Second,
		Confirmations:     1,
		MaxPollDuration:   10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	switch {
	case c.MinCheckSpacing == 0:
		c.MinCheckSpacing = d.MinCheckSpacing
	case c.MinCheckSpacing < 0:
		c.MinCheckSpacing = 0
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = d.InitialRetryDelay
	}
	if c.Confirmations == 0 {
		c.Confirmations = d.Confirmations
	}
	switch {
	case c.MaxPollDuration == 0:
		c.MaxPollDuration = d.MaxPollDuration
	case c.MaxPollDuration < 0:
		c.MaxPollDuration = 0
	}
	return c
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) Option {
	return func(t *Tracker) {
		t.clk = clk
	}
}
