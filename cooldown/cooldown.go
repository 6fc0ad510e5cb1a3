// Package cooldown keeps the per-address 24 hour gate between qualifying actions.
//
// The gate lives in local storage only. It is a UX convenience, clearing the
// store resets it, and the contract remains the only authority on what a user
// may do.
package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/storage"
)

const (
	// Duration is the length of the cooldown window.
	Duration = 24 * time.Hour
	// RefreshInterval is how often Watch recomputes the remaining time.
	RefreshInterval = time.Second

	keyPrefix = "lastTransaction-"
)

// State is the cooldown of one address at a point in time.
type State struct {
	Address    common.Address
	OnCooldown bool
	Remaining  time.Duration
}

// Formatted returns the remaining time as HH:MM:SS.
func (s State) Formatted() string {
	return FormatRemaining(s.Remaining)
}

// Gate reads and stamps last-action times.
type Gate struct {
	store  storage.KeyValueStore
	logger *logrus.Logger
	clk    clock.Clock
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(g *Gate) {
		g.clk = clk
	}
}

// NewGate creates a gate on top of store.
func NewGate(store storage.KeyValueStore, logger *logrus.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	g := &Gate{store: store, logger: logger, clk: clock.New()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key returns the storage key of an address.
func Key(addr common.Address) string {
	return keyPrefix + addr.Hex()
}

// LastAction returns the time of the last qualifying action. The boolean is
// false when none was recorded or the stored value is unreadable.
func (g *Gate) LastAction(ctx context.Context, addr common.Address) (time.Time, bool, error) {
	raw, ok, err := g.store.Get(ctx, Key(addr))
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "failed to read cooldown of %s", addr.Hex())
	}
	if !ok {
		return time.Time{}, false, nil
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"address": addr.Hex(),
			"value":   raw,
		}).Warn("Ignoring malformed cooldown timestamp")
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// Remaining returns max(0, Duration - (now - last)).
func (g *Gate) Remaining(ctx context.Context, addr common.Address) (time.Duration, error) {
	last, ok, err := g.LastAction(ctx, addr)
	if err != nil || !ok {
		return 0, err
	}

	remaining := Duration - g.clk.Now().Sub(last)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > Duration {
		remaining = Duration
	}
	return remaining, nil
}

// Check returns the current state of addr.
func (g *Gate) Check(ctx context.Context, addr common.Address) (State, error) {
	remaining, err := g.Remaining(ctx, addr)
	if err != nil {
		return State{Address: addr}, err
	}
	return State{Address: addr, OnCooldown: remaining > 0, Remaining: remaining}, nil
}

// IsOnCooldown reports whether addr is still inside its window.
func (g *Gate) IsOnCooldown(ctx context.Context, addr common.Address) (bool, error) {
	s, err := g.Check(ctx, addr)
	return s.OnCooldown, err
}

// Start stamps now as the last action of addr.
func (g *Gate) Start(ctx context.Context, addr common.Address) error {
	now := g.clk.Now()
	if err := g.store.Set(ctx, Key(addr), strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return errors.Wrapf(err, "failed to start cooldown of %s", addr.Hex())
	}

	g.logger.WithFields(logrus.Fields{
		"address": addr.Hex(),
		"until":   now.Add(Duration),
	}).Info("Cooldown started")
	return nil
}

// Watch calls fn with the state of addr immediately and then every second
// until ctx ends.
func (g *Gate) Watch(ctx context.Context, addr common.Address, fn func(State)) error {
	ticker := g.clk.Ticker(RefreshInterval)
	defer ticker.Stop()

	emit := func() {
		s, err := g.Check(ctx, addr)
		if err != nil {
			g.logger.WithFields(logrus.Fields{
				"address": addr.Hex(),
				"error":   err,
			}).Warn("Failed to refresh cooldown")
			return
		}
		fn(s)
	}

	emit()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			emit()
		}
	}
}

// FormatRemaining renders d as HH:MM:SS, truncating to whole seconds.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
