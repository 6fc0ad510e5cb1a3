package points

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/notify"
)

const seenEventsSize = 1024

// Reader reads the authoritative points total.
type Reader interface {
	GetUserPoints(ctx context.Context, user common.Address) (*big.Int, error)
}

// AwardWatcher streams PointsAwarded events of a user.
type AwardWatcher interface {
	WatchPointsAwarded(ctx context.Context, user common.Address, sink chan<- types.PointsAwardedEvent) error
}

// Mirror keeps a local copy of a user's points. The contract stays
// authoritative: every matching event triggers a fresh read.
type Mirror struct {
	reader   Reader
	watcher  AwardWatcher
	sink     notify.Sink
	throttle *notify.Throttle
	logger   *logrus.Logger
	seen     *lru.Cache

	mu      sync.RWMutex
	address common.Address
	active  bool
	total   *big.Int
	// baseline is the total the next event's delta is measured against.
	// Only the initial read and applied events move it.
	baseline *big.Int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewMirror creates an inactive mirror.
func NewMirror(reader Reader, watcher AwardWatcher, sink notify.Sink, throttle *notify.Throttle, logger *logrus.Logger) (*Mirror, error) {
	seen, err := lru.New(seenEventsSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event cache")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Mirror{
		reader:   reader,
		watcher:  watcher,
		sink:     sink,
		throttle: throttle,
		logger:   logger,
		seen:     seen,
		total:    new(big.Int),
		baseline: new(big.Int),
	}, nil
}

// Start mirrors the points of user, replacing any previous user.
func (m *Mirror) Start(ctx context.Context, user common.Address) error {
	m.Stop()

	m.mu.Lock()
	m.address = user
	m.active = true
	m.total = new(big.Int)
	m.baseline = new(big.Int)
	m.mu.Unlock()

	initial, err := m.Refresh(ctx)
	if err != nil {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.baseline = new(big.Int).Set(initial)
	m.cancel = cancel
	m.mu.Unlock()

	events := make(chan types.PointsAwardedEvent, 16)
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		if err := m.watcher.WatchPointsAwarded(runCtx, user, events); err != nil && runCtx.Err() == nil {
			m.logger.WithFields(logrus.Fields{
				"address": user.Hex(),
				"error":   err,
			}).Error("Points subscription ended")
		}
	}()
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev := <-events:
				m.apply(runCtx, user, ev)
			}
		}
	}()

	m.logger.WithField("address", user.Hex()).Info("Mirroring points")
	return nil
}

// Stop ends the subscription and forgets the user.
func (m *Mirror) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.active = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Refresh re-reads the total from the contract. It does not move the
// baseline of the next points notice.
func (m *Mirror) Refresh(ctx context.Context) (*big.Int, error) {
	m.mu.RLock()
	user, active := m.address, m.active
	m.mu.RUnlock()

	if !active {
		return nil, errors.New("points mirror not started")
	}

	total, err := m.reader.GetUserPoints(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read points")
	}

	m.mu.Lock()
	if m.active && m.address == user {
		m.total = new(big.Int).Set(total)
	}
	m.mu.Unlock()
	return total, nil
}

// Points returns the mirrored total and the user it belongs to.
func (m *Mirror) Points() (*big.Int, common.Address, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.total), m.address, m.active
}

func (m *Mirror) apply(ctx context.Context, user common.Address, ev types.PointsAwardedEvent) {
	if ev.User != user {
		return
	}
	if seen, _ := m.seen.ContainsOrAdd(ev.Key(), struct{}{}); seen {
		return
	}

	m.mu.RLock()
	prev := new(big.Int).Set(m.baseline)
	m.mu.RUnlock()

	log := m.logger.WithFields(logrus.Fields{
		"address": user.Hex(),
		"txHash":  ev.TxHash.Hex(),
		"action":  ev.Action,
	})

	total, err := m.reader.GetUserPoints(ctx, user)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithField("error", err).Warn("Failed to re-read points, applying event delta")
		total = new(big.Int).Set(prev)
		if ev.Points != nil {
			total.Add(total, ev.Points)
		}
	}

	m.mu.Lock()
	if !m.active || m.address != user {
		m.mu.Unlock()
		return
	}
	m.total = new(big.Int).Set(total)
	m.baseline = new(big.Int).Set(total)
	m.mu.Unlock()

	delta := new(big.Int).Sub(total, prev)
	log.WithFields(logrus.Fields{
		"delta": delta.String(),
		"total": total.String(),
	}).Info("Points updated")

	if delta.Sign() == 0 {
		return
	}
	notify.Notice{
		Severity:    notify.SeveritySuccess,
		Title:       "Points Updated",
		Description: fmt.Sprintf("%s: %s points, new balance: %s", ev.Action.Label(), signed(delta), total),
	}.SendThrottled(m.sink, m.throttle)
}

func signed(v *big.Int) string {
	if v.Sign() > 0 {
		return "+" + v.String()
	}
	return v.String()
}
