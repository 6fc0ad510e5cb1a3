package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/notify"
)

const (
	revertedMessage = "Transaction reverted"
	timeoutMessage  = "Transaction not confirmed in time. Please check the explorer manually."
)

// SuccessFunc is invoked once when the tracked transaction confirms successfully.
type SuccessFunc func(ctx context.Context, receipt *ethtypes.Receipt)

// Snapshot is the externally visible state of the tracker.
type Snapshot struct {
	Hash       common.Hash
	Status     types.TransactionStatus
	Error      string
	Receipt    *ethtypes.Receipt
	RetryCount int
}

// Tracker follows one transaction hash at a time until it reaches a terminal status.
//
// Two producers resolve a hash: a push path blocking on ReceiptWaiter and a
// poll path querying ReceiptProvider on a ticker. Both feed resolve, which
// accepts the first terminal signal of the current generation only.
type Tracker struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg      Config
	receipts types.ReceiptProvider
	waiter   types.ReceiptWaiter
	sink     notify.Sink
	throttle *notify.Throttle
	logger   *logrus.Logger
	clk      clock.Clock

	mu         sync.Mutex
	wg         sync.WaitGroup
	generation uint64
	current    *run
	state      Snapshot
	closed     bool
}

// run is the per-hash state. It is discarded when the hash is superseded.
type run struct {
	generation uint64
	hash       common.Hash
	onSuccess  SuccessFunc

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once

	ticker      *clock.Ticker
	startedAt   time.Time
	lastChecked time.Time
	completed   bool
	retry       retryState
}

// retryState is the backoff schedule of the poll path.
type retryState struct {
	attempt  int
	nextFire time.Time
	timer    *clock.Timer
}

// New creates a tracker.
//
// Parameters:
// - ctx: the parent context; cancelling it stops every timer.
// - cfg: the loop timings, zero fields take defaults.
// - receipts: the poll path receipt source.
// - waiter: the push path receipt source, nil disables the push path.
// - sink: where confirmation toasts are rendered.
// - throttle: the process-wide notification throttle, nil shows every toast.
// - logger: the logger.
//
// Returns:
// - *Tracker: the idle tracker.
func New(
	ctx context.Context,
	cfg Config,
	receipts types.ReceiptProvider,
	waiter types.ReceiptWaiter,
	sink notify.Sink,
	throttle *notify.Throttle,
	logger *logrus.Logger,
	opts ...Option,
) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Tracker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg.withDefaults(),
		receipts: receipts,
		waiter:   waiter,
		sink:     sink,
		throttle: throttle,
		logger:   logger,
		clk:      clock.New(),
		state:    Snapshot{Status: types.TxIdle},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track starts tracking hash, superseding whatever was tracked before.
// A zero hash clears the tracker. onSuccess may be nil.
//
// Track never waits on the goroutines of the superseded hash, so it is safe
// to call from a SuccessFunc.
func (t *Tracker) Track(hash common.Hash, onSuccess SuccessFunc) {
	if hash == (common.Hash{}) {
		t.Clear()
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.stopCurrentLocked()
	t.generation++

	ctx, cancel := context.WithCancel(t.ctx)
	r := &run{
		generation: t.generation,
		hash:       hash,
		onSuccess:  onSuccess,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		ticker:     t.clk.Ticker(t.cfg.PollInterval),
		startedAt:  t.clk.Now(),
	}
	t.current = r
	t.state = Snapshot{Hash: hash, Status: types.TxPending}

	t.logger.WithFields(logrus.Fields{
		"txHash":     hash.Hex(),
		"generation": r.generation,
	}).Info("Tracking transaction")

	if t.receipts != nil {
		t.wg.Add(1)
		go t.poll(r)
	}
	if t.waiter != nil {
		t.wg.Add(1)
		go t.push(r)
	}
}

// Clear stops tracking and returns to idle.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopCurrentLocked()
	t.generation++
	t.current = nil
	t.state = Snapshot{Status: types.TxIdle}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until the tracked transaction reaches a terminal status, the
// tracker goes idle or ctx ends. A SuccessFunc has returned by the time Wait
// observes its success, and a hash tracked from inside it is waited for too.
func (t *Tracker) Wait(ctx context.Context) (Snapshot, error) {
	for {
		t.mu.Lock()
		r := t.current
		state := t.state
		t.mu.Unlock()

		if r == nil {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return t.Snapshot(), ctx.Err()
		case <-r.done:
		}

		t.mu.Lock()
		superseded := t.current != nil && t.current != r
		state = t.state
		t.mu.Unlock()

		if !superseded {
			return state, nil
		}
	}
}

// Close cancels every timer and waits for the background goroutines to exit.
// It must not be called from a SuccessFunc.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.stopCurrentLocked()
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) stopCurrentLocked() {
	if t.current != nil {
		t.current.stopLocked()
	}
}

// stopLocked releases the timers of the run and wakes Wait. The tracker
// mutex must be held.
func (r *run) stopLocked() {
	r.haltLocked()
	r.finish()
}

// haltLocked releases the timers of the run without waking Wait.
func (r *run) haltLocked() {
	r.ticker.Stop()
	if r.retry.timer != nil {
		r.retry.timer.Stop()
		r.retry.timer = nil
	}
	r.cancel()
}

func (r *run) finish() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (t *Tracker) isCurrentLocked(r *run) bool {
	return t.current == r && r.generation == t.generation
}

// push waits for the receipt through the waiter. Errors are not terminal:
// the poll path keeps running and owns the retry budget.
func (t *Tracker) push(r *run) {
	defer t.wg.Done()

	receipt, err := t.waiter.WaitForReceipt(r.ctx, r.hash, t.cfg.Confirmations)
	if r.ctx.Err() != nil {
		return
	}
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"txHash": r.hash.Hex(),
			"error":  err,
		}).Warn("Receipt subscription failed, relying on polling")
		return
	}
	if receipt == nil {
		return
	}

	t.resolve(r, receipt, "push")
}

func (t *Tracker) poll(r *run) {
	defer t.wg.Done()
	defer r.ticker.Stop()

	for {
		t.mu.Lock()
		var retryC <-chan time.Time
		if r.retry.timer != nil {
			retryC = r.retry.timer.C
		}
		t.mu.Unlock()

		select {
		case <-r.ctx.Done():
			return
		case <-r.ticker.C:
			if t.pollDue(r) {
				t.check(r)
			}
		case <-retryC:
			t.mu.Lock()
			r.retry.timer = nil
			r.retry.nextFire = time.Time{}
			t.mu.Unlock()
			t.check(r)
		}
	}
}

// pollDue reports whether a tick should query the provider. It also ends
// tracking once the maximum poll duration has elapsed.
func (t *Tracker) pollDue(r *run) bool {
	t.mu.Lock()
	if !t.isCurrentLocked(r) || r.completed || r.retry.timer != nil {
		t.mu.Unlock()
		return false
	}

	now := t.clk.Now()
	if t.cfg.MaxPollDuration > 0 && now.Sub(r.startedAt) >= t.cfg.MaxPollDuration {
		t.mu.Unlock()
		t.fail(r, customErrors.ErrConfirmationTimeout, timeoutMessage, notify.Notice{
			Severity:    notify.SeverityError,
			Title:       "Transaction Pending",
			Description: timeoutMessage,
		})
		return false
	}

	due := r.lastChecked.IsZero() || now.Sub(r.lastChecked) >= t.cfg.MinCheckSpacing
	t.mu.Unlock()
	return due
}

func (t *Tracker) check(r *run) {
	t.mu.Lock()
	if !t.isCurrentLocked(r) || r.completed {
		t.mu.Unlock()
		return
	}
	r.lastChecked = t.clk.Now()
	t.mu.Unlock()

	log := t.logger.WithFields(logrus.Fields{
		"txHash":     r.hash.Hex(),
		"generation": r.generation,
	})
	log.Debug("Checking transaction status")

	receipt, err := t.receipts.TransactionReceipt(r.ctx, r.hash)
	if r.ctx.Err() != nil {
		return
	}

	switch {
	case err == nil && receipt != nil:
		t.resolve(r, receipt, "poll")
	case err == nil || errors.Is(err, ethereum.NotFound):
		t.mu.Lock()
		if t.isCurrentLocked(r) && !r.completed {
			r.retry.attempt = 0
			t.state.RetryCount = 0
		}
		t.mu.Unlock()
	default:
		t.retryAfterError(r, err, log)
	}
}

// retryAfterError schedules up to MaxRetries retries, InitialRetryDelay
// doubling each time. The error after the last retry is terminal.
func (t *Tracker) retryAfterError(r *run, err error, log *logrus.Entry) {
	t.mu.Lock()
	if !t.isCurrentLocked(r) || r.completed {
		t.mu.Unlock()
		return
	}

	if r.retry.attempt >= t.cfg.MaxRetries {
		t.state.RetryCount = r.retry.attempt
		t.mu.Unlock()

		log.WithField("error", err).Error("Giving up on transaction status")
		t.fail(r, customErrors.ErrConfirmationExhausted, notify.ConfirmationExhaustedMessage, notify.Notice{
			Severity:    notify.SeverityError,
			Title:       "Connection Error",
			Description: notify.ConfirmationExhaustedMessage,
		})
		return
	}

	delay := t.cfg.InitialRetryDelay << uint(r.retry.attempt)
	r.retry.attempt++
	attempt := r.retry.attempt
	r.retry.timer = t.clk.Timer(delay)
	r.retry.nextFire = t.clk.Now().Add(delay)
	t.state.RetryCount = attempt
	t.mu.Unlock()

	log.WithFields(logrus.Fields{
		"attempt": attempt,
		"delay":   delay,
		"error":   err,
	}).Warnf("Retrying transaction status check (attempt %d/%d)", attempt, t.cfg.MaxRetries)
}

// resolve applies a receipt from either path. Only the first receipt of the
// current generation has an effect.
func (t *Tracker) resolve(r *run, receipt *ethtypes.Receipt, source string) {
	t.mu.Lock()
	if !t.isCurrentLocked(r) || r.completed {
		t.mu.Unlock()
		return
	}
	r.completed = true

	var (
		notice notify.Notice
		cb     SuccessFunc
	)
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		t.state.Status = types.TxError
		t.state.Error = revertedMessage
		t.state.Receipt = receipt
		notice = notify.Notice{Severity: notify.SeverityError, Title: "Transaction failed", Description: revertedMessage}
	} else {
		t.state.Status = types.TxSuccess
		t.state.Error = ""
		t.state.Receipt = receipt
		t.state.RetryCount = 0
		r.retry.attempt = 0
		notice = notify.Notice{Severity: notify.SeveritySuccess, Title: "Transaction confirmed!", Description: fmt.Sprintf("Block: %s", receipt.BlockNumber)}
		cb = r.onSuccess
	}
	r.haltLocked()
	t.mu.Unlock()
	defer r.finish()

	t.logger.WithFields(logrus.Fields{
		"txHash": r.hash.Hex(),
		"source": source,
		"status": receipt.Status,
		"block":  receipt.BlockNumber,
	}).Info("Transaction resolved")

	notice.SendThrottled(t.sink, t.throttle)
	if cb != nil {
		cb(t.ctx, receipt)
	}
}

func (t *Tracker) fail(r *run, cause error, message string, notice notify.Notice) {
	t.mu.Lock()
	if !t.isCurrentLocked(r) || r.completed {
		t.mu.Unlock()
		return
	}
	r.completed = true
	t.state.Status = types.TxError
	t.state.Error = message
	r.stopLocked()
	t.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"txHash": r.hash.Hex(),
		"error":  cause,
	}).Error("Transaction tracking failed")

	notice.SendThrottled(t.sink, t.throttle)
}
