package dapp

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/cooldown"
	"github.com/ClipFinance/arise-lib/notify"
	"github.com/ClipFinance/arise-lib/points"
	"github.com/ClipFinance/arise-lib/storage"
	"github.com/ClipFinance/arise-lib/tracker"
)

const eventually = 2 * time.Second

type fixture struct {
	chain    *fakeChain
	recorder *notify.Recorder
	store    *storage.MemoryStore
	gate     *cooldown.Gate
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	chain := newFakeChain()
	recorder := &notify.Recorder{}
	store := storage.NewMemoryStore()
	gate := cooldown.NewGate(store, logger)

	trk := tracker.New(context.Background(), tracker.DefaultConfig(), chain, chain, recorder, nil, logger)
	t.Cleanup(trk.Close)

	mirror, err := points.NewMirror(chain, chain, recorder, nil, logger)
	require.NoError(t, err)
	t.Cleanup(mirror.Stop)

	history := points.NewHistory(chain, points.NewMemoryHistoryStore(), 0, logger)

	service, err := NewServiceBuilder(chain).
		WithTracker(trk).
		WithCooldown(gate).
		WithMirror(mirror).
		WithHistory(history).
		WithNotifications(recorder, nil).
		WithLogger(logger).
		Build()
	require.NoError(t, err)

	return &fixture{chain: chain, recorder: recorder, store: store, gate: gate, service: service}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	_, err := f.service.Connect(context.Background())
	require.NoError(t, err)
}

func hasNotice(notices []notify.Notice, title string) bool {
	for _, n := range notices {
		if n.Title == title {
			return true
		}
	}
	return false
}

func TestBuildRequiresCollaborators(t *testing.T) {
	_, err := NewServiceBuilder(newFakeChain()).Build()
	assert.ErrorIs(t, err, customErrors.ErrNotImplemented)

	_, err = NewServiceBuilder(nil).Build()
	assert.ErrorIs(t, err, customErrors.ErrNotImplemented)
}

func TestActionsRequireWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SayArise(ctx)
	assert.ErrorIs(t, err, customErrors.ErrWalletNotConnected)

	_, err = f.service.Transfer(ctx, "0x00000000000000000000000000000000000000bb", "1")
	assert.ErrorIs(t, err, customErrors.ErrWalletNotConnected)

	notices := f.recorder.Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, "Wallet Not Connected", notices[0].Title)
	assert.Equal(t, "Please connect your wallet first", notices[0].Description)
}

func TestSayAriseStartsCooldownOnSuccess(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	hash, err := f.service.SayArise(ctx)
	require.NoError(t, err)

	snap, err := f.service.Tracker().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash, snap.Hash)
	assert.Equal(t, types.TxSuccess, snap.Status)

	assert.Eventually(t, func() bool {
		on, err := f.gate.IsOnCooldown(ctx, f.chain.addr)
		return err == nil && on
	}, eventually, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		total, _, _ := f.service.mirror.Points()
		return total.Int64() == 110
	}, eventually, 10*time.Millisecond)

	assert.True(t, hasNotice(f.recorder.Notices(), "Transaction Sent"))
	assert.True(t, hasNotice(f.recorder.Notices(), "Transaction confirmed!"))

	_, err = f.service.SayArise(ctx)
	assert.ErrorIs(t, err, customErrors.ErrOnCooldown)
	assert.Equal(t, 1, f.chain.sayArise)
	assert.True(t, hasNotice(f.recorder.Notices(), "Cooldown Active"))
}

func TestSayAriseRejectsWrongNetwork(t *testing.T) {
	f := newFixture(t)
	f.chain.chainID = 1
	f.connect(t)

	assert.True(t, hasNotice(f.recorder.Notices(), "Wrong Network"))

	_, err := f.service.SayArise(context.Background())
	assert.ErrorIs(t, err, customErrors.ErrWrongNetwork)
	assert.Equal(t, 0, f.chain.sayArise)
}

func TestSayAriseRevertedDoesNotStartCooldown(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	f.chain.reverted[common.BytesToHash([]byte{0xee, 1})] = true

	_, err := f.service.SayArise(ctx)
	require.NoError(t, err)

	snap, err := f.service.Tracker().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.TxError, snap.Status)
	assert.Equal(t, "Transaction reverted", snap.Error)

	on, err := f.gate.IsOnCooldown(ctx, f.chain.addr)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestSayAriseSurfacesInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.chain.sendErr = errors.New("insufficient funds for gas * price + value")

	_, err := f.service.SayArise(context.Background())
	require.Error(t, err)

	notices := f.recorder.Notices()
	last := notices[len(notices)-1]
	assert.Equal(t, "Insufficient Funds", last.Title)
	assert.Equal(t, notify.SeverityError, last.Severity)
}

func TestTransferValidatesBeforeSending(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	_, err := f.service.Transfer(ctx, "0x1234", "1")
	assert.ErrorIs(t, err, customErrors.ErrInvalidAddress)

	_, err = f.service.Transfer(ctx, "0x00000000000000000000000000000000000000bb", "0")
	assert.ErrorIs(t, err, customErrors.ErrInvalidAmount)

	_, err = f.service.Transfer(ctx, "0x00000000000000000000000000000000000000bb", "abc")
	assert.ErrorIs(t, err, customErrors.ErrInvalidAmount)

	assert.Empty(t, f.chain.sent)
	assert.True(t, hasNotice(f.recorder.Notices(), "Invalid Address"))
	assert.True(t, hasNotice(f.recorder.Notices(), "Invalid Amount"))
}

func TestTransferCreditsConfirmedTransfer(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	hash, err := f.service.Transfer(ctx, "0x00000000000000000000000000000000000000bb", "0.5")
	require.NoError(t, err)

	require.Len(t, f.chain.sent, 1)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000bb"), f.chain.sent[0].to)
	assert.Equal(t, "500000000000000000", f.chain.sent[0].value.String())

	assert.Eventually(t, func() bool {
		f.chain.mu.Lock()
		defer f.chain.mu.Unlock()
		return len(f.chain.processed) == 1 && f.chain.processed[0] == hash
	}, eventually, 10*time.Millisecond)

	assert.True(t, hasNotice(f.recorder.Notices(), "Transaction Sent"))
}

func TestTransferSkipsUsedHash(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	f.chain.used[common.BytesToHash([]byte{0xee, 1})] = true

	_, err := f.service.Transfer(ctx, "0x00000000000000000000000000000000000000bb", "1")
	require.NoError(t, err)

	_, err = f.service.Tracker().Wait(ctx)
	require.NoError(t, err)

	assert.Never(t, func() bool {
		f.chain.mu.Lock()
		defer f.chain.mu.Unlock()
		return len(f.chain.processed) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestShareReturnsIntentURL(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	link, err := f.service.Share(context.Background(), PlatformTwitter, "I said aRISE!", "https://arise.example")
	require.NoError(t, err)
	assert.Equal(t, "https://twitter.com/intent/tweet?text=I%20said%20aRISE%21&url=https%3A%2F%2Farise.example", link)
	assert.Equal(t, 1, f.chain.shares)

	notices := f.recorder.Notices()
	last := notices[len(notices)-1]
	assert.Equal(t, notify.SeveritySuccess, last.Severity)
	assert.Equal(t, "Points Updated", last.Title)
}

func TestBurnPointsMinimum(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx := context.Background()

	_, err := f.service.BurnPoints(ctx, big.NewInt(999))
	assert.ErrorIs(t, err, customErrors.ErrBurnBelowMinimum)
	assert.Empty(t, f.chain.burned)

	notices := f.recorder.Notices()
	assert.Equal(t, "Minimum burn amount is 1000 points", notices[len(notices)-1].Description)

	_, err = f.service.BurnPoints(ctx, big.NewInt(1000))
	require.NoError(t, err)
	assert.Len(t, f.chain.burned, 1)
}

func TestCounts(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.chain.sayArise = 2

	counts, err := f.service.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.User.Int64())
	assert.Equal(t, int64(42), counts.Total.Int64())
}

func TestWatchAriseShowsToast(t *testing.T) {
	f := newFixture(t)
	f.chain.ariseEvents = []types.AriseSaidEvent{{User: common.HexToAddress("0x1234567890123456789012345678901234567890")}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.service.WatchArise(ctx) }()

	assert.Eventually(t, func() bool {
		return hasNotice(f.recorder.Notices(), "New aRISE!")
	}, eventually, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	for _, n := range f.recorder.Notices() {
		if n.Title == "New aRISE!" {
			assert.Equal(t, notify.SeverityInfo, n.Severity)
			assert.Equal(t, "User: 0x1234...7890", n.Description)
		}
	}
}

func TestWatchAriseSkipsReplayedEvents(t *testing.T) {
	f := newFixture(t)
	first := types.AriseSaidEvent{
		User:     common.HexToAddress("0x1234567890123456789012345678901234567890"),
		TxHash:   common.HexToHash("0x01"),
		LogIndex: 0,
	}
	second := types.AriseSaidEvent{
		User:     common.HexToAddress("0x0000000000000000000000000000000000000099"),
		TxHash:   common.HexToHash("0x02"),
		LogIndex: 1,
	}
	f.chain.ariseEvents = []types.AriseSaidEvent{first, first, second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.service.WatchArise(ctx) }()

	ariseNotices := func() []notify.Notice {
		var out []notify.Notice
		for _, n := range f.recorder.Notices() {
			if n.Title == "New aRISE!" {
				out = append(out, n)
			}
		}
		return out
	}
	assert.Eventually(t, func() bool {
		return len(ariseNotices()) == 2
	}, eventually, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	notices := ariseNotices()
	require.Len(t, notices, 2)
	assert.Equal(t, "User: 0x1234...7890", notices[0].Description)
	assert.Equal(t, "User: 0x0000...0099", notices[1].Description)
}

func TestDeclinedConfirmRejectsWithoutSubmitting(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	var asked []string
	f.service.confirm = func(_ context.Context, description string) bool {
		asked = append(asked, description)
		return false
	}
	ctx := context.Background()

	_, err := f.service.SayArise(ctx)
	assert.ErrorIs(t, err, customErrors.ErrUserRejected)
	_, err = f.service.Transfer(ctx, "0x302D51b6d19a0dC8dD4893e383cC9240B51a03Ca", "0.5")
	assert.ErrorIs(t, err, customErrors.ErrUserRejected)
	_, err = f.service.Share(ctx, PlatformTwitter, "gm", "https://arise.example")
	assert.ErrorIs(t, err, customErrors.ErrUserRejected)
	_, err = f.service.BurnPoints(ctx, big.NewInt(1000))
	assert.ErrorIs(t, err, customErrors.ErrUserRejected)

	assert.Equal(t, []string{
		"Say aRISE for 0.001 ETH",
		"Send 0.5 ETH to 0x302D51b6d19a0dC8dD4893e383cC9240B51a03Ca",
		"Claim social share points on twitter",
		"Burn 1000 points",
	}, asked)

	f.chain.mu.Lock()
	assert.Zero(t, f.chain.sayArise)
	assert.Empty(t, f.chain.sent)
	assert.Zero(t, f.chain.shares)
	assert.Empty(t, f.chain.burned)
	f.chain.mu.Unlock()

	var rejected int
	for _, n := range f.recorder.Notices() {
		if n.Title == "Transaction Rejected" {
			rejected++
			assert.Equal(t, notify.SeverityWarning, n.Severity)
		}
	}
	assert.Equal(t, 4, rejected)
	assert.Equal(t, types.TxIdle, f.service.Tracker().Snapshot().Status)
}

func TestApprovedConfirmSubmits(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.service.confirm = func(context.Context, string) bool { return true }

	_, err := f.service.BurnPoints(context.Background(), big.NewInt(1000))
	require.NoError(t, err)

	f.chain.mu.Lock()
	defer f.chain.mu.Unlock()
	assert.Len(t, f.chain.burned, 1)
}

func TestDisconnectClearsState(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.service.Disconnect()
	assert.False(t, f.chain.IsConnected())
	assert.Equal(t, types.TxIdle, f.service.Tracker().Snapshot().Status)

	_, _, active := f.service.mirror.Points()
	assert.False(t, active)
}
