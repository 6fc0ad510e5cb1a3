package cooldown

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facebookgo/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClipFinance/arise-lib/storage"
)

var (
	addrA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func newGate(t *testing.T) (*Gate, *clock.Mock, *storage.MemoryStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clk := clock.NewMock()
	clk.Add(time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC).Sub(clk.Now()))
	store := storage.NewMemoryStore()
	return NewGate(store, logger, WithClock(clk)), clk, store
}

func TestCooldownFromStoredTimestamp(t *testing.T) {
	ctx := context.Background()
	g, clk, store := newGate(t)

	last := clk.Now().Add(-23 * time.Hour)
	require.NoError(t, store.Set(ctx, Key(addrA), strconv.FormatInt(last.UnixMilli(), 10)))

	s, err := g.Check(ctx, addrA)
	require.NoError(t, err)
	assert.True(t, s.OnCooldown)
	assert.Equal(t, time.Hour, s.Remaining)
	assert.Equal(t, "01:00:00", s.Formatted())

	onB, err := g.IsOnCooldown(ctx, addrB)
	require.NoError(t, err)
	assert.False(t, onB)
}

func TestCooldownExpires(t *testing.T) {
	ctx := context.Background()
	g, clk, _ := newGate(t)

	require.NoError(t, g.Start(ctx, addrA))
	on, err := g.IsOnCooldown(ctx, addrA)
	require.NoError(t, err)
	assert.True(t, on)

	remaining, err := g.Remaining(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, Duration, remaining)

	clk.Add(Duration)
	on, err = g.IsOnCooldown(ctx, addrA)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestMalformedTimestampIsIgnored(t *testing.T) {
	ctx := context.Background()
	g, _, store := newGate(t)
	require.NoError(t, store.Set(ctx, Key(addrA), "not-a-number"))

	_, ok, err := g.LastAction(ctx, addrA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoredValueIsEpochMillis(t *testing.T) {
	ctx := context.Background()
	g, clk, store := newGate(t)
	require.NoError(t, g.Start(ctx, addrA))

	v, ok, err := store.Get(ctx, "lastTransaction-"+addrA.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(clk.Now().UnixMilli(), 10), v)
}

func TestWatchRefreshesEverySecond(t *testing.T) {
	g, clk, _ := newGate(t)
	require.NoError(t, g.Start(context.Background(), addrA))

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu     sync.Mutex
		states []State
	)
	done := make(chan error, 1)
	go func() {
		done <- g.Watch(ctx, addrA, func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		})
	}()

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(states)
	}
	require.Eventually(t, func() bool { return count() == 1 }, time.Second, time.Millisecond)

	clk.Add(time.Second)
	require.Eventually(t, func() bool { return count() == 2 }, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, Duration-time.Second, states[1].Remaining)
	mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatRemaining(0))
	assert.Equal(t, "00:00:00", FormatRemaining(-time.Second))
	assert.Equal(t, "23:59:59", FormatRemaining(Duration-time.Millisecond))
	assert.Equal(t, "01:02:03", FormatRemaining(time.Hour+2*time.Minute+3*time.Second))
}
