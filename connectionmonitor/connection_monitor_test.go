package connectionmonitor

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu         sync.Mutex
	checkErr   error
	reconnErrs []error
	checks     int
	reconnects int
}

func (c *fakeClient) CheckConnection(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks++
	return c.checkErr
}

func (c *fakeClient) Reconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnects++
	if len(c.reconnErrs) == 0 {
		return nil
	}
	err := c.reconnErrs[0]
	c.reconnErrs = c.reconnErrs[1:]
	return err
}

func (c *fakeClient) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checks, c.reconnects
}

func newMonitor(client RPCClient, clk clock.Clock) *connectionMonitor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewConnectionMonitor(client, logger, "test", WithClock(clk)).(*connectionMonitor)
}

func TestHealthyConnectionDoesNotReconnect(t *testing.T) {
	c := &fakeClient{}
	m := newMonitor(c, clock.NewMock())

	require.NoError(t, m.checkAndReconnect(context.Background(), nil))
	checks, reconnects := c.counts()
	assert.Equal(t, 1, checks)
	assert.Zero(t, reconnects)
}

func TestReconnectRetriesUntilSuccess(t *testing.T) {
	clk := clock.NewMock()
	c := &fakeClient{
		checkErr:   errors.New("dial tcp: connection refused"),
		reconnErrs: []error{errors.New("refused")},
	}
	m := newMonitor(c, clk)

	done := make(chan error, 1)
	go func() { done <- m.checkAndReconnect(context.Background(), nil) }()

	// the delay timer is registered after the failed attempt, so keep advancing
	require.Eventually(t, func() bool {
		clk.Add(ReconnectDelay)
		_, r := c.counts()
		return r == 2
	}, time.Second, time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconnect did not finish")
	}
	_, reconnects := c.counts()
	assert.Equal(t, 2, reconnects)
}

func TestReconnectGivesUp(t *testing.T) {
	clk := clock.NewMock()
	fail := errors.New("refused")
	c := &fakeClient{
		checkErr:   errors.New("eof"),
		reconnErrs: []error{fail, fail, fail, fail},
	}
	m := newMonitor(c, clk)

	done := make(chan error, 1)
	go func() { done <- m.checkAndReconnect(context.Background(), nil) }()

	require.Eventually(t, func() bool {
		clk.Add(ReconnectDelay)
		_, r := c.counts()
		return r == MaxReconnectAttempts
	}, time.Second, time.Millisecond)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to reconnect to chain test")
	case <-time.After(time.Second):
		t.Fatal("reconnect did not finish")
	}
	_, reconnects := c.counts()
	assert.Equal(t, MaxReconnectAttempts, reconnects)
}

func TestReconnectStopsOnCancelledContext(t *testing.T) {
	c := &fakeClient{
		checkErr:   errors.New("eof"),
		reconnErrs: []error{errors.New("refused")},
	}
	m := newMonitor(c, clock.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.checkAndReconnect(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartStop(t *testing.T) {
	clk := clock.NewMock()
	c := &fakeClient{}
	m := newMonitor(c, clk)

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	clk.Add(HealthCheckInterval)
	require.Eventually(t, func() bool { ch, _ := c.counts(); return ch == 1 }, time.Second, time.Millisecond)

	m.Stop()
	m.Stop()
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
}
