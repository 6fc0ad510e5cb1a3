package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// HealthCheckInterval defines interval between connection health checks
	HealthCheckInterval = 30 * time.Second
	// ReconnectDelay defines the pause between two reconnection attempts
	ReconnectDelay = 5 * time.Second
	// MaxReconnectAttempts defines maximum number of reconnection attempts per failed check
	MaxReconnectAttempts = 3
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring and waits for the loop to exit
	Stop()
}

// RPCClient is the connection being watched.
type RPCClient interface {
	// CheckConnection checks if connection is alive
	CheckConnection(ctx context.Context) error
	// Reconnect replaces the underlying connection
	Reconnect(ctx context.Context) error
}

// Option configures a monitor.
type Option func(*connectionMonitor)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(m *connectionMonitor) {
		m.clk = clk
	}
}

// WithInterval overrides HealthCheckInterval.
func WithInterval(d time.Duration) Option {
	return func(m *connectionMonitor) {
		m.interval = d
	}
}

type connectionMonitor struct {
	client    RPCClient
	logger    *logrus.Logger
	chainName string
	clk       clock.Clock
	interval  time.Duration

	monitorMutex sync.Mutex
	stopChan     chan struct{}
	done         chan struct{}
	isMonitoring bool
}

// NewConnectionMonitor creates a new connection monitor instance.
//
// Parameters:
// - client: the RPC connection to monitor.
// - logger: the logger for logging purposes.
// - chainName: the chain name used in log fields.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(client RPCClient, logger *logrus.Logger, chainName string, opts ...Option) ConnectionMonitor {
	m := &connectionMonitor{
		client:    client,
		logger:    logger,
		chainName: chainName,
		clk:       clock.New(),
		interval:  HealthCheckInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start starts connection monitoring.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()

	if m.isMonitoring {
		return errors.Errorf("connection monitor is already running for chain %s", m.chainName)
	}
	m.isMonitoring = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})

	ticker := m.clk.Ticker(m.interval)
	go m.monitorConnection(ctx, ticker, m.stopChan, m.done)
	return nil
}

// Stop stops connection monitoring.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	if !m.isMonitoring {
		m.monitorMutex.Unlock()
		return
	}
	close(m.stopChan)
	done := m.done
	m.isMonitoring = false
	m.monitorMutex.Unlock()

	<-done
}

func (m *connectionMonitor) monitorConnection(ctx context.Context, ticker *clock.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("chain", m.chainName).Info("Connection monitoring stopped due to context cancellation")
			return

		case <-stop:
			m.logger.WithField("chain", m.chainName).Info("Connection monitoring stopped")
			return

		case <-ticker.C:
			if err := m.checkAndReconnect(ctx, stop); err != nil {
				m.logger.WithFields(logrus.Fields{
					"chain": m.chainName,
					"error": err,
				}).Error("Failed to check or reconnect")
			}
		}
	}
}

// checkAndReconnect pings the client and, when the ping fails, tries to
// reconnect up to MaxReconnectAttempts times.
func (m *connectionMonitor) checkAndReconnect(ctx context.Context, stop <-chan struct{}) error {
	err := m.client.CheckConnection(ctx)
	if err == nil {
		m.logger.WithField("chain", m.chainName).Debug("Ping successful")
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"chain": m.chainName,
		"error": err,
	}).Warn("Connection check failed, attempting to reconnect")

	for attempt := 1; attempt <= MaxReconnectAttempts; attempt++ {
		err := m.client.Reconnect(ctx)
		if err == nil {
			m.logger.WithFields(logrus.Fields{
				"chain":   m.chainName,
				"attempt": attempt,
			}).Info("Client successfully reconnected")
			return nil
		}

		m.logger.WithFields(logrus.Fields{
			"chain":   m.chainName,
			"attempt": attempt,
			"error":   err,
		}).Error("Reconnection attempt failed")

		if attempt == MaxReconnectAttempts {
			return errors.Wrapf(err, "failed to reconnect to chain %s", m.chainName)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return errors.New("connection monitor stopped during reconnection")
		case <-m.clk.After(ReconnectDelay):
		}
	}
	return nil
}
