package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/chains/evm"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/config"
	"github.com/ClipFinance/arise-lib/cooldown"
	"github.com/ClipFinance/arise-lib/dapp"
	"github.com/ClipFinance/arise-lib/dbconfig"
	"github.com/ClipFinance/arise-lib/notify"
	"github.com/ClipFinance/arise-lib/points"
	"github.com/ClipFinance/arise-lib/storage/sqlite"
	"github.com/ClipFinance/arise-lib/tracker"
)

// app holds everything a command needs.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	chain   types.Chain
	store   *sqlite.Store
	db      *dbconfig.DBConfig
	tracker *tracker.Tracker
	service *dapp.Service
}

func newLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// promptConfirm asks on out and approves only an answer starting with y.
func promptConfirm(in io.Reader, out io.Writer) dapp.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, description string) bool {
		fmt.Fprintf(out, "%s? [y/N] ", description)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
	}
}

// newApp wires config, logger, stores, chain, tracker and service. A nil
// confirm approves every transaction.
func newApp(ctx context.Context, configFile string, confirm dapp.ConfirmFunc) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: newLogger(cfg.LogLevel)}

	a.store, err = sqlite.Open(cfg.StorePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open local store")
	}

	a.chain, err = evm.NewEvmChain(ctx, &cfg.Chain, a.logger)
	if err != nil {
		a.close()
		return nil, err
	}

	var historyStore points.HistoryStore = points.NewMemoryHistoryStore()
	if cfg.DatabaseURL != "" {
		a.db, err = dbconfig.NewDBConfig(cfg.DatabaseURL)
		if err != nil {
			a.close()
			return nil, err
		}
		if err = a.db.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		historyStore = a.db
	}

	sink := notify.NewLogSink(a.logger)
	throttle := notify.NewThrottle(notify.DefaultWindow, clock.New())

	a.tracker = tracker.New(ctx, cfg.Tracker, a.chain, a.chain, sink, throttle, a.logger)

	mirror, err := points.NewMirror(a.chain, a.chain, sink, throttle, a.logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.service, err = dapp.NewServiceBuilder(a.chain).
		WithTracker(a.tracker).
		WithCooldown(cooldown.NewGate(a.store, a.logger)).
		WithMirror(mirror).
		WithHistory(points.NewHistory(a.chain, historyStore, cfg.Chain.DeployBlock, a.logger)).
		WithNotifications(sink, throttle).
		WithLogger(a.logger).
		WithConfirm(confirm).
		Build()
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

func (a *app) close() {
	if a.service != nil {
		a.service.Disconnect()
	}
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close database")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close local store")
		}
	}
}

// waitForTracker blocks until the tracked transaction is terminal and prints the outcome.
func (a *app) waitForTracker(ctx context.Context) error {
	snap, err := a.tracker.Wait(ctx)
	if err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"txHash":   snap.Hash.Hex(),
		"status":   snap.Status.String(),
		"explorer": a.cfg.Chain.ExplorerTxURL(snap.Hash),
	}).Info("Transaction finished")

	if snap.Status == types.TxError {
		return errors.New(snap.Error)
	}
	return nil
}
