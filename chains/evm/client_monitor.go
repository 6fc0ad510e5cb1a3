package evm

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/ClipFinance/arise-lib/connectionmonitor"
)

// evmConnectionManager lets the connection monitor ping and redial the chain.
type evmConnectionManager struct {
	chain *evm
}

// initMonitor starts the connection monitor for the chain.
func (e *evm) initMonitor(ctx context.Context) error {
	e.monitorMutex.Lock()
	defer e.monitorMutex.Unlock()

	e.monitor = connectionmonitor.NewConnectionMonitor(&evmConnectionManager{chain: e}, e.logger, e.config.Name)
	return e.monitor.Start(ctx)
}

// CheckConnection retrieves the current block number.
func (w *evmConnectionManager) CheckConnection(ctx context.Context) error {
	client, err := w.chain.getClient()
	if err != nil {
		return err
	}

	_, err = client.BlockNumber(ctx)
	return err
}

// Reconnect dials a fresh client. Log subscriptions bound to the old client
// fail and are re-established by their watchers.
func (w *evmConnectionManager) Reconnect(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, w.chain.config.RpcUrl)
	if err != nil {
		return errors.Wrap(err, "failed to dial rpc")
	}

	w.chain.clientMutex.Lock()
	old := w.chain.client
	w.chain.client = client
	w.chain.clientMutex.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}
