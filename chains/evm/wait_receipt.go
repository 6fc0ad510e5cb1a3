package evm

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/common/types"
)

// subscriptionHandler manages block header subscriptions
type subscriptionHandler struct {
	subscription ethereum.Subscription
	headerChan   chan *ethtypes.Header
	sync.Mutex
}

// close unsubscribes. The header channel is not closed since the client may
// still be delivering to it.
func (h *subscriptionHandler) close() {
	h.Lock()
	defer h.Unlock()
	if h.subscription != nil {
		h.subscription.Unsubscribe()
		h.subscription = nil
	}
}

// isConfirmed reports whether a receipt mined in receiptBlock has the
// requested number of confirmations at head. The inclusion block counts as
// the first confirmation.
func isConfirmed(head, receiptBlock, confirmations uint64) bool {
	if confirmations == 0 {
		confirmations = 1
	}
	return head+1 >= receiptBlock+confirmations
}

// WaitForReceipt waits for the receipt of hash with the requested confirmations.
//
// Parameters:
// - ctx: the context for managing the wait.
// - hash: the transaction hash.
// - confirmations: the minimum confirmations, at least 1.
//
// Returns:
// - *ethtypes.Receipt: the receipt, successful or reverted.
// - error: an error if the client fails or ctx ends.
func (e *evm) WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*ethtypes.Receipt, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	if types.GetSubscriptionMode(e.config.RpcUrl) == types.WebSocketMode {
		return e.waitForReceiptWS(ctx, client, hash, confirmations)
	}
	return e.waitForReceiptHTTP(ctx, client, hash, confirmations)
}

// waitForReceiptWS checks the receipt on every new head.
func (e *evm) waitForReceiptWS(ctx context.Context, client *ethclient.Client, hash common.Hash, confirmations uint64) (*ethtypes.Receipt, error) {
	handler := &subscriptionHandler{
		headerChan: make(chan *ethtypes.Header),
	}
	defer handler.close()

	sub, err := client.SubscribeNewHead(ctx, handler.headerChan)
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to new headers")
	}

	handler.Lock()
	handler.subscription = sub
	handler.Unlock()

	// the receipt may already be there
	if receipt, done, err := e.checkReceipt(ctx, client, hash, confirmations, 0); done || err != nil {
		return receipt, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err := <-sub.Err():
			return nil, errors.Wrap(err, "subscription error")

		case header := <-handler.headerChan:
			if header == nil {
				continue
			}
			receipt, done, err := e.checkReceipt(ctx, client, hash, confirmations, header.Number.Uint64())
			if done || err != nil {
				return receipt, err
			}
		}
	}
}

// waitForReceiptHTTP polls the receipt every receiptPollInterval.
func (e *evm) waitForReceiptHTTP(ctx context.Context, client *ethclient.Client, hash common.Hash, confirmations uint64) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, done, err := e.checkReceipt(ctx, client, hash, confirmations, 0)
		if done || err != nil {
			return receipt, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkReceipt looks up the receipt and its confirmations. head is fetched
// when zero.
func (e *evm) checkReceipt(ctx context.Context, client *ethclient.Client, hash common.Hash, confirmations, head uint64) (*ethtypes.Receipt, bool, error) {
	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to get transaction receipt")
	}

	if head == 0 {
		head, err = client.BlockNumber(ctx)
		if err != nil {
			return nil, false, errors.Wrap(err, "failed to get current block number")
		}
	}

	if !isConfirmed(head, receipt.BlockNumber.Uint64(), confirmations) {
		e.logger.WithFields(logrus.Fields{
			"txHash": hash.Hex(),
			"block":  receipt.BlockNumber,
			"head":   head,
		}).Debug("Waiting for confirmations")
		return nil, false, nil
	}
	return receipt, true, nil
}
