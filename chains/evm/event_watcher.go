package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/common/types"
)

const (
	// defaultPollingInterval is the interval for polling events over HTTP.
	defaultPollingInterval = 5 * time.Second
	// maxBlockRange is the maximum number of blocks to fetch in a single query.
	maxBlockRange = uint64(1000)
	// contextTimeout bounds a single subscription setup.
	contextTimeout = 30 * time.Second
	// reconnectTimeout is the pause between two subscription attempts.
	reconnectTimeout = 5 * time.Second
	// maxReconnectAttempts is the number of subscription attempts before giving up.
	maxReconnectAttempts = 3
)

// blockRanges splits [from, to] into inclusive ranges of at most size blocks.
func blockRanges(from, to, size uint64) [][2]uint64 {
	if from > to || size == 0 {
		return nil
	}

	var out [][2]uint64
	for start := from; start <= to; start += size {
		end := start + size - 1
		if end > to || end < start {
			end = to
		}
		out = append(out, [2]uint64{start, end})
		if end == to {
			break
		}
	}
	return out
}

func (e *evm) pointsAwardedQuery(user common.Address) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{e.contractAddress},
		Topics: [][]common.Hash{
			{e.contractABI.Events[eventPointsAwarded].ID},
			{addressTopic(user)},
		},
	}
}

// FilterPointsAwarded returns the PointsAwarded events of user in [from, to].
//
// Parameters:
// - ctx: the context for managing the request.
// - user: the credited address.
// - from: the first block, inclusive.
// - to: the last block, inclusive.
//
// Returns:
// - []types.PointsAwardedEvent: the decoded events in chain order.
// - error: an error if any range query fails.
func (e *evm) FilterPointsAwarded(ctx context.Context, user common.Address, from, to uint64) ([]types.PointsAwardedEvent, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	query := e.pointsAwardedQuery(user)

	var events []types.PointsAwardedEvent
	for _, r := range blockRanges(from, to, maxBlockRange) {
		query.FromBlock = new(big.Int).SetUint64(r[0])
		query.ToBlock = new(big.Int).SetUint64(r[1])

		logs, err := client.FilterLogs(ctx, query)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to filter logs %d-%d", r[0], r[1])
		}

		for _, log := range logs {
			if log.Removed {
				continue
			}
			ev, err := decodePointsAwarded(e.contractABI, log)
			if err != nil {
				e.logger.WithFields(logrus.Fields{
					"chain":  e.config.Name,
					"txHash": log.TxHash.Hex(),
					"error":  err,
				}).Warn("Skipping undecodable log")
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// WatchPointsAwarded streams the PointsAwarded events of user until ctx ends.
func (e *evm) WatchPointsAwarded(ctx context.Context, user common.Address, sink chan<- types.PointsAwardedEvent) error {
	return e.watchLogs(ctx, "PointsAwarded", e.pointsAwardedQuery(user), func(log ethtypes.Log) {
		ev, err := decodePointsAwarded(e.contractABI, log)
		if err != nil {
			e.logger.WithField("txHash", log.TxHash.Hex()).WithError(err).Warn("Failed to decode PointsAwarded")
			return
		}
		select {
		case sink <- ev:
		case <-ctx.Done():
		}
	})
}

// WatchAriseSaid streams every AriseSaid event until ctx ends.
func (e *evm) WatchAriseSaid(ctx context.Context, sink chan<- types.AriseSaidEvent) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{e.contractAddress},
		Topics:    [][]common.Hash{{e.contractABI.Events[eventAriseSaid].ID}},
	}
	return e.watchLogs(ctx, "AriseSaid", query, func(log ethtypes.Log) {
		ev, err := decodeAriseSaid(e.contractABI, log)
		if err != nil {
			e.logger.WithField("txHash", log.TxHash.Hex()).WithError(err).Warn("Failed to decode AriseSaid")
			return
		}
		select {
		case sink <- ev:
		case <-ctx.Done():
		}
	})
}

// watchLogs delivers logs matching query to handle until ctx ends, using a
// log subscription over WebSocket or FilterLogs polling over HTTP.
func (e *evm) watchLogs(ctx context.Context, name string, query ethereum.FilterQuery, handle func(ethtypes.Log)) error {
	if types.GetSubscriptionMode(e.config.RpcUrl) == types.WebSocketMode {
		return e.subscribeLogs(ctx, name, query, handle)
	}
	return e.pollLogs(ctx, name, query, handle)
}

// subscribeLogs keeps a log subscription alive, resubscribing from the last
// seen block when it fails.
func (e *evm) subscribeLogs(ctx context.Context, name string, query ethereum.FilterQuery, handle func(ethtypes.Log)) error {
	sub := &types.Subscription{}
	defer sub.Close()

	if err := e.setupSubscription(ctx, name, query, sub); err != nil {
		return err
	}

	var lastBlock uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-sub.Err():
			e.logger.WithFields(logrus.Fields{
				"chain": e.config.Name,
				"type":  name,
				"error": err,
			}).Error("Subscription error")

			if lastBlock > 0 {
				query.FromBlock = new(big.Int).SetUint64(lastBlock)
			}
			if err := e.setupSubscription(ctx, name, query, sub); err != nil {
				return err
			}

		case log := <-sub.EventChan:
			if log.Removed {
				continue
			}
			lastBlock = log.BlockNumber
			handle(log)
		}
	}
}

// setupSubscription subscribes with up to maxReconnectAttempts attempts.
func (e *evm) setupSubscription(ctx context.Context, name string, query ethereum.FilterQuery, sub *types.Subscription) error {
	sub.Close()

	var err error
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if ctx.Err() != nil {
			return errors.New("context cancelled while setting up subscription")
		}

		if err = e.subscribeOnce(ctx, query, sub); err == nil {
			e.logger.WithFields(logrus.Fields{
				"chain":   e.config.Name,
				"type":    name,
				"attempt": attempt,
			}).Info("Subscription established")
			return nil
		}

		e.logger.WithFields(logrus.Fields{
			"chain":   e.config.Name,
			"type":    name,
			"attempt": attempt,
		}).WithError(err).Error("Failed to setup subscription")

		if attempt < maxReconnectAttempts {
			select {
			case <-ctx.Done():
				return errors.New("context cancelled while setting up subscription")
			case <-time.After(reconnectTimeout):
			}
		}
	}
	return errors.Wrapf(err, "failed to subscribe to %s events", name)
}

func (e *evm) subscribeOnce(ctx context.Context, query ethereum.FilterQuery, sub *types.Subscription) error {
	client, err := e.getClient()
	if err != nil {
		return err
	}

	setupCtx, cancel := context.WithTimeout(ctx, contextTimeout)
	defer cancel()

	eventChan := make(chan ethtypes.Log)
	s, err := client.SubscribeFilterLogs(setupCtx, query, eventChan)
	if err != nil {
		return err
	}

	sub.Lock()
	sub.Subscription = s
	sub.EventChan = eventChan
	sub.Unlock()
	return nil
}

// pollLogs polls FilterLogs every defaultPollingInterval, starting at the
// current head and fetching at most maxBlockRange blocks per tick.
func (e *evm) pollLogs(ctx context.Context, name string, query ethereum.FilterQuery, handle func(ethtypes.Log)) error {
	lastProcessed, err := e.BlockNumber(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(defaultPollingInterval)
	defer ticker.Stop()

	e.logger.WithFields(logrus.Fields{
		"chain":    e.config.Name,
		"type":     name,
		"interval": defaultPollingInterval,
		"from":     lastProcessed,
	}).Info("Start polling events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			to, err := e.pollOnce(ctx, query, lastProcessed, handle)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.WithFields(logrus.Fields{
					"chain": e.config.Name,
					"type":  name,
				}).WithError(err).Error("Error polling events")
				continue
			}
			lastProcessed = to
		}
	}
}

func (e *evm) pollOnce(ctx context.Context, query ethereum.FilterQuery, lastProcessed uint64, handle func(ethtypes.Log)) (uint64, error) {
	client, err := e.getClient()
	if err != nil {
		return lastProcessed, err
	}

	currentBlock, err := client.BlockNumber(ctx)
	if err != nil {
		return lastProcessed, errors.Wrap(err, "failed to get current block number")
	}
	if currentBlock <= lastProcessed {
		return lastProcessed, nil
	}

	toBlock := lastProcessed + maxBlockRange
	if toBlock > currentBlock {
		toBlock = currentBlock
	}

	query.FromBlock = new(big.Int).SetUint64(lastProcessed + 1)
	query.ToBlock = new(big.Int).SetUint64(toBlock)

	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return lastProcessed, errors.Wrap(err, "failed to filter logs")
	}

	for _, log := range logs {
		if !log.Removed {
			handle(log)
		}
	}
	return toBlock, nil
}
