package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/ClipFinance/arise-lib/common/types"
)

const (
	eventPointsAwarded = "PointsAwarded"
	eventAriseSaid     = "AriseSaid"
)

// decodePointsAwarded decodes a PointsAwarded log.
func decodePointsAwarded(contractABI abi.ABI, log ethtypes.Log) (types.PointsAwardedEvent, error) {
	event, ok := contractABI.Events[eventPointsAwarded]
	if !ok {
		return types.PointsAwardedEvent{}, errors.New("PointsAwarded missing from ABI")
	}
	if len(log.Topics) < 2 || log.Topics[0] != event.ID {
		return types.PointsAwardedEvent{}, errors.Errorf("log %s is not a PointsAwarded event", log.TxHash.Hex())
	}

	values, err := contractABI.Unpack(eventPointsAwarded, log.Data)
	if err != nil {
		return types.PointsAwardedEvent{}, errors.Wrap(err, "failed to unpack PointsAwarded")
	}
	if len(values) != 2 {
		return types.PointsAwardedEvent{}, errors.Errorf("PointsAwarded has %d values, want 2", len(values))
	}

	points, ok := values[0].(*big.Int)
	if !ok {
		return types.PointsAwardedEvent{}, errors.Errorf("unexpected points type %T", values[0])
	}
	action, ok := values[1].(string)
	if !ok {
		return types.PointsAwardedEvent{}, errors.Errorf("unexpected action type %T", values[1])
	}

	return types.PointsAwardedEvent{
		User:        common.BytesToAddress(log.Topics[1].Bytes()),
		Points:      points,
		Action:      types.ParseActionType(action),
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}, nil
}

// decodeAriseSaid decodes an AriseSaid log.
func decodeAriseSaid(contractABI abi.ABI, log ethtypes.Log) (types.AriseSaidEvent, error) {
	event, ok := contractABI.Events[eventAriseSaid]
	if !ok {
		return types.AriseSaidEvent{}, errors.New("AriseSaid missing from ABI")
	}
	if len(log.Topics) < 2 || log.Topics[0] != event.ID {
		return types.AriseSaidEvent{}, errors.Errorf("log %s is not an AriseSaid event", log.TxHash.Hex())
	}

	return types.AriseSaidEvent{
		User:        common.BytesToAddress(log.Topics[1].Bytes()),
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}, nil
}

// addressTopic left-pads an address into a topic.
func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
