package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// TransactionReceipt returns the receipt of hash. ethereum.NotFound is
// returned unwrapped so callers can keep waiting on it.
func (e *evm) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	return client.TransactionReceipt(ctx, hash)
}

// BlockNumber returns the latest block number.
func (e *evm) BlockNumber(ctx context.Context) (uint64, error) {
	client, err := e.getClient()
	if err != nil {
		return 0, err
	}

	n, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get block number")
	}
	return n, nil
}

// BlockTime returns the timestamp of block number. Results are cached.
func (e *evm) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	if v, ok := e.blockTimes.Get(number); ok {
		return v.(time.Time), nil
	}

	client, err := e.getClient()
	if err != nil {
		return time.Time{}, err
	}

	header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to get header %d", number)
	}

	ts := time.Unix(int64(header.Time), 0).UTC()
	e.blockTimes.Add(number, ts)
	return ts, nil
}
