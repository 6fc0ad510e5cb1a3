package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionRequest represents a submitted transaction awaiting confirmation.
//
// Fields:
// - Hash: the hash returned by the wallet after broadcast.
// - Action: the user action that produced the transaction.
// - SubmittedAt: the time the hash was handed to the tracker.
type TransactionRequest struct {
	Hash        common.Hash
	Action      ActionType
	SubmittedAt time.Time
}

// PointsAwardedEvent is a decoded PointsAwarded contract log.
type PointsAwardedEvent struct {
	User        common.Address
	Points      *big.Int
	Action      ActionType
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
}

// Key identifies the log uniquely across the chain.
func (e PointsAwardedEvent) Key() string {
	return fmt.Sprintf("%s-%d", e.TxHash.Hex(), e.LogIndex)
}

// AriseSaidEvent is a decoded AriseSaid contract log.
type AriseSaidEvent struct {
	User        common.Address
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
}

// Key identifies the log uniquely across the chain.
func (e AriseSaidEvent) Key() string {
	return fmt.Sprintf("%s-%d", e.TxHash.Hex(), e.LogIndex)
}

// HistoryEntry is one row of a user's points history.
//
// Fields:
// - TxHash: the transaction that emitted the award.
// - LogIndex: the index of the award log within its block.
// - User: the credited address.
// - Action: the action tag of the award.
// - Points: the points delta carried by the event.
// - BlockNumber: the block that included the award.
// - Timestamp: the block timestamp.
type HistoryEntry struct {
	TxHash      common.Hash
	LogIndex    uint
	User        common.Address
	Action      ActionType
	Points      *big.Int
	BlockNumber uint64
	Timestamp   time.Time
}

// ID returns a stable identifier for the entry.
func (e HistoryEntry) ID() string {
	return fmt.Sprintf("%s-%d", e.TxHash.Hex(), e.LogIndex)
}
