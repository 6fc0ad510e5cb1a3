package dbconfig

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ClipFinance/arise-lib/common/types"
)

// LastSyncedBlock returns the highest block already scanned for user.
func (r *DBConfig) LastSyncedBlock(ctx context.Context, user common.Address) (uint64, bool, error) {
	var block int64
	err := r.db.QueryRowContext(ctx,
		`SELECT synced_block FROM points_history_cursor WHERE user_address = $1`,
		user.Hex(),
	).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to read history cursor")
	}
	return uint64(block), true, nil
}

// Save stores entries and moves the cursor of user to syncedTo in one transaction.
// Entries already present are ignored and the cursor never moves backwards.
//
// Parameters:
// - ctx: the context for managing the request.
// - user: the address the entries belong to.
// - entries: the decoded awards.
// - syncedTo: the last scanned block.
//
// Returns:
// - error: an error if any statement fails, in which case nothing is stored.
func (r *DBConfig) Save(ctx context.Context, user common.Address, entries []types.HistoryEntry, syncedTo uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, entry := range entries {
		points := "0"
		if entry.Points != nil {
			points = entry.Points.String()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO points_history (user_address, tx_hash, log_index, action, points, block_number, block_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tx_hash, log_index) DO NOTHING`,
			user.Hex(),
			entry.TxHash.Hex(),
			int64(entry.LogIndex),
			string(entry.Action),
			points,
			int64(entry.BlockNumber),
			entry.Timestamp.UTC(),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert history entry %s", entry.ID())
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO points_history_cursor (user_address, synced_block)
		VALUES ($1, $2)
		ON CONFLICT (user_address) DO UPDATE
		SET synced_block = GREATEST(points_history_cursor.synced_block, EXCLUDED.synced_block)`,
		user.Hex(),
		int64(syncedTo),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update history cursor")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit history")
	}
	return nil
}

// List returns every stored entry of user in chain order.
func (r *DBConfig) List(ctx context.Context, user common.Address) ([]types.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tx_hash, log_index, action, points, block_number, block_time
		FROM points_history
		WHERE user_address = $1
		ORDER BY block_number ASC, log_index ASC`,
		user.Hex(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		var (
			txHash      string
			logIndex    int64
			action      string
			points      string
			blockNumber int64
			blockTime   time.Time
		)

		if err := rows.Scan(&txHash, &logIndex, &action, &points, &blockNumber, &blockTime); err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}

		value, ok := new(big.Int).SetString(points, 10)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidPoints, "%q", points)
		}

		entries = append(entries, types.HistoryEntry{
			TxHash:      common.HexToHash(txHash),
			LogIndex:    uint(logIndex),
			User:        user,
			Action:      types.ParseActionType(action),
			Points:      value,
			BlockNumber: uint64(blockNumber),
			Timestamp:   blockTime.UTC(),
		})
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate history")
	}
	return entries, nil
}
