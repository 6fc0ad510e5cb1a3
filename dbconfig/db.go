package dbconfig

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// DBConfig is a Postgres backed points history store.
type DBConfig struct {
	db *sql.DB
}

// NewDBConfig opens a Postgres connection pool with the provided connection string.
//
// Parameters:
// - connStr: the database connection string.
//
// Returns:
// - *DBConfig: a pointer to the newly created DBConfig instance.
// - error: an error if the connection string cannot be used.
func NewDBConfig(connStr string) (*DBConfig, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(ErrDatabaseConnect, err.Error())
	}
	return &DBConfig{db: db}, nil
}

// NewDBConfigFromDB wraps an existing pool.
func NewDBConfigFromDB(db *sql.DB) *DBConfig {
	return &DBConfig{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS points_history (
    user_address  TEXT        NOT NULL,
    tx_hash       TEXT        NOT NULL,
    log_index     INTEGER     NOT NULL,
    action        TEXT        NOT NULL,
    points        NUMERIC     NOT NULL,
    block_number  BIGINT      NOT NULL,
    block_time    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tx_hash, log_index)
);
CREATE TABLE IF NOT EXISTS points_history_cursor (
    user_address  TEXT   PRIMARY KEY,
    synced_block  BIGINT NOT NULL
);`

// EnsureSchema creates the history tables when missing.
func (r *DBConfig) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create points history schema")
	}
	return nil
}

// Close closes the pool.
func (r *DBConfig) Close() error {
	return r.db.Close()
}
