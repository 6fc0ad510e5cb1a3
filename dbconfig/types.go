package dbconfig

import "github.com/pkg/errors"

var (
	ErrDatabaseConnect = errors.New("failed to connect to database")
	ErrInvalidPoints   = errors.New("invalid points value")
)
