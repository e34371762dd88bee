package data

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Shared sentinel errors for data-layer repositories.
var (
	ErrTaskIDRequired        = errors.New("task_id is required")
	ErrApplicationIDRequired = errors.New("application_id is required")
	ErrUserIDRequired        = errors.New("user_id is required")
)

// isNoRows reports whether err is the "no rows" sentinel of either driver surface.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
