package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/target/mmk-autoapply/internal/data/pgxutil"
)

// Advisory lock namespace for task maintenance.
// pg_try_advisory_xact_lock(major, minor) keeps replicas from racing each other.
const (
	advisoryLockTasksMajor        = 2000
	advisoryLockRequeueExpired    = 1 // minor key for RequeueExpired
	advisoryLockPurgeSubmissionLg = 2 // minor key for PurgeSubmissionLogs
)

type lockedExecParams struct {
	minor int
	query string
	args  []any
}

// execUnderAdvisoryLock runs query inside a transaction holding the given
// advisory lock. It returns 0 without running the query when another session
// holds the lock.
func (r *TaskRepo) execUnderAdvisoryLock(ctx context.Context, p lockedExecParams) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockTasksMajor, p.minor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}
			res, err := tx.ExecContext(ctx, p.query, p.args...)
			if err != nil {
				return err
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// RequeueExpired returns executing tasks whose lease lapsed to the queue so
// another worker can pick them up. A limit of zero or less requeues them all.
// The attempt counter is left alone; the next reservation increments it.
func (r *TaskRepo) RequeueExpired(ctx context.Context, limit int) (int64, error) {
	now := r.timeProvider.Now().UTC()
	query := `
		UPDATE automation_tasks
		SET state = 'queued',
		    lease_expires_at = NULL,
		    last_error = COALESCE(last_error, 'lease expired'),
		    run_at = $1,
		    updated_at = $1
		WHERE id IN (
			SELECT id FROM automation_tasks
			WHERE state = 'executing'
			  AND lease_expires_at IS NOT NULL
			  AND lease_expires_at < $1
			ORDER BY lease_expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`
	args := []any{now, nil}
	if limit > 0 {
		args[1] = limit
	}

	n, err := r.execUnderAdvisoryLock(ctx, lockedExecParams{
		minor: advisoryLockRequeueExpired,
		query: query,
		args:  args,
	})
	if err != nil {
		return 0, fmt.Errorf("requeue expired: %w", err)
	}
	return n, nil
}

// PurgeSubmissionLogs deletes up to batchSize submission log rows older than olderThan.
func (r *TaskRepo) PurgeSubmissionLogs(ctx context.Context, olderThan time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, nil
	}
	n, err := r.execUnderAdvisoryLock(ctx, lockedExecParams{
		minor: advisoryLockPurgeSubmissionLg,
		query: `
			DELETE FROM submission_logs
			WHERE id IN (
				SELECT id FROM submission_logs
				WHERE created_at < $1
				ORDER BY created_at
				LIMIT $2
			)`,
		args: []any{olderThan.UTC(), batchSize},
	})
	if err != nil {
		return 0, fmt.Errorf("purge submission logs: %w", err)
	}
	return n, nil
}
