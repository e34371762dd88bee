package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

const (
	defaultSubmissionLogLimit = 200
	maxSubmissionLogLimit     = 1000
)

// SubmissionLogRepo stores executor step logs.
type SubmissionLogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSubmissionLogRepo creates a new SubmissionLogRepo.
func NewSubmissionLogRepo(db *sql.DB, cfg RepoConfig) *SubmissionLogRepo {
	return &SubmissionLogRepo{DB: db, timeProvider: cfg.timeProvider()}
}

var _ core.SubmissionLogRepository = (*SubmissionLogRepo)(nil)

// Append inserts a log entry and fills in its id and timestamp.
func (r *SubmissionLogRepo) Append(ctx context.Context, entry *model.SubmissionLog) error {
	if entry == nil {
		return errors.New("submission log entry is required")
	}
	if entry.ApplicationID == "" {
		return ErrApplicationIDRequired
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.timeProvider.Now().UTC()
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO submission_logs (application_id, attempt, step, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.ApplicationID, entry.Attempt, entry.Step, entry.Status, nullableString(entry.Message), entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append submission log: %w", err)
	}
	return nil
}

// ListByApplication returns an application's log entries oldest first.
func (r *SubmissionLogRepo) ListByApplication(ctx context.Context, applicationID string, limit int) ([]*model.SubmissionLog, error) {
	if limit <= 0 {
		limit = defaultSubmissionLogLimit
	}
	if limit > maxSubmissionLogLimit {
		limit = maxSubmissionLogLimit
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, application_id, attempt, step, status, message, created_at
		FROM submission_logs
		WHERE application_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, applicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list submission logs: %w", err)
	}
	defer rows.Close()

	var out []*model.SubmissionLog
	for rows.Next() {
		entry := &model.SubmissionLog{}
		var msg sql.NullString
		if scanErr := rows.Scan(&entry.ID, &entry.ApplicationID, &entry.Attempt, &entry.Step,
			&entry.Status, &msg, &entry.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("scan submission log: %w", scanErr)
		}
		entry.Message = cloneNullableString(msg)
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission logs: %w", err)
	}
	return out, nil
}
