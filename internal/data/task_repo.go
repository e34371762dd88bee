package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/data/pgxutil"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/domain/task"
	apperrors "github.com/target/mmk-autoapply/internal/errors"
)

// TaskAddedChannel is the LISTEN/NOTIFY channel raised when a task becomes ready.
const TaskAddedChannel = "automation_task_added"

// TaskRepoConfig holds configuration options for the task repository.
type TaskRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// TaskRepo is the Postgres automation task backlog.
type TaskRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewTaskRepo creates a new TaskRepo.
func NewTaskRepo(db *sql.DB, cfg TaskRepoConfig) *TaskRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRepo{
		DB:           db,
		timeProvider: RepoConfig{TimeProvider: cfg.TimeProvider}.timeProvider(),
		logger:       logger.With("component", "task_repo"),
	}
}

var (
	_ core.TaskRepository   = (*TaskRepo)(nil)
	_ core.ReaperRepository = (*TaskRepo)(nil)
	_ task.Waiter           = (*TaskRepo)(nil)
)

const taskColumns = `id, application_id, user_id, job_id, resume_id, state, attempts, max_attempts, run_at, lease_expires_at, last_error, created_at`

type taskRowData struct {
	leaseExpiresAt sql.NullTime
	lastError      sql.NullString
}

func scanTask(scanner rowScanner) (*model.AutomationTask, error) {
	t := &model.AutomationTask{}
	var d taskRowData
	if err := scanner.Scan(
		&t.ID,
		&t.ApplicationID,
		&t.UserID,
		&t.JobID,
		&t.ResumeID,
		&t.State,
		&t.Attempts,
		&t.MaxAttempts,
		&t.RunAt,
		&d.leaseExpiresAt,
		&d.lastError,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.RunAt = t.RunAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
	t.LastError = cloneNullableString(d.lastError)
	return t, nil
}

// admitApplicationParams groups parameters for lockApplicationInTx.
type admitApplicationParams struct {
	UserID   string
	JobID    string
	ResumeID string
	From     *model.ApplicationStatus
	To       model.ApplicationStatus
	Now      time.Time
}

// Admit moves (or creates) the application for the pair into params.To and
// enqueues its task in one transaction. The unique index on
// automation_tasks(user_id, job_id) rejects a second in-flight task.
func (r *TaskRepo) Admit(ctx context.Context, params core.AdmitParams) (*model.TaskHandle, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = task.DefaultMaxAttempts
	}

	var handle *model.TaskHandle
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			app, err := lockApplicationInTx(ctx, tx, admitApplicationParams{
				UserID:   params.UserID,
				JobID:    params.JobID,
				ResumeID: params.ResumeID,
				From:     params.From,
				To:       params.To,
				Now:      now,
			})
			if err != nil {
				return err
			}

			var taskID string
			err = tx.QueryRow(ctx, `
				INSERT INTO automation_tasks
					(application_id, user_id, job_id, resume_id, state, attempts, max_attempts, run_at, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 'queued', 0, $5, $6, $6, $6)
				ON CONFLICT DO NOTHING
				RETURNING id
			`, app.ID, params.UserID, params.JobID, params.ResumeID, maxAttempts, now).Scan(&taskID)
			if isNoRows(err) {
				return model.ErrAlreadyInFlight
			}
			if err != nil {
				return fmt.Errorf("insert task: %w", err)
			}

			if err = pgxutil.Notify(ctx, tx, TaskAddedChannel, taskID); err != nil {
				return err
			}

			handle = &model.TaskHandle{TaskID: taskID, Application: app}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// SQL used by ReserveNext to atomically lease the oldest ready task.
const reserveNextTaskSQL = `
  WITH cte AS (
    SELECT id FROM automation_tasks
    WHERE state = 'queued' AND run_at <= $1
    ORDER BY run_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE automation_tasks t
  SET
    state = 'executing',
    attempts = t.attempts + 1,
    lease_expires_at = $2,
    updated_at = $1
  FROM cte
  WHERE t.id = cte.id
  RETURNING t.id, t.application_id, t.user_id, t.job_id, t.resume_id, t.state, t.attempts, t.max_attempts, t.run_at, t.lease_expires_at, t.last_error, t.created_at`

// ReserveNext leases the next ready task and increments its attempt counter.
// Tasks whose leases lapsed are returned to the queue first.
func (r *TaskRepo) ReserveNext(ctx context.Context, leaseSeconds int) (*model.AutomationTask, error) {
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}

	if n, err := r.RequeueExpired(ctx, 0); err != nil {
		return nil, fmt.Errorf("requeue expired tasks: %w", err)
	} else if n > 0 {
		r.logger.InfoContext(ctx, "requeued tasks with expired leases", "count", n)
	}

	var reserved *model.AutomationTask
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			leaseExpiresAt := now.Add(time.Duration(leaseSeconds) * time.Second)
			t, err := scanTask(tx.QueryRow(ctx, reserveNextTaskSQL, now, leaseExpiresAt))
			if isNoRows(err) {
				return model.ErrNoTasksAvailable
			}
			if err != nil {
				return fmt.Errorf("reserve task: %w", err)
			}
			reserved = t
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// WaitForNotification blocks until a task is enqueued or ctx ends.
func (r *TaskRepo) WaitForNotification(ctx context.Context) error {
	return pgxutil.WaitForNotification(ctx, r.DB, TaskAddedChannel)
}

// Heartbeat extends the lease on an executing task.
func (r *TaskRepo) Heartbeat(ctx context.Context, taskID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE automation_tasks
		SET lease_expires_at = $2, updated_at = $3
		WHERE id = $1 AND state = 'executing'
	`, taskID, now.Add(time.Duration(leaseSeconds)*time.Second), now)
	if err != nil {
		return false, fmt.Errorf("heartbeat task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return n > 0, nil
}

// Requeue returns an executing task to the queue after a transient failure.
// It reports false when the caller no longer holds the lease.
func (r *TaskRepo) Requeue(ctx context.Context, params core.RequeueParams) (bool, error) {
	if strings.TrimSpace(params.TaskID) == "" {
		return false, ErrTaskIDRequired
	}
	now := r.timeProvider.Now().UTC()
	delay := params.Delay
	if delay < 0 {
		delay = 0
	}

	var notify bool
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE automation_tasks
				SET state = 'queued',
				    lease_expires_at = NULL,
				    run_at = $3,
				    last_error = $4,
				    updated_at = $5
				WHERE id = $1 AND state = 'executing' AND attempts = $2
			`, params.TaskID, params.Attempt, now.Add(delay), params.LastError, now)
			if err != nil {
				return fmt.Errorf("requeue task: %w", err)
			}
			notify = tag.RowsAffected() > 0
			if !notify {
				return nil
			}
			// Waiters re-check run_at themselves; the notification only wakes them.
			return pgxutil.Notify(ctx, tx, TaskAddedChannel, params.TaskID)
		},
	})
	if err != nil {
		return false, err
	}
	return notify, nil
}

// Finish removes an executing task and applies the terminal transition to its
// application in one transaction.
func (r *TaskRepo) Finish(ctx context.Context, params core.FinishParams) (*model.Application, error) {
	if strings.TrimSpace(params.TaskID) == "" {
		return nil, ErrTaskIDRequired
	}

	var app *model.Application
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var appID string
			err := tx.QueryRow(ctx, `
				DELETE FROM automation_tasks
				WHERE id = $1 AND state = 'executing' AND attempts = $2
				RETURNING application_id
			`, params.TaskID, params.Attempt).Scan(&appID)
			if isNoRows(err) {
				return model.ErrTaskNotFound
			}
			if err != nil {
				return fmt.Errorf("delete task: %w", err)
			}

			app, err = transitionAppliedInTx(ctx, tx, transitionInTxParams{
				ApplicationID: appID,
				To:            params.To,
				FailureReason: params.FailureReason,
				Now:           r.timeProvider.Now().UTC(),
			})
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Cancel removes a queued task and moves its application to params.To with
// params.Reason. An executing task cannot be canceled.
func (r *TaskRepo) Cancel(ctx context.Context, params core.CancelParams) (*model.Application, error) {
	if strings.TrimSpace(params.TaskID) == "" {
		return nil, ErrTaskIDRequired
	}
	if !isUUID(params.TaskID) {
		return nil, model.ErrTaskNotFound
	}
	if !params.To.Valid() {
		return nil, fmt.Errorf("cancel task %s: invalid target status %q", params.TaskID, params.To)
	}

	var app *model.Application
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var appID string
			var state model.TaskState
			err := tx.QueryRow(ctx, `
				SELECT application_id, state FROM automation_tasks WHERE id = $1 FOR UPDATE
			`, params.TaskID).Scan(&appID, &state)
			if isNoRows(err) {
				return model.ErrTaskNotFound
			}
			if err != nil {
				return fmt.Errorf("lock task: %w", err)
			}
			if state != model.TaskStateQueued {
				return model.ErrTaskExecuting
			}

			if _, err = tx.Exec(ctx, `DELETE FROM automation_tasks WHERE id = $1`, params.TaskID); err != nil {
				return fmt.Errorf("delete task: %w", err)
			}

			reason := params.Reason
			app, err = transitionAppliedInTx(ctx, tx, transitionInTxParams{
				ApplicationID: appID,
				To:            params.To,
				FailureReason: &reason,
				Now:           r.timeProvider.Now().UTC(),
			})
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

type transitionInTxParams struct {
	ApplicationID string
	To            model.ApplicationStatus
	FailureReason *string
	Now           time.Time
}

// transitionAppliedInTx moves an applying application to its terminal status.
func transitionAppliedInTx(ctx context.Context, tx pgx.Tx, p transitionInTxParams) (*model.Application, error) {
	var reason any
	if p.To == model.ApplicationStatusFailed {
		reason = nullableString(p.FailureReason)
	}
	app, err := scanApplication(tx.QueryRow(ctx, `
		UPDATE applications
		SET status = $2, failure_reason = $3, updated_at = $4
		WHERE id = $1 AND status = 'applying'
		RETURNING `+applicationColumns,
		p.ApplicationID, p.To, reason, p.Now,
	))
	if isNoRows(err) {
		return nil, model.ErrStatusMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("finish application: %w", apperrors.MapDBError(err))
	}
	return app, nil
}

// GetTask returns a task that is still queued or executing.
func (r *TaskRepo) GetTask(ctx context.Context, id string) (*model.AutomationTask, error) {
	if !isUUID(id) {
		return nil, model.ErrTaskNotFound
	}
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM automation_tasks WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, model.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// GetByApplication returns the in-flight task of an application.
func (r *TaskRepo) GetByApplication(ctx context.Context, applicationID string) (*model.AutomationTask, error) {
	if !isUUID(applicationID) {
		return nil, model.ErrTaskNotFound
	}
	t, err := scanTask(r.DB.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM automation_tasks WHERE application_id = $1`, applicationID))
	if isNoRows(err) {
		return nil, model.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task by application: %w", err)
	}
	return t, nil
}
