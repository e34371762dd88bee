package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
	apperrors "github.com/target/mmk-autoapply/internal/errors"
)

// RepoConfig holds configuration options shared by the Postgres repositories.
type RepoConfig struct {
	TimeProvider TimeProvider
}

func (c RepoConfig) timeProvider() TimeProvider {
	if c.TimeProvider == nil {
		return SystemTime
	}
	return c.TimeProvider
}

// ApplicationRepo is the Postgres application record store.
type ApplicationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewApplicationRepo creates a new ApplicationRepo.
func NewApplicationRepo(db *sql.DB, cfg RepoConfig) *ApplicationRepo {
	return &ApplicationRepo{DB: db, timeProvider: cfg.timeProvider()}
}

var _ core.ApplicationRepository = (*ApplicationRepo)(nil)

const applicationColumns = `id, user_id, job_id, resume_id, status, failure_reason, notes, created_at, updated_at`

// prefixedApplicationColumns qualifies applicationColumns with alias a.
const prefixedApplicationColumns = `a.id, a.user_id, a.job_id, a.resume_id, a.status, a.failure_reason, a.notes, a.created_at, a.updated_at`

type applicationRowData struct {
	resumeID, failureReason, notes sql.NullString
}

func (d *applicationRowData) targets(app *model.Application) []any {
	return []any{
		&app.ID,
		&app.UserID,
		&app.JobID,
		&d.resumeID,
		&app.Status,
		&d.failureReason,
		&d.notes,
		&app.CreatedAt,
		&app.UpdatedAt,
	}
}

func (d *applicationRowData) apply(app *model.Application) {
	app.ResumeID = cloneNullableString(d.resumeID)
	app.FailureReason = cloneNullableString(d.failureReason)
	app.Notes = cloneNullableString(d.notes)
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
}

func scanApplication(scanner rowScanner) (*model.Application, error) {
	app := &model.Application{}
	var data applicationRowData
	if err := scanner.Scan(data.targets(app)...); err != nil {
		return nil, err
	}
	data.apply(app)
	return app, nil
}

// Create inserts a saved (bookmarked) application.
func (r *ApplicationRepo) Create(ctx context.Context, req *model.CreateApplicationRequest) (*model.Application, error) {
	if req == nil {
		return nil, errors.New("create application request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO applications (user_id, job_id, resume_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, 'saved', $4, $5, $5)
		ON CONFLICT (user_id, job_id) DO NOTHING
		RETURNING `+applicationColumns,
		req.UserID, req.JobID, nullableString(req.ResumeID), nullableString(req.Notes), now,
	)
	app, err := scanApplication(row)
	switch {
	case isNoRows(err):
		return nil, model.ErrApplicationExists
	case err != nil && isForeignKeyErr(err):
		return nil, mapApplicationFK(err)
	case err != nil:
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

// GetByID returns the application with the given id.
func (r *ApplicationRepo) GetByID(ctx context.Context, id string) (*model.Application, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrApplicationIDRequired
	}
	if !isUUID(id) {
		return nil, model.ErrApplicationNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if isNoRows(err) {
		return nil, model.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// GetByUserAndJob returns the application for the (user, job) pair.
func (r *ApplicationRepo) GetByUserAndJob(ctx context.Context, userID, jobID string) (*model.Application, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE user_id = $1 AND job_id = $2
	`, userID, jobID)
	app, err := scanApplication(row)
	if isNoRows(err) {
		return nil, model.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application by job: %w", err)
	}
	return app, nil
}

func buildApplicationListQuery(opts model.ApplicationListOptions) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + prefixedApplicationColumns + `,
		       j.id, j.title, j.company, j.location, j.source
		FROM applications a
		LEFT JOIN jobs j ON j.id = a.job_id
		WHERE a.user_id = $1`)
	args := []any{opts.UserID}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		fmt.Fprintf(&sb, " AND a.status = $%d", len(args))
	}

	args = append(args, opts.Limit, opts.Offset)
	fmt.Fprintf(&sb, " ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return sb.String(), args
}

// ListByUser returns a page of the user's applications, newest first, with a job summary attached.
func (r *ApplicationRepo) ListByUser(ctx context.Context, opts model.ApplicationListOptions) ([]*model.ApplicationView, error) {
	if strings.TrimSpace(opts.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	opts.Normalize()

	query, args := buildApplicationListQuery(opts)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	out := make([]*model.ApplicationView, 0, opts.Limit)
	for rows.Next() {
		view := &model.ApplicationView{}
		var data applicationRowData
		var jobID, title, company, location, source sql.NullString
		targets := append(data.targets(&view.Application), &jobID, &title, &company, &location, &source)
		if scanErr := rows.Scan(targets...); scanErr != nil {
			return nil, fmt.Errorf("scan application: %w", scanErr)
		}
		data.apply(&view.Application)
		if jobID.Valid {
			view.Job = &model.JobSummary{
				ID:       jobID.String,
				Title:    title.String,
				Company:  company.String,
				Location: cloneNullableString(location),
				Source:   source.String,
			}
		}
		out = append(out, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// Transition moves an application from params.From to params.To. The update
// only applies when the stored status still equals params.From.
func (r *ApplicationRepo) Transition(ctx context.Context, params core.TransitionParams) (*model.Application, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, ErrApplicationIDRequired
	}
	if !isUUID(params.ID) {
		return nil, model.ErrApplicationNotFound
	}

	var reason any
	if params.To == model.ApplicationStatusFailed {
		reason = nullableString(params.FailureReason)
	}

	row := r.DB.QueryRowContext(ctx, `
		UPDATE applications
		SET status = $3,
		    failure_reason = $4,
		    updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING `+applicationColumns,
		params.ID, params.From, params.To, reason, r.timeProvider.Now().UTC(),
	)
	app, err := scanApplication(row)
	if err == nil {
		return app, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("transition application: %w", apperrors.MapDBError(err))
	}

	if _, getErr := r.GetByID(ctx, params.ID); getErr != nil {
		return nil, getErr
	}
	return nil, model.ErrStatusMismatch
}

// UpdateNotes replaces the free-form notes on an application.
func (r *ApplicationRepo) UpdateNotes(ctx context.Context, id string, notes *string) (*model.Application, error) {
	if !isUUID(id) {
		return nil, model.ErrApplicationNotFound
	}
	if notes != nil && len(*notes) > model.MaxNotesLength {
		return nil, apperrors.ValidationField("notes", fmt.Sprintf("must be at most %d characters", model.MaxNotesLength))
	}
	row := r.DB.QueryRowContext(ctx, `
		UPDATE applications
		SET notes = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+applicationColumns,
		id, nullableString(notes), r.timeProvider.Now().UTC(),
	)
	app, err := scanApplication(row)
	if isNoRows(err) {
		return nil, model.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update notes: %w", err)
	}
	return app, nil
}

// Delete removes an application unless a submission is in flight for it.
func (r *ApplicationRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM applications
		WHERE id = $1
		  AND status <> 'applying'
		  AND NOT EXISTS (SELECT 1 FROM automation_tasks t WHERE t.application_id = applications.id)
	`, id)
	if err != nil {
		return false, fmt.Errorf("delete application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		if errors.Is(getErr, model.ErrApplicationNotFound) {
			return false, nil
		}
		return false, getErr
	}
	return false, model.ErrApplicationInFlight
}

// lockApplicationInTx transitions the (user, job) application inside an
// open pgx transaction. It is the first half of TaskRepo.Admit.
func lockApplicationInTx(ctx context.Context, tx pgx.Tx, p admitApplicationParams) (*model.Application, error) {
	var row pgx.Row
	if p.From == nil {
		row = tx.QueryRow(ctx, `
			INSERT INTO applications (user_id, job_id, resume_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (user_id, job_id) DO NOTHING
			RETURNING `+applicationColumns,
			p.UserID, p.JobID, p.ResumeID, p.To, p.Now,
		)
	} else {
		row = tx.QueryRow(ctx, `
			UPDATE applications
			SET status = $4,
			    resume_id = $3,
			    failure_reason = NULL,
			    updated_at = $6
			WHERE user_id = $1 AND job_id = $2 AND status = $5
			RETURNING `+applicationColumns,
			p.UserID, p.JobID, p.ResumeID, p.To, *p.From, p.Now,
		)
	}

	app, err := scanApplication(row)
	switch {
	case isNoRows(err) && p.From == nil:
		return nil, model.ErrApplicationExists
	case isNoRows(err):
		return nil, model.ErrStatusMismatch
	case err != nil && isForeignKeyErr(err):
		return nil, mapApplicationFK(err)
	case err != nil:
		return nil, fmt.Errorf("admit application: %w", err)
	}
	return app, nil
}

func isForeignKeyErr(err error) bool {
	return apperrors.IsForeignKeyViolation(err, "")
}

// mapApplicationFK converts a foreign key violation on applications into the
// catalog sentinel for the missing parent row.
func mapApplicationFK(err error) error {
	if apperrors.IsForeignKeyViolation(err, "applications_resume_id_fkey") {
		return model.ErrResumeNotFound
	}
	return model.ErrJobNotFound
}
