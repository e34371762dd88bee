package errors

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField pulls the column list out of "Key (user_id, job_id)=(...) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// constraintErrors gives the named constraints of the orchestrator schema a
// precise meaning. Anything not listed falls back to the generic mapping for
// its SQLSTATE class.
var constraintErrors = map[string]struct {
	code    ErrorCode
	message string
	field   string
}{
	"applications_user_job_key":            {ErrCodeConflict, "This job is already saved.", "job_id"},
	"automation_tasks_user_job_key":        {ErrCodeConflict, "An application for this job is already in progress.", "job_id"},
	"automation_tasks_application_key":     {ErrCodeConflict, "The application has a submission in progress.", ""},
	"applications_job_id_fkey":             {ErrCodeNotFound, "Job not found.", "job_id"},
	"applications_resume_id_fkey":          {ErrCodeNotFound, "No resume available for this application.", "resume_id"},
	"automation_tasks_application_id_fkey": {ErrCodeNotFound, "Application not found.", ""},
	"applications_status_check":            {ErrCodeValidation, "Unknown application status.", "status"},
	"applications_failure_reason_check":    {ErrCodeInternal, "The request could not be completed.", ""},
	"automation_tasks_state_check":         {ErrCodeInternal, "The request could not be completed.", ""},
	"automation_tasks_attempts_check":      {ErrCodeInternal, "The request could not be completed.", ""},
}

// MapDBError turns driver errors into AppErrors: context errors become
// timeout or canceled, missing rows become not_found, and PostgreSQL
// constraint violations are mapped by constraint name or SQLSTATE. Other
// errors are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found.")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if known, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return &AppError{Code: known.code, Message: known.message, Field: known.field, Cause: err}
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{Code: ErrCodeConflict, Message: "This record already exists.", Field: keyField(pgErr), Cause: err}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{Code: ErrCodeForeignKey, Message: "A referenced record does not exist or is still in use.", Cause: err}
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "Invalid data. Please check your input.", Field: pgErr.ColumnName, Cause: err}
	case pgerrcode.QueryCanceled, pgerrcode.LockNotAvailable:
		return Wrap(err, ErrCodeTimeout, "The database is busy. Please try again.")
	default:
		return Wrap(err, ErrCodeInternal, "A database error occurred. Please try again.")
	}
}

func keyField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique violation, optionally on
// a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return isPgViolation(err, pgerrcode.UniqueViolation, constraint)
}

// IsForeignKeyViolation reports whether err is a foreign key violation,
// optionally on a named constraint.
func IsForeignKeyViolation(err error, constraint string) bool {
	return isPgViolation(err, pgerrcode.ForeignKeyViolation, constraint)
}

func isPgViolation(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
