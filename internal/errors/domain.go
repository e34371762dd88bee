package errors

import (
	"errors"

	"github.com/target/mmk-autoapply/internal/domain/application"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

var domainCodes = []struct {
	err     error
	code    ErrorCode
	message string
}{
	{model.ErrJobNotFound, ErrCodeNotFound, "Job not found."},
	{model.ErrResumeNotFound, ErrCodeNotFound, "No resume available for this application."},
	{model.ErrApplicationNotFound, ErrCodeNotFound, "Application not found."},
	{model.ErrTaskNotFound, ErrCodeNotFound, "Automation task not found."},
	{model.ErrAlreadyInFlight, ErrCodeConflict, "An application for this job is already in progress."},
	{model.ErrAlreadyApplied, ErrCodeConflict, "You have already applied to this job."},
	{model.ErrReapplyRequired, ErrCodeConflict, "The previous application failed. Request a re-apply to try again."},
	{model.ErrApplicationExists, ErrCodeConflict, "This job is already saved."},
	{model.ErrApplicationInFlight, ErrCodeConflict, "The application has a submission in progress."},
	{model.ErrTaskExecuting, ErrCodeConflict, "The submission has already started and can no longer be canceled."},
}

// FromDomain maps orchestrator sentinel errors to AppErrors with a
// client-safe message. Illegal transitions and status races become internal
// errors. Errors that are already AppErrors, or that are not recognised, are
// returned unchanged.
func FromDomain(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	for _, dc := range domainCodes {
		if errors.Is(err, dc.err) {
			return &AppError{Code: dc.code, Message: dc.message, Cause: err}
		}
	}

	var illegal *application.IllegalTransitionError
	if errors.As(err, &illegal) || errors.Is(err, model.ErrStatusMismatch) {
		return &AppError{Code: ErrCodeInternal, Message: "The request could not be completed.", Cause: err}
	}
	return MapDBError(err)
}
