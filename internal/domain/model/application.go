package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ApplicationStatus is the lifecycle status of an application.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ApplicationStatus string

const (
	// ApplicationStatusSaved marks a bookmarked job that has not been applied to.
	ApplicationStatusSaved ApplicationStatus = "saved"
	// ApplicationStatusApplying marks an application with a submission in flight.
	ApplicationStatusApplying ApplicationStatus = "applying"
	// ApplicationStatusApplied marks a confirmed submission.
	ApplicationStatusApplied ApplicationStatus = "applied"
	// ApplicationStatusFailed marks a submission that could not be completed.
	ApplicationStatusFailed ApplicationStatus = "failed"
	// ApplicationStatusInterviewing is reported by the user after an interview is scheduled.
	ApplicationStatusInterviewing ApplicationStatus = "interviewing"
	// ApplicationStatusRejected is reported by the user after a rejection.
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Valid returns true if the status is one of the known lifecycle states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusSaved, ApplicationStatusApplying, ApplicationStatusApplied,
		ApplicationStatusFailed, ApplicationStatusInterviewing, ApplicationStatusRejected:
		return true
	default:
		return false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses can be parsed from query strings and JSON.
func (s *ApplicationStatus) UnmarshalText(text []byte) error {
	v := ApplicationStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid application status: %q", string(text))
	}
	*s = v
	return nil
}

var (
	// ErrApplicationNotFound is returned when an application does not exist or is not visible to the caller.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrApplicationExists is returned when a record for the (user, job) pair already exists.
	ErrApplicationExists = errors.New("application already exists for job")
	// ErrApplicationInFlight is returned when an operation is refused because a submission is in flight.
	ErrApplicationInFlight = errors.New("application has a submission in flight")
	// ErrStatusMismatch is returned by the record store when a compare-and-set observed a different status.
	ErrStatusMismatch = errors.New("application status changed concurrently")
)

// Application is the per (user, job) apply record. Its status only changes
// through the state machine and the record store's compare-and-set.
type Application struct {
	ID            string            `json:"id"                       db:"id"`
	UserID        string            `json:"user_id"                  db:"user_id"`
	JobID         string            `json:"job_id"                   db:"job_id"`
	ResumeID      *string           `json:"resume_id,omitempty"      db:"resume_id"`
	Status        ApplicationStatus `json:"status"                   db:"status"`
	FailureReason *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	Notes         *string           `json:"notes,omitempty"          db:"notes"`
	CreatedAt     time.Time         `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"               db:"updated_at"`
}

// ApplicationView is an application with its nested job summary, as returned to the frontend.
type ApplicationView struct {
	Application
	Job *JobSummary `json:"job,omitempty"`
}

// CreateApplicationRequest creates a bookmarked (saved) application.
type CreateApplicationRequest struct {
	UserID   string  `json:"-"`
	JobID    string  `json:"job_id"`
	ResumeID *string `json:"resume_id,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// Validate validates the CreateApplicationRequest fields.
func (r *CreateApplicationRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user id is required")
	}
	if strings.TrimSpace(r.JobID) == "" {
		return errors.New("job id is required")
	}
	if r.Notes != nil && len(*r.Notes) > MaxNotesLength {
		return fmt.Errorf("notes must be at most %d characters", MaxNotesLength)
	}
	return nil
}

// MaxNotesLength bounds free-form notes on an application.
const MaxNotesLength = 4000

const (
	// DefaultApplicationListLimit is used when no limit is supplied.
	DefaultApplicationListLimit = 100
	// MaxApplicationListLimit caps page sizes.
	MaxApplicationListLimit = 500
)

// ApplicationListOptions controls listing of a user's applications.
type ApplicationListOptions struct {
	UserID string
	Status *ApplicationStatus
	Limit  int
	Offset int
}

// Normalize applies defaults and bounds to the paging fields.
func (o *ApplicationListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultApplicationListLimit
	}
	if o.Limit > MaxApplicationListLimit {
		o.Limit = MaxApplicationListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
