package model

import (
	"errors"
	"time"
)

// TaskState is the state of an automation task while it exists.
type TaskState string

const (
	// TaskStateQueued indicates the task is waiting for a worker.
	TaskStateQueued TaskState = "queued"
	// TaskStateExecuting indicates a worker holds the task lease.
	TaskStateExecuting TaskState = "executing"
)

// Valid returns true if the TaskState is valid.
func (s TaskState) Valid() bool {
	return s == TaskStateQueued || s == TaskStateExecuting
}

var (
	// ErrNoTasksAvailable is returned when no tasks are ready for reservation.
	ErrNoTasksAvailable = errors.New("no tasks available")
	// ErrTaskNotFound is returned when a task does not exist (it may already have finished).
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskExecuting is returned when cancelling a task a worker already picked up.
	ErrTaskExecuting = errors.New("task is already executing")
	// ErrAlreadyInFlight is returned when a task for the (user, job) pair is already queued or executing.
	ErrAlreadyInFlight = errors.New("an application for this job is already in flight")
	// ErrAlreadyApplied is returned when the pair already has a successful submission.
	ErrAlreadyApplied = errors.New("already applied to this job")
	// ErrReapplyRequired is returned when a failed application is re-requested without an explicit re-apply.
	ErrReapplyRequired = errors.New("previous application failed; re-apply must be requested explicitly")
)

// AutomationTask wraps one application submission while it is queued or executing.
type AutomationTask struct {
	ID             string     `json:"id"                         db:"id"`
	ApplicationID  string     `json:"application_id"             db:"application_id"`
	UserID         string     `json:"user_id"                    db:"user_id"`
	JobID          string     `json:"job_id"                     db:"job_id"`
	ResumeID       string     `json:"resume_id"                  db:"resume_id"`
	State          TaskState  `json:"state"                      db:"state"`
	Attempts       int        `json:"attempts"                   db:"attempts"`
	MaxAttempts    int        `json:"max_attempts"               db:"max_attempts"`
	RunAt          time.Time  `json:"run_at"                     db:"run_at"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	LastError      *string    `json:"last_error,omitempty"       db:"last_error"`
	CreatedAt      time.Time  `json:"created_at"                 db:"created_at"`
}

// AttemptsExhausted reports whether the task has used its attempt budget.
func (t *AutomationTask) AttemptsExhausted() bool {
	return t.Attempts >= t.MaxAttempts
}

// TaskHandle is returned to callers that admitted a task.
type TaskHandle struct {
	TaskID      string       `json:"task_id"`
	Application *Application `json:"application"`
}
