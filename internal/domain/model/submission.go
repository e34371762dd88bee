package model

import (
	"errors"
	"fmt"
	"time"
)

// OutcomeKind classifies the result of one submission attempt.
type OutcomeKind string

const (
	// OutcomeSucceeded means the job source accepted the application.
	OutcomeSucceeded OutcomeKind = "succeeded"
	// OutcomeTransient means the attempt failed but a retry may succeed.
	OutcomeTransient OutcomeKind = "transient"
	// OutcomePermanent means retrying cannot succeed.
	OutcomePermanent OutcomeKind = "permanent"
)

// Valid returns true if the OutcomeKind is valid.
func (k OutcomeKind) Valid() bool {
	return k == OutcomeSucceeded || k == OutcomeTransient || k == OutcomePermanent
}

// SubmissionOutcome is what a worker reports back after executing a task.
type SubmissionOutcome struct {
	Kind         OutcomeKind `json:"kind"`
	Reason       string      `json:"reason,omitempty"`
	Confirmation string      `json:"confirmation,omitempty"`
}

// Succeeded builds a success outcome.
func Succeeded(confirmation string) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeSucceeded, Confirmation: confirmation}
}

// TransientSubmissionError marks a retryable submission failure such as a timeout or rate limit.
type TransientSubmissionError struct {
	Reason string
	Err    error
}

func (e *TransientSubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient submission failure: %s: %v", e.Reason, e.Err)
	}
	return "transient submission failure: " + e.Reason
}

func (e *TransientSubmissionError) Unwrap() error { return e.Err }

// PermanentSubmissionError marks a non-retryable failure such as a withdrawn posting.
type PermanentSubmissionError struct {
	Reason string
	Err    error
}

func (e *PermanentSubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent submission failure: %s: %v", e.Reason, e.Err)
	}
	return "permanent submission failure: " + e.Reason
}

func (e *PermanentSubmissionError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientSubmissionError.
func Transient(reason string, err error) error {
	return &TransientSubmissionError{Reason: reason, Err: err}
}

// Permanent wraps err as a PermanentSubmissionError.
func Permanent(reason string, err error) error {
	return &PermanentSubmissionError{Reason: reason, Err: err}
}

// ClassifySubmissionError converts a submitter error into an outcome.
// Unclassified errors are treated as transient so the retry budget bounds them.
func ClassifySubmissionError(err error) SubmissionOutcome {
	if err == nil {
		return SubmissionOutcome{Kind: OutcomeSucceeded}
	}
	var perm *PermanentSubmissionError
	if errors.As(err, &perm) {
		return SubmissionOutcome{Kind: OutcomePermanent, Reason: perm.Reason}
	}
	var tr *TransientSubmissionError
	if errors.As(err, &tr) {
		return SubmissionOutcome{Kind: OutcomeTransient, Reason: tr.Reason}
	}
	return SubmissionOutcome{Kind: OutcomeTransient, Reason: err.Error()}
}

// SubmissionStep names a step in the executor's per-attempt log.
type SubmissionStep string

const (
	// StepResolve records submitter selection.
	StepResolve SubmissionStep = "resolve"
	// StepProbe records the confirmation probe before a retry.
	StepProbe SubmissionStep = "probe"
	// StepValidate records resume validation against the source's profile schema.
	StepValidate SubmissionStep = "validate"
	// StepSubmit records the submission call itself.
	StepSubmit SubmissionStep = "submit"
	// StepOutcome records the final classification of the attempt.
	StepOutcome SubmissionStep = "outcome"
)

// SubmissionLogStatus is the status of a logged step.
type SubmissionLogStatus string

const (
	// LogStatusOK marks a step that completed.
	LogStatusOK SubmissionLogStatus = "ok"
	// LogStatusError marks a step that failed.
	LogStatusError SubmissionLogStatus = "error"
	// LogStatusSkipped marks a step that did not apply.
	LogStatusSkipped SubmissionLogStatus = "skipped"
)

// SubmissionLog is one entry in an application's submission history.
type SubmissionLog struct {
	ID            string              `json:"id"                db:"id"`
	ApplicationID string              `json:"application_id"    db:"application_id"`
	Attempt       int                 `json:"attempt"           db:"attempt"`
	Step          SubmissionStep      `json:"step"              db:"step"`
	Status        SubmissionLogStatus `json:"status"            db:"status"`
	Message       *string             `json:"message,omitempty" db:"message"`
	CreatedAt     time.Time           `json:"created_at"        db:"created_at"`
}
