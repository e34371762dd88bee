// Package application holds the application status state machine.
//
// The machine is pure: Next computes a target status and never touches
// storage. Callers persist the result with a compare-and-set on the observed
// status so that concurrent writers cannot skip an edge.
package application

import (
	"fmt"

	"github.com/target/mmk-autoapply/internal/domain/model"
)

// Trigger is an event that may move an application to a new status.
type Trigger string

const (
	// TriggerApplyRequested is raised when a user asks for an automated submission.
	TriggerApplyRequested Trigger = "apply_requested"
	// TriggerSubmissionSucceeded is raised when the executor confirms a submission.
	TriggerSubmissionSucceeded Trigger = "submission_succeeded"
	// TriggerSubmissionFailedPermanent is raised for non-retryable failures.
	TriggerSubmissionFailedPermanent Trigger = "submission_failed_permanent"
	// TriggerSubmissionFailedExhausted is raised when transient failures use up the retry budget.
	TriggerSubmissionFailedExhausted Trigger = "submission_failed_exhausted"
	// TriggerInterviewScheduled is an external update reported by the user.
	TriggerInterviewScheduled Trigger = "interview_scheduled"
	// TriggerRejectionRecorded is an external update reported by the user.
	TriggerRejectionRecorded Trigger = "rejection_recorded"
	// TriggerReapplyRequested is an explicit retry of a failed application.
	TriggerReapplyRequested Trigger = "reapply_requested"
)

// Transition is one legal edge of the state graph.
type Transition struct {
	From    model.ApplicationStatus
	Trigger Trigger
	To      model.ApplicationStatus
}

type edge struct {
	from    model.ApplicationStatus
	trigger Trigger
}

var transitions = []Transition{
	{model.ApplicationStatusSaved, TriggerApplyRequested, model.ApplicationStatusApplying},
	{model.ApplicationStatusApplying, TriggerSubmissionSucceeded, model.ApplicationStatusApplied},
	{model.ApplicationStatusApplying, TriggerSubmissionFailedPermanent, model.ApplicationStatusFailed},
	{model.ApplicationStatusApplying, TriggerSubmissionFailedExhausted, model.ApplicationStatusFailed},
	{model.ApplicationStatusApplied, TriggerInterviewScheduled, model.ApplicationStatusInterviewing},
	{model.ApplicationStatusApplied, TriggerRejectionRecorded, model.ApplicationStatusRejected},
	{model.ApplicationStatusInterviewing, TriggerRejectionRecorded, model.ApplicationStatusRejected},
	{model.ApplicationStatusFailed, TriggerReapplyRequested, model.ApplicationStatusApplying},
}

var table = func() map[edge]model.ApplicationStatus {
	m := make(map[edge]model.ApplicationStatus, len(transitions))
	for _, t := range transitions {
		m[edge{t.From, t.Trigger}] = t.To
	}
	return m
}()

// IllegalTransitionError reports a trigger that is not legal from the observed status.
type IllegalTransitionError struct {
	From    model.ApplicationStatus
	Trigger Trigger
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %q from status %q", e.Trigger, e.From)
}

// Next returns the status reached by applying trigger to from.
func Next(from model.ApplicationStatus, trigger Trigger) (model.ApplicationStatus, error) {
	to, ok := table[edge{from, trigger}]
	if !ok {
		return "", &IllegalTransitionError{From: from, Trigger: trigger}
	}
	return to, nil
}

// Can reports whether trigger is legal from the given status.
func Can(from model.ApplicationStatus, trigger Trigger) bool {
	_, ok := table[edge{from, trigger}]
	return ok
}

// Transitions returns a copy of the legal transition table.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// IsInFlight reports whether a submission is queued or executing for the status.
func IsInFlight(s model.ApplicationStatus) bool {
	return s == model.ApplicationStatusApplying
}

// IsTerminal reports whether no orchestrator-driven transition leaves s automatically.
func IsTerminal(s model.ApplicationStatus) bool {
	switch s {
	case model.ApplicationStatusApplied, model.ApplicationStatusFailed,
		model.ApplicationStatusInterviewing, model.ApplicationStatusRejected:
		return true
	default:
		return false
	}
}

// RequiresFailureReason reports whether a record in status s must carry a failure reason.
func RequiresFailureReason(s model.ApplicationStatus) bool {
	return s == model.ApplicationStatusFailed
}

// ExternalTrigger maps a user-reported target status to its trigger.
func ExternalTrigger(to model.ApplicationStatus) (Trigger, bool) {
	switch to {
	case model.ApplicationStatusInterviewing:
		return TriggerInterviewScheduled, true
	case model.ApplicationStatusRejected:
		return TriggerRejectionRecorded, true
	default:
		return "", false
	}
}

// FailureTrigger maps a failed outcome kind to its trigger.
func FailureTrigger(exhausted bool) Trigger {
	if exhausted {
		return TriggerSubmissionFailedExhausted
	}
	return TriggerSubmissionFailedPermanent
}
