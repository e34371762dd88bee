package core

import (
	"context"
	"time"

	"github.com/target/mmk-autoapply/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// ApplicationRepository is the application record store. Status changes only
// happen through Transition or through the task repository's atomic operations.
type ApplicationRepository interface {
	Create(ctx context.Context, req *model.CreateApplicationRequest) (*model.Application, error)
	GetByID(ctx context.Context, id string) (*model.Application, error)
	GetByUserAndJob(ctx context.Context, userID, jobID string) (*model.Application, error)
	ListByUser(ctx context.Context, opts model.ApplicationListOptions) ([]*model.ApplicationView, error)
	// Transition performs a compare-and-set on status. It returns model.ErrStatusMismatch
	// when the stored status differs from params.From.
	Transition(ctx context.Context, params TransitionParams) (*model.Application, error)
	UpdateNotes(ctx context.Context, id string, notes *string) (*model.Application, error)
	// Delete removes a record that has no submission in flight.
	Delete(ctx context.Context, id string) (bool, error)
}

// TransitionParams groups parameters for ApplicationRepository.Transition (≤3 params rule).
type TransitionParams struct {
	ID            string
	From          model.ApplicationStatus
	To            model.ApplicationStatus
	FailureReason *string
}

// TaskRepository is the automation task backlog. Admit, Finish and Cancel move
// the owning application and the task together so neither is observable alone.
type TaskRepository interface {
	Admit(ctx context.Context, params AdmitParams) (*model.TaskHandle, error)
	ReserveNext(ctx context.Context, leaseSeconds int) (*model.AutomationTask, error)
	WaitForNotification(ctx context.Context) error
	Heartbeat(ctx context.Context, taskID string, leaseSeconds int) (bool, error)
	// Requeue returns an executing task to the queue after a transient failure.
	Requeue(ctx context.Context, params RequeueParams) (bool, error)
	// Finish applies the terminal application transition and removes the task.
	Finish(ctx context.Context, params FinishParams) (*model.Application, error)
	// Cancel removes a queued task and fails its application.
	Cancel(ctx context.Context, params CancelParams) (*model.Application, error)
	GetTask(ctx context.Context, id string) (*model.AutomationTask, error)
	GetByApplication(ctx context.Context, applicationID string) (*model.AutomationTask, error)
}

// AdmitParams groups parameters for TaskRepository.Admit.
//
// When From is nil the application is created directly in To; otherwise the
// stored application must currently be in *From.
type AdmitParams struct {
	UserID      string
	JobID       string
	ResumeID    string
	From        *model.ApplicationStatus
	To          model.ApplicationStatus
	MaxAttempts int
}

// RequeueParams groups parameters for TaskRepository.Requeue.
//
// Attempt is the attempt number observed at reservation. It acts as the lease
// token: a worker whose lease was recovered and handed to another worker can
// no longer requeue or finish the task.
type RequeueParams struct {
	TaskID    string
	Attempt   int
	Delay     time.Duration
	LastError string
}

// FinishParams groups parameters for TaskRepository.Finish.
type FinishParams struct {
	TaskID        string
	Attempt       int
	To            model.ApplicationStatus
	FailureReason *string
}

// CancelParams groups parameters for TaskRepository.Cancel. To is the status
// the application leaves applying for.
type CancelParams struct {
	TaskID string
	To     model.ApplicationStatus
	Reason string
}

// JobCatalog is the read-only view of ingested job postings.
type JobCatalog interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

// ResumeCatalog is the read-only view of stored resumes.
type ResumeCatalog interface {
	GetResume(ctx context.Context, id string) (*model.Resume, error)
	// DefaultResume returns the user's default resume, falling back to the most recent one.
	DefaultResume(ctx context.Context, userID string) (*model.Resume, error)
}

// SubmissionLogRepository stores the per-application submission step history.
type SubmissionLogRepository interface {
	Append(ctx context.Context, entry *model.SubmissionLog) error
	ListByApplication(ctx context.Context, applicationID string, limit int) ([]*model.SubmissionLog, error)
}

// ReaperRepository defines cleanup operations run by the reaper.
type ReaperRepository interface {
	// RequeueExpired returns executing tasks whose lease has lapsed to the queue.
	RequeueExpired(ctx context.Context, limit int) (int64, error)
	// PurgeSubmissionLogs deletes log rows older than the cutoff in batches.
	PurgeSubmissionLogs(ctx context.Context, olderThan time.Time, batchSize int) (int64, error)
}
