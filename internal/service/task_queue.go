package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/application"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/domain/task"
	"github.com/target/mmk-autoapply/internal/observability/metrics"
	"github.com/target/mmk-autoapply/internal/observability/notify"
	"github.com/target/mmk-autoapply/internal/observability/statsd"
	"github.com/target/mmk-autoapply/internal/service/failurenotifier"
)

const (
	// CanceledReason is recorded on applications whose queued task was canceled.
	CanceledReason = "canceled before submission"
	// maxAdmitRounds bounds how often Enqueue re-reads after losing a race.
	maxAdmitRounds = 3

	defaultTaskLease    = 5 * time.Minute
	defaultPollInterval = 2 * time.Second
)

// TaskQueueServiceOptions groups dependencies for TaskQueueService.
type TaskQueueServiceOptions struct {
	Tasks        core.TaskRepository        // Required
	Applications core.ApplicationRepository // Required: status reads before admission
	Jobs         core.JobCatalog            // Optional: enriches failure notifications
	Retry        task.RetryPolicy           // Optional: zero fields use defaults
	Lease        time.Duration              // Optional: task lease, default 5m
	PollInterval time.Duration              // Optional: Dequeue poll fallback, default 2s
	Logger       *slog.Logger
	Metrics      statsd.Sink
	// FailureNotifier receives terminal failures. Optional.
	FailureNotifier *failurenotifier.Service
	// Notifier overrides the task-added notifier. Defaults to one driven by Tasks.
	Notifier        task.Notifier
	NotifierOptions task.NotifierOptions
}

// TaskQueueService owns the automation task lifecycle: admission, reservation,
// outcome reporting with retries, and cancellation.
type TaskQueueService struct {
	tasks        core.TaskRepository
	apps         core.ApplicationRepository
	jobs         core.JobCatalog
	retry        task.RetryPolicy
	leaseSeconds int
	pollInterval time.Duration
	notifier     task.Notifier
	logger       *slog.Logger
	metrics      statsd.Sink
	failures     *failurenotifier.Service
}

// EnqueueRequest asks for a task for the (user, job) pair.
type EnqueueRequest struct {
	UserID   string
	JobID    string
	ResumeID string
	Reapply  bool
}

// ReportResult describes what Report did with an outcome.
type ReportResult struct {
	// Application is the record after a terminal transition; nil when requeued.
	Application *model.Application
	Requeued    bool
	Delay       time.Duration
	Exhausted   bool
}

// NewTaskQueueService constructs a TaskQueueService.
func NewTaskQueueService(opts TaskQueueServiceOptions) (*TaskQueueService, error) {
	if opts.Tasks == nil {
		return nil, errors.New("TaskRepository is required")
	}
	if opts.Applications == nil {
		return nil, errors.New("ApplicationRepository is required")
	}

	lease := opts.Lease
	if lease <= 0 {
		lease = defaultTaskLease
	}
	leaseSeconds, err := task.LeaseSeconds(lease)
	if err != nil {
		return nil, fmt.Errorf("task lease: %w", err)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Tasks
		}
		notifier, err = task.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create task notifier: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskQueueService{
		tasks:        opts.Tasks,
		apps:         opts.Applications,
		jobs:         opts.Jobs,
		retry:        opts.Retry.Normalized(),
		leaseSeconds: leaseSeconds,
		pollInterval: poll,
		notifier:     notifier,
		logger:       logger.With("component", "task_queue"),
		metrics:      opts.Metrics,
		failures:     opts.FailureNotifier,
	}, nil
}

// MustNewTaskQueueService constructs a TaskQueueService and panics on error.
func MustNewTaskQueueService(opts TaskQueueServiceOptions) *TaskQueueService {
	svc, err := NewTaskQueueService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TaskQueueService: %v", err))
	}
	return svc
}

// RetryPolicy returns the normalized retry policy.
func (s *TaskQueueService) RetryPolicy() task.RetryPolicy { return s.retry }

// Enqueue moves the pair's application to applying and queues a task for it
// in one atomic repository call. The state machine decides the edge from the
// status observed just before; a concurrent writer makes the repository
// reject the compare-and-set and the status is re-read.
func (s *TaskQueueService) Enqueue(ctx context.Context, req EnqueueRequest) (*model.TaskHandle, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.JobID) == "" {
		return nil, errors.New("user id and job id are required")
	}

	for round := 1; round <= maxAdmitRounds; round++ {
		from, err := s.admissionEdge(ctx, req)
		if err != nil {
			s.emit("enqueue", err)
			return nil, err
		}

		handle, err := s.tasks.Admit(ctx, core.AdmitParams{
			UserID:      req.UserID,
			JobID:       req.JobID,
			ResumeID:    req.ResumeID,
			From:        from,
			To:          model.ApplicationStatusApplying,
			MaxAttempts: s.retry.MaxAttempts,
		})
		switch {
		case err == nil:
			s.emit("enqueue", nil)
			s.logger.InfoContext(ctx, "task enqueued",
				"task_id", handle.TaskID,
				"application_id", handle.Application.ID,
				"user_id", req.UserID,
				"job_id", req.JobID,
				"reapply", req.Reapply)
			return handle, nil
		case errors.Is(err, model.ErrStatusMismatch), errors.Is(err, model.ErrApplicationExists):
			s.logger.DebugContext(ctx, "admission lost a race, re-reading",
				"user_id", req.UserID, "job_id", req.JobID, "round", round)
			continue
		default:
			s.emit("enqueue", err)
			return nil, fmt.Errorf("admit task: %w", err)
		}
	}

	err := fmt.Errorf("admit task after %d rounds: %w", maxAdmitRounds, model.ErrStatusMismatch)
	s.emit("enqueue", err)
	return nil, err
}

// admissionEdge returns the status Admit must observe (nil for a new record)
// or the domain error that refuses admission.
func (s *TaskQueueService) admissionEdge(ctx context.Context, req EnqueueRequest) (*model.ApplicationStatus, error) {
	app, err := s.apps.GetByUserAndJob(ctx, req.UserID, req.JobID)
	if errors.Is(err, model.ErrApplicationNotFound) {
		// A new record is created as saved and immediately applied.
		if _, nerr := application.Next(model.ApplicationStatusSaved, application.TriggerApplyRequested); nerr != nil {
			return nil, nerr
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read application: %w", err)
	}

	trigger := application.TriggerApplyRequested
	switch app.Status {
	case model.ApplicationStatusApplying:
		return nil, model.ErrAlreadyInFlight
	case model.ApplicationStatusApplied, model.ApplicationStatusInterviewing, model.ApplicationStatusRejected:
		return nil, model.ErrAlreadyApplied
	case model.ApplicationStatusFailed:
		if !req.Reapply {
			return nil, model.ErrReapplyRequired
		}
		trigger = application.TriggerReapplyRequested
	}
	if _, err := application.Next(app.Status, trigger); err != nil {
		return nil, err
	}
	status := app.Status
	return &status, nil
}

// Dequeue blocks until a task is reserved or ctx ends. It wakes on task-added
// notifications and polls as a fallback for delayed retries.
func (s *TaskQueueService) Dequeue(ctx context.Context) (*model.AutomationTask, error) {
	unsubscribe, wake := s.notifier.Subscribe()
	defer unsubscribe()

	for {
		t, err := s.tasks.ReserveNext(ctx, s.leaseSeconds)
		if err == nil {
			s.emit("reserve", nil)
			s.logger.DebugContext(ctx, "task reserved",
				"task_id", t.ID, "application_id", t.ApplicationID, "attempt", t.Attempts)
			return t, nil
		}
		if !errors.Is(err, model.ErrNoTasksAvailable) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.emit("reserve", err)
			return nil, fmt.Errorf("reserve next task: %w", err)
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case _, ok := <-wake:
			if !ok {
				// Notifier stopped; keep polling.
				wake = nil
			}
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Heartbeat extends the lease of an executing task.
func (s *TaskQueueService) Heartbeat(ctx context.Context, taskID string) (bool, error) {
	ok, err := s.tasks.Heartbeat(ctx, taskID, s.leaseSeconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat task %s: %w", taskID, err)
	}
	return ok, nil
}

// Cancel removes a queued task and fails its application with CanceledReason.
// Executing tasks are refused with model.ErrTaskExecuting. No failure
// notification is sent; the user asked for it.
func (s *TaskQueueService) Cancel(ctx context.Context, taskID string) (*model.Application, error) {
	to, err := application.Next(model.ApplicationStatusApplying, application.TriggerSubmissionFailedPermanent)
	if err != nil {
		return nil, err
	}
	app, err := s.tasks.Cancel(ctx, core.CancelParams{TaskID: taskID, To: to, Reason: CanceledReason})
	if err != nil {
		s.emit("cancel", err)
		return nil, fmt.Errorf("cancel task %s: %w", taskID, err)
	}
	s.emit("cancel", nil)
	s.logger.InfoContext(ctx, "task canceled", "task_id", taskID, "application_id", app.ID)
	return app, nil
}

// GetTask returns a task while it exists.
func (s *TaskQueueService) GetTask(ctx context.Context, taskID string) (*model.AutomationTask, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return t, nil
}

// TaskForApplication returns the task of an in-flight application.
func (s *TaskQueueService) TaskForApplication(ctx context.Context, applicationID string) (*model.AutomationTask, error) {
	t, err := s.tasks.GetByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("get task for application %s: %w", applicationID, err)
	}
	return t, nil
}

// Report applies a worker outcome to the task with the given id. The lease
// token is taken from the stored task, so only an executing task can be
// reported.
func (s *TaskQueueService) Report(ctx context.Context, taskID string, outcome model.SubmissionOutcome) (*ReportResult, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("report task %s: %w", taskID, err)
	}
	if t.State != model.TaskStateExecuting {
		return nil, fmt.Errorf("report task %s: not executing: %w", taskID, model.ErrTaskNotFound)
	}
	return s.ReportAttempt(ctx, t, outcome)
}

// ReportAttempt applies an outcome for the attempt recorded on t, which must
// be the task as returned by Dequeue. A worker whose lease was recovered gets
// model.ErrTaskNotFound.
func (s *TaskQueueService) ReportAttempt(
	ctx context.Context,
	t *model.AutomationTask,
	outcome model.SubmissionOutcome,
) (*ReportResult, error) {
	if t == nil {
		return nil, errors.New("task is required")
	}

	switch outcome.Kind {
	case model.OutcomeSucceeded:
		app, err := s.finish(ctx, t, application.TriggerSubmissionSucceeded, nil)
		if err != nil {
			return nil, err
		}
		return &ReportResult{Application: app}, nil

	case model.OutcomePermanent:
		reason := strings.TrimSpace(outcome.Reason)
		if reason == "" {
			reason = "submission failed"
		}
		app, err := s.finish(ctx, t, application.TriggerSubmissionFailedPermanent, &reason)
		if err != nil {
			return nil, err
		}
		s.notifyFailure(ctx, t, app, outcome)
		return &ReportResult{Application: app}, nil

	case model.OutcomeTransient:
		if !s.exhausted(t) {
			return s.requeue(ctx, t, outcome)
		}
		reason := exhaustedReason(t)
		app, err := s.finish(ctx, t, application.TriggerSubmissionFailedExhausted, &reason)
		if err != nil {
			return nil, err
		}
		s.notifyFailure(ctx, t, app, outcome)
		return &ReportResult{Application: app, Exhausted: true}, nil

	default:
		return nil, fmt.Errorf("unknown outcome kind %q", outcome.Kind)
	}
}

func (s *TaskQueueService) exhausted(t *model.AutomationTask) bool {
	if t.MaxAttempts > 0 {
		return t.AttemptsExhausted()
	}
	return !s.retry.ShouldRetry(t.Attempts)
}

func exhaustedReason(t *model.AutomationTask) string {
	n := t.Attempts
	if t.MaxAttempts > 0 && n > t.MaxAttempts {
		n = t.MaxAttempts
	}
	return fmt.Sprintf("submission failed after %d attempts", n)
}

func (s *TaskQueueService) requeue(
	ctx context.Context,
	t *model.AutomationTask,
	outcome model.SubmissionOutcome,
) (*ReportResult, error) {
	delay := s.retry.Delay(t.Attempts)
	ok, err := s.tasks.Requeue(ctx, core.RequeueParams{
		TaskID:    t.ID,
		Attempt:   t.Attempts,
		Delay:     delay,
		LastError: outcome.Reason,
	})
	if err != nil {
		s.emit("requeue", err)
		return nil, fmt.Errorf("requeue task %s: %w", t.ID, err)
	}
	if !ok {
		err := fmt.Errorf("requeue task %s: lease lost: %w", t.ID, model.ErrTaskNotFound)
		s.emit("requeue", err)
		return nil, err
	}
	s.emit("requeue", nil)
	s.logger.InfoContext(ctx, "task requeued after transient failure",
		"task_id", t.ID,
		"application_id", t.ApplicationID,
		"attempt", t.Attempts,
		"delay", delay,
		"reason", outcome.Reason)
	return &ReportResult{Requeued: true, Delay: delay}, nil
}

// finish runs the terminal edge for trigger. A compare-and-set failure means
// the record left applying behind our back; it is reported as an illegal
// transition from whatever status is stored now.
func (s *TaskQueueService) finish(
	ctx context.Context,
	t *model.AutomationTask,
	trigger application.Trigger,
	reason *string,
) (*model.Application, error) {
	to, err := application.Next(model.ApplicationStatusApplying, trigger)
	if err != nil {
		return nil, err
	}

	app, err := s.tasks.Finish(ctx, core.FinishParams{
		TaskID:        t.ID,
		Attempt:       t.Attempts,
		To:            to,
		FailureReason: reason,
	})
	if errors.Is(err, model.ErrStatusMismatch) {
		from := model.ApplicationStatus("unknown")
		if current, gerr := s.apps.GetByID(ctx, t.ApplicationID); gerr == nil {
			from = current.Status
		}
		illegal := &application.IllegalTransitionError{From: from, Trigger: trigger}
		s.logger.ErrorContext(ctx, "terminal transition rejected",
			"task_id", t.ID,
			"application_id", t.ApplicationID,
			"error", illegal)
		s.emit("finish", illegal)
		return nil, fmt.Errorf("finish task %s: %w", t.ID, illegal)
	}
	if err != nil {
		s.emit("finish", err)
		return nil, fmt.Errorf("finish task %s: %w", t.ID, err)
	}

	s.emit("finish", nil)
	s.logger.InfoContext(ctx, "task finished",
		"task_id", t.ID,
		"application_id", app.ID,
		"status", app.Status,
		"attempt", t.Attempts)
	return app, nil
}

func (s *TaskQueueService) notifyFailure(
	ctx context.Context,
	t *model.AutomationTask,
	app *model.Application,
	outcome model.SubmissionOutcome,
) {
	if !s.failures.Enabled() {
		return
	}
	payload := notify.SubmissionFailurePayload{
		ApplicationID: app.ID,
		UserID:        t.UserID,
		JobID:         t.JobID,
		Attempts:      t.Attempts,
		ErrorClass:    string(outcome.Kind),
		OccurredAt:    app.UpdatedAt,
		Metadata: map[string]string{
			"task_id":      t.ID,
			"max_attempts": strconv.Itoa(t.MaxAttempts),
		},
	}
	if app.FailureReason != nil {
		payload.Reason = *app.FailureReason
	}
	if outcome.Reason != "" && outcome.Reason != payload.Reason {
		payload.Metadata["last_error"] = outcome.Reason
	}
	if s.jobs != nil {
		job, err := s.jobs.GetJob(ctx, t.JobID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load job for failure notification", "job_id", t.JobID, "error", err)
		} else {
			payload.JobTitle = job.Title
			payload.Company = job.Company
			payload.Source = job.Source
		}
	}
	s.failures.NotifySubmissionFailure(ctx, payload)
}

func (s *TaskQueueService) emit(transition string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitQueueTransition(s.metrics, metrics.QueueMetric{Transition: transition, Result: result, Err: err})
}

// Stop releases the notifier listener.
func (s *TaskQueueService) Stop() {
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}
