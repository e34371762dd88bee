package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/application"
	"github.com/target/mmk-autoapply/internal/domain/model"
	apperrors "github.com/target/mmk-autoapply/internal/errors"
)

// DefaultLogLimit bounds the submission log returned for one application.
const DefaultLogLimit = 200

// ApplicationServiceOptions groups dependencies for ApplicationService.
type ApplicationServiceOptions struct {
	Applications core.ApplicationRepository   // Required
	Queue        *TaskQueueService            // Required
	Jobs         core.JobCatalog              // Required
	Resumes      core.ResumeCatalog           // Required
	Logs         core.SubmissionLogRepository // Optional: enables ListLogs
	// Guard collapses duplicate admissions across API replicas. Optional.
	Guard  *core.InFlightGuard
	Logger *slog.Logger
}

// ApplicationService is the entry point for the API layer and the workers.
// Reads go straight to the record store.
type ApplicationService struct {
	apps    core.ApplicationRepository
	queue   *TaskQueueService
	jobs    core.JobCatalog
	resumes core.ResumeCatalog
	logs    core.SubmissionLogRepository
	guard   *core.InFlightGuard
	logger  *slog.Logger
	flight  singleflight.Group
}

// RequestApplyParams is the input of RequestApply.
type RequestApplyParams struct {
	UserID   string
	JobID    string
	ResumeID string // empty selects the user's default resume
	Reapply  bool
}

// ApplyResult is the outcome of RequestApply.
type ApplyResult struct {
	Application *model.Application
	// TaskID is set while a task exists for the application.
	TaskID string
	// Created is true when this request queued a new task.
	Created bool
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(opts ApplicationServiceOptions) (*ApplicationService, error) {
	switch {
	case opts.Applications == nil:
		return nil, errors.New("ApplicationRepository is required")
	case opts.Queue == nil:
		return nil, errors.New("TaskQueueService is required")
	case opts.Jobs == nil:
		return nil, errors.New("JobCatalog is required")
	case opts.Resumes == nil:
		return nil, errors.New("ResumeCatalog is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationService{
		apps:    opts.Applications,
		queue:   opts.Queue,
		jobs:    opts.Jobs,
		resumes: opts.Resumes,
		logs:    opts.Logs,
		guard:   opts.Guard,
		logger:  logger.With("component", "application_service"),
	}, nil
}

// MustNewApplicationService constructs an ApplicationService and panics on error.
func MustNewApplicationService(opts ApplicationServiceOptions) *ApplicationService {
	svc, err := NewApplicationService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ApplicationService: %v", err))
	}
	return svc
}

// RequestApply queues an automated submission for the pair. While a
// submission is in flight a plain request returns the existing record with
// Created=false; a re-apply request gets model.ErrAlreadyInFlight. Concurrent
// identical requests in this process share one result.
func (s *ApplicationService) RequestApply(ctx context.Context, p RequestApplyParams) (*ApplyResult, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, apperrors.Unauthorized("user is required")
	}
	if strings.TrimSpace(p.JobID) == "" {
		return nil, apperrors.ValidationField("job_id", "job id is required")
	}

	key := strings.Join([]string{p.UserID, p.JobID, p.ResumeID, strconv.FormatBool(p.Reapply)}, "\x00")
	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.requestApply(context.WithoutCancel(ctx), p)
	})
	if err != nil {
		return nil, err
	}
	res, _ := v.(*ApplyResult)
	return res, nil
}

func (s *ApplicationService) requestApply(ctx context.Context, p RequestApplyParams) (*ApplyResult, error) {
	if _, err := s.jobs.GetJob(ctx, p.JobID); err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	resume, err := s.selectResume(ctx, p.UserID, p.ResumeID)
	if err != nil {
		return nil, err
	}

	// The guard only narrows the race. Its holder may not have committed yet,
	// so a held guard still goes through admission and the store decides.
	release, err := s.guard.Acquire(ctx, p.UserID, p.JobID)
	defer release()
	switch {
	case errors.Is(err, core.ErrGuardHeld):
		s.logger.DebugContext(ctx, "pair is being admitted elsewhere, deferring to the store",
			"user_id", p.UserID, "job_id", p.JobID)
	case err != nil:
		s.logger.WarnContext(ctx, "in-flight guard unavailable, relying on the store",
			"user_id", p.UserID, "job_id", p.JobID, "error", err)
	}

	handle, err := s.queue.Enqueue(ctx, EnqueueRequest{
		UserID:   p.UserID,
		JobID:    p.JobID,
		ResumeID: resume.ID,
		Reapply:  p.Reapply,
	})
	if errors.Is(err, model.ErrAlreadyInFlight) {
		return s.existingInFlight(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return &ApplyResult{Application: handle.Application, TaskID: handle.TaskID, Created: true}, nil
}

// existingInFlight resolves a request that found the pair already applying.
func (s *ApplicationService) existingInFlight(ctx context.Context, p RequestApplyParams) (*ApplyResult, error) {
	if p.Reapply {
		return nil, model.ErrAlreadyInFlight
	}
	app, err := s.apps.GetByUserAndJob(ctx, p.UserID, p.JobID)
	if errors.Is(err, model.ErrApplicationNotFound) {
		// The competing admission has not committed yet.
		return nil, model.ErrAlreadyInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("read application: %w", err)
	}
	if !application.IsInFlight(app.Status) {
		return nil, model.ErrAlreadyInFlight
	}
	res := &ApplyResult{Application: app}
	if t, terr := s.queue.TaskForApplication(ctx, app.ID); terr == nil {
		res.TaskID = t.ID
	}
	return res, nil
}

func (s *ApplicationService) selectResume(ctx context.Context, userID, resumeID string) (*model.Resume, error) {
	if resumeID == "" {
		r, err := s.resumes.DefaultResume(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("default resume: %w", err)
		}
		return r, nil
	}
	r, err := s.resumes.GetResume(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}
	if r.UserID != userID {
		return nil, model.ErrResumeNotFound
	}
	return r, nil
}

// ListApplications lists the user's applications with their job summaries.
func (s *ApplicationService) ListApplications(
	ctx context.Context,
	userID string,
	opts model.ApplicationListOptions,
) ([]*model.ApplicationView, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", "unknown application status")
	}
	opts.UserID = userID
	opts.Normalize()
	views, err := s.apps.ListByUser(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return views, nil
}

// GetApplication returns an application owned by the user. Applications
// owned by someone else read as not found.
func (s *ApplicationService) GetApplication(ctx context.Context, userID, applicationID string) (*model.Application, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if app.UserID != userID {
		return nil, model.ErrApplicationNotFound
	}
	return app, nil
}

// ReportOutcome is the worker entry point; it delegates to the queue.
func (s *ApplicationService) ReportOutcome(
	ctx context.Context,
	taskID string,
	outcome model.SubmissionOutcome,
) (*ReportResult, error) {
	return s.queue.Report(ctx, taskID, outcome)
}

// SaveJob bookmarks a job for the user as a saved application.
func (s *ApplicationService) SaveJob(ctx context.Context, req *model.CreateApplicationRequest) (*model.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if _, err := s.jobs.GetJob(ctx, req.JobID); err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if req.ResumeID != nil && *req.ResumeID != "" {
		if _, err := s.selectResume(ctx, req.UserID, *req.ResumeID); err != nil {
			return nil, err
		}
	}
	app, err := s.apps.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	s.logger.DebugContext(ctx, "job saved", "application_id", app.ID, "user_id", req.UserID, "job_id", req.JobID)
	return app, nil
}

// UpdateStatus records a user-reported change (interviewing or rejected).
// Edges the state machine does not allow are conflicts.
func (s *ApplicationService) UpdateStatus(
	ctx context.Context,
	userID, applicationID string,
	to model.ApplicationStatus,
) (*model.Application, error) {
	trigger, ok := application.ExternalTrigger(to)
	if !ok {
		return nil, apperrors.ValidationField("status", "status must be interviewing or rejected")
	}

	for range maxAdmitRounds {
		app, err := s.GetApplication(ctx, userID, applicationID)
		if err != nil {
			return nil, err
		}
		next, err := application.Next(app.Status, trigger)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeConflict,
				"Cannot change an application from %s to %s.", app.Status, to)
		}
		updated, err := s.apps.Transition(ctx, core.TransitionParams{ID: app.ID, From: app.Status, To: next})
		if errors.Is(err, model.ErrStatusMismatch) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		s.logger.InfoContext(ctx, "application status updated",
			"application_id", app.ID, "from", app.Status, "to", next)
		return updated, nil
	}
	return nil, fmt.Errorf("update status after %d rounds: %w", maxAdmitRounds, model.ErrStatusMismatch)
}

// UpdateNotes replaces the notes on an application. Nil clears them.
func (s *ApplicationService) UpdateNotes(ctx context.Context, userID, applicationID string, notes *string) (*model.Application, error) {
	if notes != nil && len(*notes) > model.MaxNotesLength {
		return nil, apperrors.ValidationField("notes", fmt.Sprintf("notes must be at most %d characters", model.MaxNotesLength))
	}
	if _, err := s.GetApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	app, err := s.apps.UpdateNotes(ctx, applicationID, notes)
	if err != nil {
		return nil, fmt.Errorf("update notes: %w", err)
	}
	return app, nil
}

// Dismiss deletes an application that has no submission in flight.
func (s *ApplicationService) Dismiss(ctx context.Context, userID, applicationID string) error {
	if _, err := s.GetApplication(ctx, userID, applicationID); err != nil {
		return err
	}
	deleted, err := s.apps.Delete(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("dismiss application: %w", err)
	}
	if !deleted {
		return model.ErrApplicationNotFound
	}
	s.logger.DebugContext(ctx, "application dismissed", "application_id", applicationID, "user_id", userID)
	return nil
}

// CancelApply cancels the user's queued task.
func (s *ApplicationService) CancelApply(ctx context.Context, userID, taskID string) (*model.Application, error) {
	t, err := s.queue.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, model.ErrTaskNotFound
	}
	return s.queue.Cancel(ctx, taskID)
}

// ListLogs returns the submission step log of the user's application.
func (s *ApplicationService) ListLogs(ctx context.Context, userID, applicationID string) ([]*model.SubmissionLog, error) {
	if _, err := s.GetApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	if s.logs == nil {
		return []*model.SubmissionLog{}, nil
	}
	entries, err := s.logs.ListByApplication(ctx, applicationID, DefaultLogLimit)
	if err != nil {
		return nil, fmt.Errorf("list submission logs: %w", err)
	}
	return entries, nil
}
