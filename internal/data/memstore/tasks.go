package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/domain/task"
)

// Admit implements core.TaskRepository.
func (s *Store) Admit(_ context.Context, params core.AdmitParams) (*model.TaskHandle, error) {
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = task.DefaultMaxAttempts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{params.UserID, params.JobID}
	if _, ok := s.jobs[params.JobID]; !ok {
		return nil, model.ErrJobNotFound
	}
	if _, inFlight := s.taskByPair[key]; inFlight {
		return nil, model.ErrAlreadyInFlight
	}

	now := s.clock()
	resumeID := params.ResumeID
	var app *model.Application
	if params.From == nil {
		if _, exists := s.appByPair[key]; exists {
			return nil, model.ErrApplicationExists
		}
		app = &model.Application{
			ID:        uuid.NewString(),
			UserID:    params.UserID,
			JobID:     params.JobID,
			CreatedAt: now,
		}
	} else {
		id, exists := s.appByPair[key]
		if !exists || s.apps[id].Status != *params.From {
			return nil, model.ErrStatusMismatch
		}
		app = s.apps[id]
	}
	app.ResumeID = &resumeID
	s.setStatus(app, params.To, nil)
	s.apps[app.ID] = app
	s.appByPair[key] = app.ID

	t := &model.AutomationTask{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		UserID:        params.UserID,
		JobID:         params.JobID,
		ResumeID:      params.ResumeID,
		State:         model.TaskStateQueued,
		MaxAttempts:   maxAttempts,
		RunAt:         now,
		CreatedAt:     now,
	}
	s.tasks[t.ID] = t
	s.taskByPair[key] = t.ID
	s.broadcast()

	return &model.TaskHandle{TaskID: t.ID, Application: cloneApp(app)}, nil
}

// ReserveNext implements core.TaskRepository.
func (s *Store) ReserveNext(_ context.Context, leaseSeconds int) (*model.AutomationTask, error) {
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.requeueExpiredLocked(now, 0)

	ready := make([]*model.AutomationTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.State == model.TaskStateQueued && !t.RunAt.After(now) {
			ready = append(ready, t)
		}
	}
	if len(ready) == 0 {
		return nil, model.ErrNoTasksAvailable
	}
	sort.Slice(ready, func(i, j int) bool {
		if !ready[i].RunAt.Equal(ready[j].RunAt) {
			return ready[i].RunAt.Before(ready[j].RunAt)
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})

	t := ready[0]
	lease := now.Add(time.Duration(leaseSeconds) * time.Second)
	t.State = model.TaskStateExecuting
	t.Attempts++
	t.LeaseExpiresAt = &lease
	return cloneTask(t), nil
}

// WaitForNotification implements core.TaskRepository and task.Waiter.
func (s *Store) WaitForNotification(ctx context.Context) error {
	s.mu.Lock()
	ch := s.wake
	s.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Heartbeat implements core.TaskRepository.
func (s *Store) Heartbeat(_ context.Context, taskID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.State != model.TaskStateExecuting {
		return false, nil
	}
	lease := s.clock().Add(time.Duration(leaseSeconds) * time.Second)
	t.LeaseExpiresAt = &lease
	return true, nil
}

// ownedLocked returns the task when it is executing under the given attempt. Caller holds s.mu.
func (s *Store) ownedLocked(taskID string, attempt int) (*model.AutomationTask, bool) {
	t, ok := s.tasks[taskID]
	if !ok || t.State != model.TaskStateExecuting || t.Attempts != attempt {
		return nil, false
	}
	return t, true
}

// Requeue implements core.TaskRepository.
func (s *Store) Requeue(_ context.Context, params core.RequeueParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ownedLocked(params.TaskID, params.Attempt)
	if !ok {
		return false, nil
	}
	delay := max(params.Delay, 0)
	msg := params.LastError
	t.State = model.TaskStateQueued
	t.LeaseExpiresAt = nil
	t.RunAt = s.clock().Add(delay)
	t.LastError = &msg
	s.broadcast()
	return true, nil
}

// Finish implements core.TaskRepository.
func (s *Store) Finish(_ context.Context, params core.FinishParams) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ownedLocked(params.TaskID, params.Attempt)
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	return s.finishLocked(t, params.To, params.FailureReason)
}

// finishLocked removes t and moves its application out of applying. Caller holds s.mu.
func (s *Store) finishLocked(t *model.AutomationTask, to model.ApplicationStatus, reason *string) (*model.Application, error) {
	app, ok := s.apps[t.ApplicationID]
	if !ok {
		return nil, model.ErrApplicationNotFound
	}
	if app.Status != model.ApplicationStatusApplying {
		return nil, model.ErrStatusMismatch
	}
	delete(s.tasks, t.ID)
	delete(s.taskByPair, pairKey{t.UserID, t.JobID})
	s.setStatus(app, to, reason)
	return cloneApp(app), nil
}

// Cancel implements core.TaskRepository.
func (s *Store) Cancel(_ context.Context, params core.CancelParams) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[params.TaskID]
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	if t.State != model.TaskStateQueued {
		return nil, model.ErrTaskExecuting
	}
	if !params.To.Valid() {
		return nil, fmt.Errorf("cancel task %s: invalid target status %q", params.TaskID, params.To)
	}
	reason := params.Reason
	return s.finishLocked(t, params.To, &reason)
}

// GetByApplication implements core.TaskRepository.
func (s *Store) GetByApplication(_ context.Context, applicationID string) (*model.AutomationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ApplicationID == applicationID {
			return cloneTask(t), nil
		}
	}
	return nil, model.ErrTaskNotFound
}

// GetTask returns a task by id.
func (s *Store) GetTask(_ context.Context, id string) (*model.AutomationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// RequeueExpired implements core.ReaperRepository.
func (s *Store) RequeueExpired(_ context.Context, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.requeueExpiredLocked(s.clock(), limit)
	if n > 0 {
		s.broadcast()
	}
	return n, nil
}

func (s *Store) requeueExpiredLocked(now time.Time, limit int) int64 {
	var n int64
	for _, t := range s.tasks {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if t.State != model.TaskStateExecuting || t.LeaseExpiresAt == nil || !t.LeaseExpiresAt.Before(now) {
			continue
		}
		t.State = model.TaskStateQueued
		t.LeaseExpiresAt = nil
		t.RunAt = now
		if t.LastError == nil {
			msg := "lease expired"
			t.LastError = &msg
		}
		n++
	}
	return n
}

// PurgeSubmissionLogs implements core.ReaperRepository.
func (s *Store) PurgeSubmissionLogs(_ context.Context, olderThan time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for appID, entries := range s.logs {
		kept := entries[:0]
		for _, e := range entries {
			if n < int64(batchSize) && e.CreatedAt.Before(olderThan) {
				n++
				continue
			}
			kept = append(kept, e)
		}
		s.logs[appID] = kept
	}
	return n, nil
}

// Append implements core.SubmissionLogRepository.
func (s *Store) Append(_ context.Context, entry *model.SubmissionLog) error {
	if entry == nil {
		return errors.New("submission log entry is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[entry.ApplicationID]; !ok {
		return model.ErrApplicationNotFound
	}
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock()
	}
	cp := *entry
	cp.Message = cloneStr(entry.Message)
	s.logs[entry.ApplicationID] = append(s.logs[entry.ApplicationID], &cp)
	return nil
}

// ListByApplication implements core.SubmissionLogRepository.
func (s *Store) ListByApplication(_ context.Context, applicationID string, limit int) ([]*model.SubmissionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.logs[applicationID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]*model.SubmissionLog, 0, len(entries))
	for _, e := range entries {
		cp := *e
		cp.Message = cloneStr(e.Message)
		out = append(out, &cp)
	}
	return out, nil
}
