// Package memstore is an in-process implementation of the record store,
// task backlog, submission log and catalog ports. Every operation runs under
// one mutex, which gives the same atomicity the Postgres transactions give.
package memstore

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/domain/task"
)

// Clock returns the current time.
type Clock func() time.Time

// Options configures a Store.
type Options struct {
	Clock Clock
}

type pairKey struct {
	userID string
	jobID  string
}

// Store holds all state in memory.
type Store struct {
	mu   sync.Mutex
	now  Clock
	wake chan struct{}

	apps      map[string]*model.Application
	appByPair map[pairKey]string

	tasks      map[string]*model.AutomationTask
	taskByPair map[pairKey]string

	logs    map[string][]*model.SubmissionLog
	jobs    map[string]*model.Job
	resumes map[string]*model.Resume
}

var (
	_ core.ApplicationRepository   = (*Store)(nil)
	_ core.TaskRepository          = (*Store)(nil)
	_ core.ReaperRepository        = (*Store)(nil)
	_ core.JobCatalog              = (*Store)(nil)
	_ core.ResumeCatalog           = (*Store)(nil)
	_ core.SubmissionLogRepository = (*Store)(nil)
	_ task.Waiter                  = (*Store)(nil)
)

// New creates an empty Store.
func New(opts Options) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		now:        clock,
		wake:       make(chan struct{}),
		apps:       make(map[string]*model.Application),
		appByPair:  make(map[pairKey]string),
		tasks:      make(map[string]*model.AutomationTask),
		taskByPair: make(map[pairKey]string),
		logs:       make(map[string][]*model.SubmissionLog),
		jobs:       make(map[string]*model.Job),
		resumes:    make(map[string]*model.Resume),
	}
}

func (s *Store) clock() time.Time { return s.now().UTC() }

// broadcast wakes every WaitForNotification caller. Caller holds s.mu.
func (s *Store) broadcast() {
	close(s.wake)
	s.wake = make(chan struct{})
}

func cloneApp(a *model.Application) *model.Application {
	if a == nil {
		return nil
	}
	out := *a
	out.ResumeID = cloneStr(a.ResumeID)
	out.FailureReason = cloneStr(a.FailureReason)
	out.Notes = cloneStr(a.Notes)
	return &out
}

func cloneTask(t *model.AutomationTask) *model.AutomationTask {
	if t == nil {
		return nil
	}
	out := *t
	out.LastError = cloneStr(t.LastError)
	if t.LeaseExpiresAt != nil {
		v := *t.LeaseExpiresAt
		out.LeaseExpiresAt = &v
	}
	return &out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// PutJob seeds a job posting.
func (s *Store) PutJob(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	cp.Tags = slices.Clone(job.Tags)
	if cp.Source == "" {
		cp.Source = model.SourceManual
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.clock()
	}
	s.jobs[cp.ID] = &cp
}

// PutResume seeds a resume.
func (s *Store) PutResume(res *model.Resume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *res
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.clock()
	}
	s.resumes[cp.ID] = &cp
}

// GetJob implements core.JobCatalog.
func (s *Store) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	cp := *job
	cp.Tags = slices.Clone(job.Tags)
	return &cp, nil
}

// GetResume implements core.ResumeCatalog.
func (s *Store) GetResume(_ context.Context, id string) (*model.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.resumes[id]
	if !ok {
		return nil, model.ErrResumeNotFound
	}
	cp := *res
	return &cp, nil
}

// DefaultResume implements core.ResumeCatalog.
func (s *Store) DefaultResume(_ context.Context, userID string) (*model.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Resume
	for _, r := range s.resumes {
		if r.UserID != userID {
			continue
		}
		if best == nil ||
			(r.IsDefault && !best.IsDefault) ||
			(r.IsDefault == best.IsDefault && r.CreatedAt.After(best.CreatedAt)) {
			best = r
		}
	}
	if best == nil {
		return nil, model.ErrResumeNotFound
	}
	cp := *best
	return &cp, nil
}

// Create implements core.ApplicationRepository.
func (s *Store) Create(_ context.Context, req *model.CreateApplicationRequest) (*model.Application, error) {
	if req == nil {
		return nil, errors.New("create application request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[req.JobID]; !ok {
		return nil, model.ErrJobNotFound
	}
	key := pairKey{req.UserID, req.JobID}
	if _, exists := s.appByPair[key]; exists {
		return nil, model.ErrApplicationExists
	}
	now := s.clock()
	app := &model.Application{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		JobID:     req.JobID,
		ResumeID:  cloneStr(req.ResumeID),
		Status:    model.ApplicationStatusSaved,
		Notes:     cloneStr(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.apps[app.ID] = app
	s.appByPair[key] = app.ID
	return cloneApp(app), nil
}

// GetByID implements core.ApplicationRepository.
func (s *Store) GetByID(_ context.Context, id string) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, model.ErrApplicationNotFound
	}
	return cloneApp(app), nil
}

// GetByUserAndJob implements core.ApplicationRepository.
func (s *Store) GetByUserAndJob(_ context.Context, userID, jobID string) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.appByPair[pairKey{userID, jobID}]
	if !ok {
		return nil, model.ErrApplicationNotFound
	}
	return cloneApp(s.apps[id]), nil
}

// ListByUser implements core.ApplicationRepository.
func (s *Store) ListByUser(_ context.Context, opts model.ApplicationListOptions) ([]*model.ApplicationView, error) {
	if strings.TrimSpace(opts.UserID) == "" {
		return nil, errors.New("user_id is required")
	}
	opts.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]*model.Application, 0)
	for _, app := range s.apps {
		if app.UserID != opts.UserID {
			continue
		}
		if opts.Status != nil && app.Status != *opts.Status {
			continue
		}
		matched = append(matched, app)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if opts.Offset >= len(matched) {
		return []*model.ApplicationView{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(matched))
	out := make([]*model.ApplicationView, 0, end-opts.Offset)
	for _, app := range matched[opts.Offset:end] {
		view := &model.ApplicationView{Application: *cloneApp(app)}
		if job, ok := s.jobs[app.JobID]; ok {
			view.Job = job.Summary()
		}
		out = append(out, view)
	}
	return out, nil
}

// Transition implements core.ApplicationRepository.
func (s *Store) Transition(_ context.Context, params core.TransitionParams) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[params.ID]
	if !ok {
		return nil, model.ErrApplicationNotFound
	}
	if app.Status != params.From {
		return nil, model.ErrStatusMismatch
	}
	s.setStatus(app, params.To, params.FailureReason)
	return cloneApp(app), nil
}

// setStatus applies a status change and keeps failure_reason in step. Caller holds s.mu.
func (s *Store) setStatus(app *model.Application, to model.ApplicationStatus, reason *string) {
	app.Status = to
	if to == model.ApplicationStatusFailed {
		app.FailureReason = cloneStr(reason)
	} else {
		app.FailureReason = nil
	}
	app.UpdatedAt = s.clock()
}

// UpdateNotes implements core.ApplicationRepository.
func (s *Store) UpdateNotes(_ context.Context, id string, notes *string) (*model.Application, error) {
	if notes != nil && len(*notes) > model.MaxNotesLength {
		return nil, errors.New("notes too long")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, model.ErrApplicationNotFound
	}
	app.Notes = cloneStr(notes)
	app.UpdatedAt = s.clock()
	return cloneApp(app), nil
}

// Delete implements core.ApplicationRepository.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return false, nil
	}
	key := pairKey{app.UserID, app.JobID}
	if _, inFlight := s.taskByPair[key]; inFlight || app.Status == model.ApplicationStatusApplying {
		return false, model.ErrApplicationInFlight
	}
	delete(s.apps, id)
	delete(s.appByPair, key)
	delete(s.logs, id)
	return true, nil
}
