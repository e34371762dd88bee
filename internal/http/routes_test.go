package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-autoapply/internal/data/memstore"
	domainauth "github.com/target/mmk-autoapply/internal/domain/auth"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/domain/task"
	apperrors "github.com/target/mmk-autoapply/internal/errors"
	"github.com/target/mmk-autoapply/internal/service"
)

// tokenAuth accepts "token-<user>" and rejects everything else.
type tokenAuth struct{}

func (tokenAuth) Authenticate(_ context.Context, token string) (*domainauth.Session, error) {
	user, ok := strings.CutPrefix(token, "token-")
	if !ok || user == "" {
		return nil, apperrors.Unauthorized("invalid bearer token")
	}
	return &domainauth.Session{UserID: user, Role: domainauth.RoleUser}, nil
}

type apiFixture struct {
	store   *memstore.Store
	queue   *service.TaskQueueService
	handler http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memstore.New(memstore.Options{})
	store.PutJob(&model.Job{ID: "job-1", Title: "Backend Engineer", Company: "Acme", Source: "greenhouse"})
	store.PutJob(&model.Job{ID: "job-2", Title: "SRE", Company: "Initech", Source: "lever"})
	store.PutResume(&model.Resume{ID: "res-1", UserID: "alice", IsDefault: true})

	queue := service.MustNewTaskQueueService(service.TaskQueueServiceOptions{
		Tasks:        store,
		Applications: store,
		Jobs:         store,
		Retry:        task.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute, MaxDelay: time.Minute},
		Lease:        time.Minute,
		PollInterval: 10 * time.Millisecond,
	})
	t.Cleanup(queue.Stop)

	apps := service.MustNewApplicationService(service.ApplicationServiceOptions{
		Applications: store,
		Queue:        queue,
		Jobs:         store,
		Resumes:      store,
		Logs:         store,
	})

	return &apiFixture{
		store: store,
		queue: queue,
		handler: NewRouter(RouterServices{
			Applications: apps,
			Auth:         tokenAuth{},
			MaxBodyBytes: 4096,
			Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		}),
	}
}

func (f *apiFixture) do(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if user != "" {
		req.Header.Set("Authorization", "Bearer token-"+user)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rec).Error
}

// applied applies alice to job-1 and drives the submission to success.
func (f *apiFixture) applied(t *testing.T) *model.Application {
	t.Helper()
	rec := f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reserved, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	res, err := f.queue.Report(ctx, reserved.ID, model.Succeeded("gh-1"))
	require.NoError(t, err)
	return res.Application
}

func TestAPI_RequiresBearer(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "", http.MethodGet, "/api/applications", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

	req = httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_HealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RequestApply(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	first := decode[applyResponse](t, rec)
	assert.Equal(t, model.ApplicationStatusApplying, first.Application.Status)
	assert.NotEmpty(t, first.TaskID)

	// A second click while in flight returns the same record without a new task.
	rec = f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[applyResponse](t, rec)
	assert.Equal(t, first.Application.ID, second.Application.ID)
	assert.Equal(t, first.TaskID, second.TaskID)

	// An explicit re-apply while in flight is a conflict.
	rec = f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", `{"reapply": true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))
}

func TestAPI_RequestApplyErrors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name     string
		user     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "unknown job", user: "alice", path: "/api/automation/apply/job-404", wantCode: 404, wantErr: "not_found"},
		{name: "no resume", user: "bob", path: "/api/automation/apply/job-1", wantCode: 404, wantErr: "not_found"},
		{
			name: "foreign resume", user: "bob", path: "/api/automation/apply/job-1",
			body: `{"resume_id": "res-1"}`, wantCode: 404, wantErr: "not_found",
		},
		{
			name: "unknown field", user: "alice", path: "/api/automation/apply/job-1",
			body: `{"resume": "res-1"}`, wantCode: 400, wantErr: "invalid_json",
		},
		{
			name: "body too large", user: "alice", path: "/api/automation/apply/job-1",
			body: `{"resume_id": "` + strings.Repeat("x", 5000) + `"}`, wantCode: 413, wantErr: "body_too_large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.user, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, errorCode(t, rec))
		})
	}
}

func TestAPI_ReapplyAfterFailure(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	ctx := context.Background()
	reserved, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	_, err = f.queue.Report(ctx, reserved.ID, model.Permanent("job closed", nil))
	require.NoError(t, err)

	rec = f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "plain apply on a failed record needs reapply")

	rec = f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", `{"reapply": true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusApplying, decode[applyResponse](t, rec).Application.Status)
}

func TestAPI_CancelTask(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	taskID := decode[applyResponse](t, rec).TaskID

	rec = f.do(t, "mallory", http.MethodDelete, "/api/automation/tasks/"+taskID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "tasks of other users are invisible")

	rec = f.do(t, "alice", http.MethodDelete, "/api/automation/tasks/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, "alice", http.MethodDelete, "/api/automation/tasks/"+taskID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, "alice", http.MethodDelete, "/api/automation/tasks/"+taskID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CancelExecutingTaskConflicts(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	taskID := decode[applyResponse](t, rec).TaskID
	_, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)

	rec = f.do(t, "alice", http.MethodDelete, "/api/automation/tasks/"+taskID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_SaveListAndGet(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "alice", http.MethodPost, "/api/applications", `{"job_id": "job-2", "notes": "referral from Sam"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[model.Application](t, rec)
	assert.Equal(t, model.ApplicationStatusSaved, saved.Status)

	rec = f.do(t, "alice", http.MethodPost, "/api/applications", `{"job_id": "job-2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "alice", http.MethodPost, "/api/applications", `{"job_id": "job-404"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, "alice", http.MethodPost, "/api/applications", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))

	f.applied(t)

	rec = f.do(t, "alice", http.MethodGet, "/api/applications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Applications []model.ApplicationView `json:"applications"`
	}](t, rec)
	require.Len(t, list.Applications, 2)
	for _, v := range list.Applications {
		require.NotNil(t, v.Job, "list entries carry the job summary")
	}

	rec = f.do(t, "alice", http.MethodGet, "/api/applications?status=saved&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[struct {
		Applications []model.ApplicationView `json:"applications"`
	}](t, rec)
	require.Len(t, list.Applications, 1)
	assert.Equal(t, saved.ID, list.Applications[0].ID)

	rec = f.do(t, "alice", http.MethodGet, "/api/applications?status=ghosted", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "bob", http.MethodGet, "/api/applications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"applications":[]}`, rec.Body.String())

	rec = f.do(t, "alice", http.MethodGet, "/api/applications/"+saved.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, saved.ID, decode[model.Application](t, rec).ID)

	rec = f.do(t, "bob", http.MethodGet, "/api/applications/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, "alice", http.MethodGet, "/api/applications/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UpdateStatus(t *testing.T) {
	f := newAPIFixture(t)
	app := f.applied(t)
	path := "/api/applications/" + app.ID + "/status"

	rec := f.do(t, "alice", http.MethodPatch, path, `{"status": "applied"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "only external statuses are accepted")

	rec = f.do(t, "alice", http.MethodPatch, path, `{"status": "ghosted"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "alice", http.MethodPatch, path, `{"status": "interviewing"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusInterviewing, decode[model.Application](t, rec).Status)

	rec = f.do(t, "alice", http.MethodPatch, path, `{"status": "rejected"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusRejected, decode[model.Application](t, rec).Status)

	rec = f.do(t, "alice", http.MethodPatch, path, `{"status": "interviewing"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "rejected is terminal")
}

func TestAPI_UpdateStatusOnSavedConflicts(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, "alice", http.MethodPost, "/api/applications", `{"job_id": "job-2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[model.Application](t, rec)

	rec = f.do(t, "alice", http.MethodPatch, "/api/applications/"+saved.ID+"/status", `{"status": "interviewing"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_UpdateNotes(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, "alice", http.MethodPost, "/api/applications", `{"job_id": "job-2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[model.Application](t, rec)
	path := "/api/applications/" + saved.ID + "/notes"

	rec = f.do(t, "alice", http.MethodPatch, path, `{"notes": "call back Friday"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[model.Application](t, rec)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "call back Friday", *got.Notes)

	rec = f.do(t, "alice", http.MethodPatch, path, `{"notes": ""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[model.Application](t, rec).Notes)

	rec = f.do(t, "alice", http.MethodPatch, path, `{"notes": "`+strings.Repeat("n", model.MaxNotesLength+1)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "bob", http.MethodPatch, path, `{"notes": "mine now"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Dismiss(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	inFlight := decode[applyResponse](t, rec).Application

	rec = f.do(t, "alice", http.MethodDelete, "/api/applications/"+inFlight.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "in-flight applications cannot be dismissed")

	rec = f.do(t, "alice", http.MethodPost, "/api/applications", `{"job_id": "job-2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[model.Application](t, rec)

	rec = f.do(t, "bob", http.MethodDelete, "/api/applications/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, "alice", http.MethodDelete, "/api/applications/"+saved.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "alice", http.MethodGet, "/api/applications/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListLogs(t *testing.T) {
	f := newAPIFixture(t)
	app := f.applied(t)

	msg := "confirmation gh-1"
	require.NoError(t, f.store.Append(context.Background(), &model.SubmissionLog{
		ApplicationID: app.ID,
		Attempt:       1,
		Step:          model.StepOutcome,
		Status:        model.LogStatusOK,
		Message:       &msg,
	}))

	rec := f.do(t, "alice", http.MethodGet, "/api/applications/"+app.ID+"/logs", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	logs := decode[struct {
		Logs []model.SubmissionLog `json:"logs"`
	}](t, rec)
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, model.StepOutcome, logs.Logs[0].Step)

	rec = f.do(t, "bob", http.MethodGet, "/api/applications/"+app.ID+"/logs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ResponsesHideRetryState(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, "alice", http.MethodPost, "/api/automation/apply/job-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := rec.Body.String()
	for _, key := range []string{"attempts", "max_attempts", "lease_expires_at", "last_error"} {
		assert.NotContains(t, body, key)
	}
}

func TestAPI_RecoversFromPanics(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "boom")
}
