// Package httpx serves the application automation API.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/target/mmk-autoapply/internal/domain/model"
	apperrors "github.com/target/mmk-autoapply/internal/errors"
	"github.com/target/mmk-autoapply/internal/service"
)

// ApplicationHandlers serves the /api/applications and /api/automation routes.
type ApplicationHandlers struct {
	Svc    *service.ApplicationService
	Logger *slog.Logger
}

type applyRequest struct {
	ResumeID string `json:"resume_id"`
	Reapply  bool   `json:"reapply"`
}

type applyResponse struct {
	Application *model.Application `json:"application"`
	TaskID      string             `json:"task_id,omitempty"`
}

// RequestApply handles POST /api/automation/apply/{jobId}. A new task answers
// 202; a request that found the submission already in flight answers 200
// with the existing record.
func (h *ApplicationHandlers) RequestApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !DecodeOptionalJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.RequestApply(r.Context(), service.RequestApplyParams{
		UserID:   userID(r.Context()),
		JobID:    r.PathValue("jobId"),
		ResumeID: req.ResumeID,
		Reapply:  req.Reapply,
	})
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	code := http.StatusOK
	if res.Created {
		code = http.StatusAccepted
	}
	WriteJSON(w, code, applyResponse{Application: res.Application, TaskID: res.TaskID})
}

// CancelTask handles DELETE /api/automation/tasks/{id}.
func (h *ApplicationHandlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, model.ErrTaskNotFound)
	if !ok {
		return
	}
	if _, err := h.Svc.CancelApply(r.Context(), userID(r.Context()), id); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListApplications handles GET /api/applications.
func (h *ApplicationHandlers) ListApplications(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r, model.DefaultApplicationListLimit, model.MaxApplicationListLimit)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	opts := model.ApplicationListOptions{Limit: limit, Offset: offset}

	if raw := r.URL.Query().Get("status"); raw != "" {
		var status model.ApplicationStatus
		if err := status.UnmarshalText([]byte(raw)); err != nil {
			writeServiceError(w, r, h.Logger, apperrors.ValidationField("status", "unknown application status"))
			return
		}
		opts.Status = &status
	}

	views, err := h.Svc.ListApplications(r.Context(), userID(r.Context()), opts)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	if views == nil {
		views = []*model.ApplicationView{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"applications": views})
}

type saveJobRequest struct {
	JobID    string  `json:"job_id"`
	ResumeID *string `json:"resume_id,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// SaveJob handles POST /api/applications.
func (h *ApplicationHandlers) SaveJob(w http.ResponseWriter, r *http.Request) {
	var req saveJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	app, err := h.Svc.SaveJob(r.Context(), &model.CreateApplicationRequest{
		UserID:   userID(r.Context()),
		JobID:    req.JobID,
		ResumeID: req.ResumeID,
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, app)
}

// GetApplication handles GET /api/applications/{id}.
func (h *ApplicationHandlers) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, model.ErrApplicationNotFound)
	if !ok {
		return
	}
	app, err := h.Svc.GetApplication(r.Context(), userID(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, app)
}

type statusRequest struct {
	Status model.ApplicationStatus `json:"status"`
}

// UpdateStatus handles PATCH /api/applications/{id}/status.
func (h *ApplicationHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, model.ErrApplicationNotFound)
	if !ok {
		return
	}
	var req statusRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	app, err := h.Svc.UpdateStatus(r.Context(), userID(r.Context()), id, req.Status)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, app)
}

type notesRequest struct {
	Notes *string `json:"notes"`
}

// UpdateNotes handles PATCH /api/applications/{id}/notes. A null or empty
// value clears the notes.
func (h *ApplicationHandlers) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, model.ErrApplicationNotFound)
	if !ok {
		return
	}
	var req notesRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Notes != nil && *req.Notes == "" {
		req.Notes = nil
	}
	app, err := h.Svc.UpdateNotes(r.Context(), userID(r.Context()), id, req.Notes)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, app)
}

// Dismiss handles DELETE /api/applications/{id}.
func (h *ApplicationHandlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, model.ErrApplicationNotFound)
	if !ok {
		return
	}
	if err := h.Svc.Dismiss(r.Context(), userID(r.Context()), id); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLogs handles GET /api/applications/{id}/logs.
func (h *ApplicationHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, model.ErrApplicationNotFound)
	if !ok {
		return
	}
	entries, err := h.Svc.ListLogs(r.Context(), userID(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	if entries == nil {
		entries = []*model.SubmissionLog{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// pathID reads the {id} path value. Application and task ids are UUIDs, so
// anything else cannot name an existing record and answers notFound.
func (h *ApplicationHandlers) pathID(w http.ResponseWriter, r *http.Request, notFound error) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeServiceError(w, r, h.Logger, notFound)
		return "", false
	}
	return id, true
}
