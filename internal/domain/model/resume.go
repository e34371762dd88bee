package model

import (
	"errors"
	"time"
)

// ErrResumeNotFound is returned when no usable resume exists for a request.
var ErrResumeNotFound = errors.New("resume not found")

// Resume is a stored resume selected during submission. Resumes are owned by
// the storage service; the orchestrator only reads them.
type Resume struct {
	ID         string         `json:"id"                    db:"id"`
	UserID     string         `json:"user_id"               db:"user_id"`
	FileName   string         `json:"file_name"             db:"file_name"`
	FilePath   *string        `json:"file_path,omitempty"   db:"file_path"`
	ParsedData map[string]any `json:"parsed_data,omitempty" db:"parsed_data"`
	IsDefault  bool           `json:"is_default"            db:"is_default"`
	CreatedAt  time.Time      `json:"created_at"            db:"created_at"`
}
