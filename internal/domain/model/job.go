// Package model defines the core data types shared by the auto-apply orchestrator.
package model

import (
	"errors"
	"time"
)

// SourceManual marks postings that carry no automatable origin site.
const SourceManual = "manual"

// ErrJobNotFound is returned when a job posting cannot be located in the catalog.
var ErrJobNotFound = errors.New("job not found")

// Job is an ingested job posting. Jobs are owned by the ingestion pipeline and
// are read-only to the orchestrator.
type Job struct {
	ID        string    `json:"id"                   db:"id"`
	Title     string    `json:"title"                db:"title"`
	Company   string    `json:"company"              db:"company"`
	Location  *string   `json:"location,omitempty"   db:"location"`
	SalaryMin *int64    `json:"salary_min,omitempty" db:"salary_min"`
	SalaryMax *int64    `json:"salary_max,omitempty" db:"salary_max"`
	Source    string    `json:"source"               db:"source"`
	URL       *string   `json:"url,omitempty"        db:"url"`
	Tags      []string  `json:"tags"                 db:"tags"`
	CreatedAt time.Time `json:"created_at"           db:"created_at"`
}

// Summary projects the job into the nested form returned with applications.
func (j *Job) Summary() *JobSummary {
	if j == nil {
		return nil
	}
	return &JobSummary{
		ID:       j.ID,
		Title:    j.Title,
		Company:  j.Company,
		Location: j.Location,
		Source:   j.Source,
	}
}

// JobSummary is the trimmed job view embedded in application listings.
type JobSummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Company  string  `json:"company"`
	Location *string `json:"location,omitempty"`
	Source   string  `json:"source"`
}
