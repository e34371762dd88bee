package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-autoapply/internal/domain/model"
)

// JobBuilder provides a fluent interface for building catalog jobs in tests.
type JobBuilder struct {
	job *model.Job
}

// NewJob creates a JobBuilder with sensible defaults and a random id.
func NewJob() *JobBuilder {
	url := "https://boards.greenhouse.io/acme/jobs/" + uuid.NewString()[:8]
	return &JobBuilder{
		job: &model.Job{
			ID:      "job-" + uuid.NewString(),
			Title:   "Backend Engineer",
			Company: "Acme",
			Source:  "greenhouse",
			URL:     &url,
			Tags:    []string{"go"},
		},
	}
}

// WithID sets the job id.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithSource sets the job source.
func (b *JobBuilder) WithSource(source string) *JobBuilder {
	b.job.Source = source
	return b
}

// WithURL sets the posting URL.
func (b *JobBuilder) WithURL(url string) *JobBuilder {
	b.job.URL = &url
	return b
}

// Build returns the built job.
func (b *JobBuilder) Build() *model.Job {
	return b.job
}

// ResumeFixture returns a default resume for userID with parsed profile data.
func ResumeFixture(userID string) *model.Resume {
	return &model.Resume{
		ID:        "res-" + uuid.NewString(),
		UserID:    userID,
		FileName:  "resume.pdf",
		IsDefault: true,
		ParsedData: map[string]any{
			"name":  "Ada Lovelace",
			"email": "ada@example.com",
		},
	}
}

// SeedJob inserts a job into the catalog table.
func SeedJob(t TestingTB, db *sql.DB, job *model.Job) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tags := job.Tags
	if tags == nil {
		tags = []string{}
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO jobs (id, title, company, location, salary_min, salary_max, source, url, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.ID, job.Title, job.Company, job.Location, job.SalaryMin, job.SalaryMax, job.Source, job.URL, tags); err != nil {
		t.Fatalf("Failed to seed job %s: %v", job.ID, err)
	}
}

// SeedResume inserts a resume into the catalog table.
func SeedResume(t TestingTB, db *sql.DB, res *model.Resume) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var parsed []byte
	if res.ParsedData != nil {
		var err error
		if parsed, err = json.Marshal(res.ParsedData); err != nil {
			t.Fatalf("Failed to encode parsed data: %v", err)
		}
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO resumes (id, user_id, file_name, file_path, parsed_data, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, res.ID, res.UserID, res.FileName, res.FilePath, parsed, res.IsDefault); err != nil {
		t.Fatalf("Failed to seed resume %s: %v", res.ID, err)
	}
}
