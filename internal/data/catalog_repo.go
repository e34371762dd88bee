package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

// CatalogRepo reads the job and resume tables owned by the ingestion and
// resume services. The orchestrator never writes to them.
type CatalogRepo struct {
	DB *sql.DB
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{DB: db}
}

var (
	_ core.JobCatalog    = (*CatalogRepo)(nil)
	_ core.ResumeCatalog = (*CatalogRepo)(nil)
)

const jobColumns = `id, title, company, location, salary_min, salary_max, source, url, tags, created_at`

// GetJob returns the job posting with the given id.
func (r *CatalogRepo) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job := &model.Job{}
	var location, url sql.NullString
	var salaryMin, salaryMax sql.NullInt64
	var tags []string
	err := withPgxRow(ctx, r.DB, pgxRowQuery{
		SQL:  `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`,
		Args: []any{id},
		Dest: []any{
			&job.ID, &job.Title, &job.Company, &location, &salaryMin, &salaryMax,
			&job.Source, &url, &tags, &job.CreatedAt,
		},
	})
	if isNoRows(err) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	job.Location = cloneNullableString(location)
	job.URL = cloneNullableString(url)
	job.SalaryMin = cloneNullableInt64(salaryMin)
	job.SalaryMax = cloneNullableInt64(salaryMax)
	job.Tags = tags
	if job.Source == "" {
		job.Source = model.SourceManual
	}
	job.CreatedAt = job.CreatedAt.UTC()
	return job, nil
}

const resumeColumns = `id, user_id, file_name, file_path, parsed_data, is_default, created_at`

func scanResume(scanner rowScanner) (*model.Resume, error) {
	res := &model.Resume{}
	var filePath sql.NullString
	var parsed []byte
	if err := scanner.Scan(&res.ID, &res.UserID, &res.FileName, &filePath, &parsed, &res.IsDefault, &res.CreatedAt); err != nil {
		return nil, err
	}
	res.FilePath = cloneNullableString(filePath)
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &res.ParsedData); err != nil {
			return nil, fmt.Errorf("decode parsed_data: %w", err)
		}
	}
	res.CreatedAt = res.CreatedAt.UTC()
	return res, nil
}

// GetResume returns the resume with the given id.
func (r *CatalogRepo) GetResume(ctx context.Context, id string) (*model.Resume, error) {
	res, err := scanResume(r.DB.QueryRowContext(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, model.ErrResumeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resume: %w", err)
	}
	return res, nil
}

// DefaultResume returns the user's default resume, or their newest one when none is marked default.
func (r *CatalogRepo) DefaultResume(ctx context.Context, userID string) (*model.Resume, error) {
	res, err := scanResume(r.DB.QueryRowContext(ctx, `
		SELECT `+resumeColumns+`
		FROM resumes
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
		LIMIT 1
	`, userID))
	if isNoRows(err) {
		return nil, model.ErrResumeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default resume: %w", err)
	}
	return res, nil
}
