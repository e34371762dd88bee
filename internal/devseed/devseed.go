// Package devseed loads a small job and resume catalog for local development.
package devseed

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/target/mmk-autoapply/internal/data/memstore"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Target receives seeded catalog rows. Implementations skip rows that already exist.
type Target interface {
	PutJob(ctx context.Context, job *model.Job) (bool, error)
	PutResume(ctx context.Context, res *model.Resume) (bool, error)
}

// Fixtures is the decoded seed catalog.
type Fixtures struct {
	Jobs    []jobSeed    `yaml:"jobs"`
	Resumes []resumeSeed `yaml:"resumes"`
}

type jobSeed struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Company   string   `yaml:"company"`
	Location  *string  `yaml:"location"`
	SalaryMin *int64   `yaml:"salary_min"`
	SalaryMax *int64   `yaml:"salary_max"`
	Source    string   `yaml:"source"`
	URL       *string  `yaml:"url"`
	Tags      []string `yaml:"tags"`
}

type resumeSeed struct {
	ID         string         `yaml:"id"`
	UserID     string         `yaml:"user_id"`
	FileName   string         `yaml:"file_name"`
	FilePath   *string        `yaml:"file_path"`
	IsDefault  bool           `yaml:"is_default"`
	ParsedData map[string]any `yaml:"parsed_data"`
}

// DefaultFixtures returns the embedded development catalog.
func DefaultFixtures() (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(fixturesYAML, &f); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return f, nil
}

// Run writes every fixture row to target. Individual failures are logged and
// counted; the returned error reports how many rows failed.
func Run(ctx context.Context, target Target, f Fixtures, logger *slog.Logger) error {
	if target == nil {
		return errors.New("seed target is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	failures := 0
	for _, s := range f.Jobs {
		job := &model.Job{
			ID:        s.ID,
			Title:     s.Title,
			Company:   s.Company,
			Location:  s.Location,
			SalaryMin: s.SalaryMin,
			SalaryMax: s.SalaryMax,
			Source:    s.Source,
			URL:       s.URL,
			Tags:      s.Tags,
		}
		created, err := target.PutJob(ctx, job)
		failures += logSeed(ctx, logger, "job", s.ID, created, err)
	}
	for _, s := range f.Resumes {
		res := &model.Resume{
			ID:         s.ID,
			UserID:     s.UserID,
			FileName:   s.FileName,
			FilePath:   s.FilePath,
			IsDefault:  s.IsDefault,
			ParsedData: s.ParsedData,
		}
		created, err := target.PutResume(ctx, res)
		failures += logSeed(ctx, logger, "resume", s.ID, created, err)
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func logSeed(ctx context.Context, logger *slog.Logger, kind, id string, created bool, err error) int {
	if err != nil {
		logger.ErrorContext(ctx, "failed to seed "+kind, "id", id, "error", err)
		return 1
	}
	msg := kind + " already exists"
	if created {
		msg = "seeded " + kind
	}
	logger.InfoContext(ctx, msg, "id", id)
	return 0
}

// MemoryTarget seeds an in-memory store.
type MemoryTarget struct {
	Store *memstore.Store
}

// PutJob implements Target.
func (t MemoryTarget) PutJob(ctx context.Context, job *model.Job) (bool, error) {
	if _, err := t.Store.GetJob(ctx, job.ID); err == nil {
		return false, nil
	}
	t.Store.PutJob(job)
	return true, nil
}

// PutResume implements Target.
func (t MemoryTarget) PutResume(ctx context.Context, res *model.Resume) (bool, error) {
	if _, err := t.Store.GetResume(ctx, res.ID); err == nil {
		return false, nil
	}
	t.Store.PutResume(res)
	return true, nil
}

// SQLTarget seeds the Postgres catalog tables.
type SQLTarget struct {
	DB *sql.DB
}

// PutJob implements Target.
func (t SQLTarget) PutJob(ctx context.Context, job *model.Job) (bool, error) {
	tags := job.Tags
	if tags == nil {
		tags = []string{}
	}
	source := job.Source
	if source == "" {
		source = model.SourceManual
	}
	res, err := t.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, title, company, location, salary_min, salary_max, source, url, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		job.ID, job.Title, job.Company, job.Location, job.SalaryMin, job.SalaryMax, source, job.URL, tags,
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	return affected(res)
}

// PutResume implements Target.
func (t SQLTarget) PutResume(ctx context.Context, r *model.Resume) (bool, error) {
	var parsed []byte
	if r.ParsedData != nil {
		b, err := json.Marshal(r.ParsedData)
		if err != nil {
			return false, fmt.Errorf("encode parsed_data: %w", err)
		}
		parsed = b
	}
	res, err := t.DB.ExecContext(ctx, `
		INSERT INTO resumes (id, user_id, file_name, file_path, parsed_data, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.UserID, r.FileName, r.FilePath, parsed, r.IsDefault,
	)
	if err != nil {
		return false, fmt.Errorf("insert resume: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
