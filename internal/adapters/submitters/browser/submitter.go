// Package browser submits applications by driving a job posting's apply form
// in headless Chromium.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

const (
	defaultStepTimeout = 15 * time.Second
	// Receipt is recorded when the confirmation element appeared.
	Receipt = "confirmation shown"
)

// Config describes the apply form of one job source.
type Config struct {
	Name string

	// ApplySelector opens the form when the posting hides it behind a button.
	ApplySelector string
	// Fields maps a form field selector to a JMESPath expression over
	// {"resume": <parsed resume data>, "job": <job>}.
	Fields map[string]string
	// ResumeInputSelector is the file input the resume is uploaded to.
	ResumeInputSelector  string
	SubmitSelector       string
	ConfirmationSelector string

	StepTimeout time.Duration
	Pages       PageOpener
	Logger      *slog.Logger
}

// Submitter fills and submits apply forms.
type Submitter struct {
	name        string
	applySel    string
	fields      []field
	resumeSel   string
	submitSel   string
	confirmSel  string
	stepTimeout time.Duration
	pages       PageOpener
	logger      *slog.Logger
}

type field struct {
	selector string
	expr     string
}

var _ core.Submitter = (*Submitter)(nil)

// New validates cfg and builds a Submitter.
func New(cfg Config) (*Submitter, error) {
	switch {
	case strings.TrimSpace(cfg.Name) == "":
		return nil, errors.New("browser: name is required")
	case cfg.Pages == nil:
		return nil, fmt.Errorf("browser %s: page opener is required", cfg.Name)
	case strings.TrimSpace(cfg.SubmitSelector) == "":
		return nil, fmt.Errorf("browser %s: submit_selector is required", cfg.Name)
	case strings.TrimSpace(cfg.ConfirmationSelector) == "":
		return nil, fmt.Errorf("browser %s: confirmation_selector is required", cfg.Name)
	}

	fields := make([]field, 0, len(cfg.Fields))
	for sel, expr := range cfg.Fields {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("browser %s: field %s: invalid expression: %w", cfg.Name, sel, err)
		}
		fields = append(fields, field{selector: sel, expr: expr})
	}
	// Forms are filled in a stable order so runs are reproducible.
	slices.SortFunc(fields, func(a, b field) int { return strings.Compare(a.selector, b.selector) })

	timeout := cfg.StepTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Submitter{
		name:        cfg.Name,
		applySel:    cfg.ApplySelector,
		fields:      fields,
		resumeSel:   cfg.ResumeInputSelector,
		submitSel:   cfg.SubmitSelector,
		confirmSel:  cfg.ConfirmationSelector,
		stepTimeout: timeout,
		pages:       cfg.Pages,
		logger:      logger.With("component", "browser_submitter", "submitter", cfg.Name),
	}, nil
}

// Name implements core.Submitter.
func (s *Submitter) Name() string { return s.name }

// Submit implements core.Submitter.
func (s *Submitter) Submit(ctx context.Context, req core.SubmitRequest) (string, error) {
	if req.Job.URL == nil || strings.TrimSpace(*req.Job.URL) == "" {
		return "", model.Permanent("job has no apply url", nil)
	}
	values, err := s.fieldValues(req)
	if err != nil {
		return "", err
	}
	resumePath := ""
	if s.resumeSel != "" {
		if req.Resume.FilePath == nil || strings.TrimSpace(*req.Resume.FilePath) == "" {
			return "", model.Permanent("resume file not available for upload", nil)
		}
		resumePath = *req.Resume.FilePath
	}

	page, err := s.pages.OpenPage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", model.Transient("browser unavailable", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			s.logger.Debug("close page", "error", cerr)
		}
	}()

	if err := page.Goto(*req.Job.URL, s.timeout(ctx)); err != nil {
		return "", s.stepError(ctx, "load apply page", err)
	}

	if s.applySel != "" {
		if err := s.click(ctx, page, s.applySel, "apply control"); err != nil {
			return "", err
		}
	}

	for _, f := range s.fields {
		value, ok := values[f.selector]
		if !ok {
			continue
		}
		if err := s.require(page, f.selector, "form field "+f.selector); err != nil {
			return "", err
		}
		if err := page.Fill(f.selector, value, s.timeout(ctx)); err != nil {
			return "", s.stepError(ctx, "fill "+f.selector, err)
		}
	}

	if resumePath != "" {
		if err := s.require(page, s.resumeSel, "resume upload"); err != nil {
			return "", err
		}
		if err := page.SetInputFiles(s.resumeSel, resumePath, s.timeout(ctx)); err != nil {
			return "", s.stepError(ctx, "upload resume", err)
		}
	}

	if err := s.click(ctx, page, s.submitSel, "submit control"); err != nil {
		return "", err
	}

	if err := page.WaitVisible(s.confirmSel, s.timeout(ctx)); err != nil {
		// The form may have been accepted without the page saying so.
		return "", s.stepError(ctx, "wait for confirmation", err)
	}

	s.logger.InfoContext(ctx, "application submitted through browser",
		"application_id", req.Application.ID, "job_id", req.Job.ID)
	return Receipt, nil
}

// fieldValues evaluates every field expression before the browser is touched,
// so a resume lacking data fails without opening a page.
func (s *Submitter) fieldValues(req core.SubmitRequest) (map[string]string, error) {
	doc := map[string]any{
		"resume": req.Resume.ParsedData,
		"job": map[string]any{
			"id":      req.Job.ID,
			"title":   req.Job.Title,
			"company": req.Job.Company,
		},
	}
	out := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		v, err := jmespath.Search(f.expr, doc)
		if err != nil {
			return nil, model.Permanent("evaluate field "+f.selector, err)
		}
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t != "" {
				out[f.selector] = t
			}
		default:
			out[f.selector] = fmt.Sprint(t)
		}
	}
	return out, nil
}

func (s *Submitter) click(ctx context.Context, page Page, selector, what string) error {
	if err := s.require(page, selector, what); err != nil {
		return err
	}
	if err := page.Click(selector, s.timeout(ctx)); err != nil {
		return s.stepError(ctx, "click "+what, err)
	}
	return nil
}

// require fails permanently when selector matches nothing: the form does not
// look the way the source config expects, and retrying will not change that.
func (s *Submitter) require(page Page, selector, what string) error {
	n, err := page.Count(selector)
	if err != nil {
		return model.Transient("inspect "+what, err)
	}
	if n == 0 {
		return model.Permanent(what+" not found", fmt.Errorf("selector %q matched nothing", selector))
	}
	return nil
}

func (s *Submitter) stepError(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrPageTimeout) {
		return model.Transient(step+" timed out", err)
	}
	return model.Transient(step+" failed", err)
}

// timeout is the per-step timeout, shortened to what is left of ctx.
func (s *Submitter) timeout(ctx context.Context) time.Duration {
	d := s.stepTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = max(left, time.Millisecond)
		}
	}
	return d
}
