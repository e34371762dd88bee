// Package atsapi submits applications to applicant-tracking systems that
// expose a partner HTTP API.
package atsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

const (
	defaultTimeout       = 30 * time.Second
	maxResponseBodyBytes = 64 * 1024
	// confirmedWithoutID is the receipt recorded when the confirm expression yields true.
	confirmedWithoutID = "accepted"
)

// Config describes one ATS partner API.
type Config struct {
	Name string

	// SubmitURL receives the application as a JSON POST. StatusURL, when set,
	// is queried with GET before a retry. Both accept {job_id} and
	// {application_id} placeholders.
	SubmitURL string
	StatusURL string

	// OAuth2 client credentials. Requests are unauthenticated when TokenURL is empty.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Confirm is evaluated against the submit response. A string result is the
	// confirmation receipt, true means accepted without one.
	Confirm string
	// Probe is evaluated against the status response; a truthy result means
	// the application already reached the ATS.
	Probe string

	ProfileSchema []byte
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Submitter posts applications to an ATS API.
type Submitter struct {
	name          string
	submitURL     string
	statusURL     string
	confirm       string
	probe         string
	profileSchema []byte
	client        *http.Client
	logger        *slog.Logger
}

var (
	_ core.Submitter             = (*Submitter)(nil)
	_ core.Prober                = (*Submitter)(nil)
	_ core.ProfileSchemaProvider = (*Submitter)(nil)
)

// New validates cfg and builds a Submitter.
func New(cfg Config) (*Submitter, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("atsapi: name is required")
	}
	if strings.TrimSpace(cfg.SubmitURL) == "" {
		return nil, fmt.Errorf("atsapi %s: submit_url is required", cfg.Name)
	}
	if strings.TrimSpace(cfg.Confirm) == "" {
		return nil, fmt.Errorf("atsapi %s: confirm expression is required", cfg.Name)
	}
	if _, err := jmespath.Compile(cfg.Confirm); err != nil {
		return nil, fmt.Errorf("atsapi %s: invalid confirm expression: %w", cfg.Name, err)
	}
	if cfg.Probe != "" {
		if cfg.StatusURL == "" {
			return nil, fmt.Errorf("atsapi %s: probe expression requires status_url", cfg.Name)
		}
		if _, err := jmespath.Compile(cfg.Probe); err != nil {
			return nil, fmt.Errorf("atsapi %s: invalid probe expression: %w", cfg.Name, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Submitter{
		name:          cfg.Name,
		submitURL:     cfg.SubmitURL,
		statusURL:     cfg.StatusURL,
		confirm:       cfg.Confirm,
		probe:         cfg.Probe,
		profileSchema: cfg.ProfileSchema,
		client:        buildClient(cfg),
		logger:        logger.With("component", "atsapi", "submitter", cfg.Name),
	}, nil
}

func buildClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}
	if cfg.TokenURL == "" {
		return base
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// The token source outlives any single request, so it is bound to a
	// background context carrying the base client.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, cc.TokenSource(ctx))
	client.Timeout = timeout
	return client
}

// Name implements core.Submitter.
func (s *Submitter) Name() string { return s.name }

// ProfileSchema implements core.ProfileSchemaProvider.
func (s *Submitter) ProfileSchema() []byte { return s.profileSchema }

type applicationPayload struct {
	ApplicationID  string         `json:"application_id"`
	JobID          string         `json:"job_id"`
	JobURL         string         `json:"job_url,omitempty"`
	Attempt        int            `json:"attempt"`
	ResumeFileName string         `json:"resume_file_name,omitempty"`
	Candidate      map[string]any `json:"candidate"`
}

// Submit implements core.Submitter.
func (s *Submitter) Submit(ctx context.Context, req core.SubmitRequest) (string, error) {
	payload := applicationPayload{
		ApplicationID: req.Application.ID,
		JobID:         req.Job.ID,
		Attempt:       req.Attempt,
		Candidate:     req.Resume.ParsedData,
	}
	if req.Job.URL != nil {
		payload.JobURL = *req.Job.URL
	}
	payload.ResumeFileName = req.Resume.FileName
	if payload.Candidate == nil {
		payload.Candidate = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", model.Permanent("encode application", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, expandURL(s.submitURL, req), bytes.NewReader(body))
	if err != nil {
		return "", model.Permanent("build submit request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	// Same key on every retry so the ATS can drop duplicates on its side.
	httpReq.Header.Set("Idempotency-Key", req.Application.ID)

	doc, err := s.do(httpReq)
	if err != nil {
		return "", err
	}

	result, err := jmespath.Search(s.confirm, doc)
	if err != nil {
		return "", model.Permanent("evaluate confirm expression", err)
	}
	confirmation, ok := receipt(result)
	if !ok {
		// The ATS answered 2xx without confirming; a retry probes before resubmitting.
		return "", model.Transient("submission not confirmed by "+s.name, nil)
	}
	return confirmation, nil
}

// Probe implements core.Prober.
func (s *Submitter) Probe(ctx context.Context, req core.SubmitRequest) (bool, error) {
	if s.probe == "" {
		return false, nil
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, expandURL(s.statusURL, req), nil)
	if err != nil {
		return false, fmt.Errorf("build status request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	doc, err := s.do(httpReq)
	if err != nil {
		return false, err
	}
	result, err := jmespath.Search(s.probe, doc)
	if err != nil {
		return false, fmt.Errorf("evaluate probe expression: %w", err)
	}
	return truthy(result), nil
}

// do sends req and decodes a JSON body, classifying HTTP failures.
func (s *Submitter) do(req *http.Request) (any, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, model.Transient("request to "+s.name+" failed", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Debug("close response body", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, model.Transient("read response from "+s.name, err)
	}

	if err := classifyStatus(resp.StatusCode, raw); err != nil {
		s.logger.Warn("ats request rejected",
			"method", req.Method, "status", resp.StatusCode, "url", req.URL.Redacted())
		return nil, err
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, model.Permanent("decode response from "+s.name, err)
	}
	return doc, nil
}

// classifyStatus maps an HTTP status to a submission error. Timeouts, rate
// limits and server errors can clear up; any other 4xx will not.
func classifyStatus(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 256 {
		detail = detail[:256]
	}
	err := fmt.Errorf("http %d: %s", code, detail)
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return model.Transient("ats returned "+strconv.Itoa(code), err)
	case code >= 400:
		return model.Permanent("ats rejected application with "+strconv.Itoa(code), err)
	default:
		return model.Transient("unexpected ats status "+strconv.Itoa(code), err)
	}
}

func expandURL(tmpl string, req core.SubmitRequest) string {
	return strings.NewReplacer(
		"{job_id}", url.PathEscape(req.Job.ID),
		"{application_id}", url.PathEscape(req.Application.ID),
	).Replace(tmpl)
}

func receipt(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return confirmedWithoutID, t
	default:
		return "", false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
