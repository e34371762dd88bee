package submitters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/target/mmk-autoapply/internal/adapters/submitters/atsapi"
	"github.com/target/mmk-autoapply/internal/adapters/submitters/browser"
	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

// Submitter kinds accepted in a submitters file.
const (
	KindATSAPI  = "atsapi"
	KindBrowser = "browser"
	KindManual  = "manual"
)

// File is the on-disk submitter configuration.
type File struct {
	Submitters []Spec `yaml:"submitters"`
}

// Spec declares one submitter.
type Spec struct {
	Name    string       `yaml:"name"`
	Kind    string       `yaml:"kind"`
	Hosts   []string     `yaml:"hosts"`
	ATSAPI  *ATSAPISpec  `yaml:"atsapi"`
	Browser *BrowserSpec `yaml:"browser"`
}

// ATSAPISpec configures an atsapi submitter. Secrets are named by
// environment variable, never written inline.
type ATSAPISpec struct {
	SubmitURL       string        `yaml:"submit_url"`
	StatusURL       string        `yaml:"status_url"`
	TokenURL        string        `yaml:"token_url"`
	ClientIDEnv     string        `yaml:"client_id_env"`
	ClientSecretEnv string        `yaml:"client_secret_env"`
	Scopes          []string      `yaml:"scopes"`
	Confirm         string        `yaml:"confirm"`
	Probe           string        `yaml:"probe"`
	ProfileSchema   string        `yaml:"profile_schema"`
	Timeout         time.Duration `yaml:"timeout"`
}

// BrowserSpec configures a browser submitter.
type BrowserSpec struct {
	ApplySelector        string            `yaml:"apply_selector"`
	Fields               map[string]string `yaml:"fields"`
	ResumeInputSelector  string            `yaml:"resume_input_selector"`
	SubmitSelector       string            `yaml:"submit_selector"`
	ConfirmationSelector string            `yaml:"confirmation_selector"`
	StepTimeout          time.Duration     `yaml:"step_timeout"`
}

// LoadFile reads and parses a submitters file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read submitters file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a submitters file, rejecting unknown keys.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse submitters: %w", err)
	}
	return &f, nil
}

// BuildOptions supplies what the declared submitters need at runtime.
type BuildOptions struct {
	// Pages backs browser submitters. When nil, browser entries are skipped.
	Pages browser.PageOpener
	// HTTPClient is the base client for atsapi submitters.
	HTTPClient *http.Client
	// BaseDir resolves relative profile_schema paths.
	BaseDir string
	// Getenv looks up credentials. Defaults to os.Getenv.
	Getenv func(string) string
	Logger *slog.Logger
}

// Build turns f into a Registry. The manual submitter is always present so
// unknown postings fail with a clear reason instead of a resolve error.
func Build(f *File, opts BuildOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	reg := NewRegistry()
	haveManual := false
	if f != nil {
		for i, spec := range f.Submitters {
			kind := strings.ToLower(strings.TrimSpace(spec.Kind))
			if kind == KindBrowser && opts.Pages == nil {
				logger.Warn("browser submitters disabled, skipping", "submitter", spec.Name)
				continue
			}
			sub, err := buildOne(spec, kind, opts, getenv, logger)
			if err != nil {
				return nil, fmt.Errorf("submitters[%d] %q: %w", i, spec.Name, err)
			}
			if err := reg.Register(sub, spec.Hosts...); err != nil {
				return nil, err
			}
			if NormalizeSource(sub.Name()) == model.SourceManual {
				haveManual = true
			}
		}
	}
	if !haveManual {
		if err := reg.Register(Manual{}); err != nil {
			return nil, err
		}
	}
	logger.Info("submitters configured", "names", reg.Names())
	return reg, nil
}

func buildOne(spec Spec, kind string, opts BuildOptions, getenv func(string) string, logger *slog.Logger) (core.Submitter, error) {
	switch kind {
	case KindATSAPI:
		if spec.ATSAPI == nil {
			return nil, errors.New("atsapi block is required")
		}
		a := spec.ATSAPI
		var schema []byte
		if a.ProfileSchema != "" {
			path := a.ProfileSchema
			if !filepath.IsAbs(path) && opts.BaseDir != "" {
				path = filepath.Join(opts.BaseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read profile schema: %w", err)
			}
			schema = data
		}
		cfg := atsapi.Config{
			Name:          spec.Name,
			SubmitURL:     a.SubmitURL,
			StatusURL:     a.StatusURL,
			TokenURL:      a.TokenURL,
			Scopes:        a.Scopes,
			Confirm:       a.Confirm,
			Probe:         a.Probe,
			ProfileSchema: schema,
			Timeout:       a.Timeout,
			HTTPClient:    opts.HTTPClient,
			Logger:        logger,
		}
		if a.ClientIDEnv != "" {
			cfg.ClientID = getenv(a.ClientIDEnv)
		}
		if a.ClientSecretEnv != "" {
			cfg.ClientSecret = getenv(a.ClientSecretEnv)
		}
		if cfg.TokenURL != "" && (cfg.ClientID == "" || cfg.ClientSecret == "") {
			return nil, fmt.Errorf("token_url set but %s/%s are empty", a.ClientIDEnv, a.ClientSecretEnv)
		}
		sub, err := atsapi.New(cfg)
		if err != nil {
			return nil, err
		}
		return sub, nil
	case KindBrowser:
		if spec.Browser == nil {
			return nil, errors.New("browser block is required")
		}
		b := spec.Browser
		sub, err := browser.New(browser.Config{
			Name:                 spec.Name,
			ApplySelector:        b.ApplySelector,
			Fields:               b.Fields,
			ResumeInputSelector:  b.ResumeInputSelector,
			SubmitSelector:       b.SubmitSelector,
			ConfirmationSelector: b.ConfirmationSelector,
			StepTimeout:          b.StepTimeout,
			Pages:                opts.Pages,
			Logger:               logger,
		})
		if err != nil {
			return nil, err
		}
		return sub, nil
	case KindManual:
		if NormalizeSource(spec.Name) != model.SourceManual {
			return nil, fmt.Errorf("manual submitter must be named %q", model.SourceManual)
		}
		return Manual{}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", spec.Kind)
	}
}
