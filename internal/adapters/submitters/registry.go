// Package submitters selects the Submitter for a job and builds the
// configured submitter set.
package submitters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

// ErrNoSubmitter is returned when no submitter handles a job.
var ErrNoSubmitter = errors.New("no submitter for job source")

// ReasonManual is the failure reason for jobs that cannot be automated.
const ReasonManual = "job source requires manual application"

// Registry maps normalized source keys and registrable domains to submitters.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]core.Submitter
	hosts map[string]string
}

var _ core.SubmitterResolver = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]core.Submitter),
		hosts: make(map[string]string),
	}
}

// Register adds sub under its normalized name. Hosts are extra registrable
// domains (e.g. "ultipro.com") that should resolve to it.
func (r *Registry) Register(sub core.Submitter, hosts ...string) error {
	if sub == nil {
		return errors.New("submitter is required")
	}
	key := NormalizeSource(sub.Name())
	if key == "" {
		return errors.New("submitter name is required")
	}

	domains := make([]string, 0, len(hosts))
	for _, h := range hosts {
		domain := registrableDomain(h)
		if domain == "" {
			return fmt.Errorf("submitter %q: invalid host %q", key, h)
		}
		domains = append(domains, domain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byKey[key]; dup {
		return fmt.Errorf("submitter %q registered twice", key)
	}
	for _, domain := range domains {
		if owner, taken := r.hosts[domain]; taken {
			return fmt.Errorf("host %q claimed by %q and %q", domain, owner, key)
		}
	}
	r.byKey[key] = sub
	for _, domain := range domains {
		r.hosts[domain] = key
	}
	return nil
}

// Names returns the registered keys in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Resolve implements core.SubmitterResolver. An explicit source wins. When
// the source is empty or manual, the job URL's registrable domain is tried
// first via declared hosts and then by its leading label
// ("boards.greenhouse.io" -> "greenhouse"). Jobs that match nothing fall back
// to the manual submitter when one is registered.
func (r *Registry) Resolve(job *model.Job) (core.Submitter, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := NormalizeSource(job.Source)
	if key != "" && key != model.SourceManual {
		if sub, ok := r.byKey[key]; ok {
			return sub, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrNoSubmitter, job.Source)
	}

	if job.URL != nil {
		if sub, ok := r.detectLocked(*job.URL); ok {
			return sub, nil
		}
	}
	if sub, ok := r.byKey[model.SourceManual]; ok {
		return sub, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSubmitter, job.Source)
}

func (r *Registry) detectLocked(rawURL string) (core.Submitter, bool) {
	domain := registrableDomain(rawURL)
	if domain == "" {
		return nil, false
	}
	if key, ok := r.hosts[domain]; ok {
		return r.byKey[key], true
	}
	label, _, _ := strings.Cut(domain, ".")
	sub, ok := r.byKey[NormalizeSource(label)]
	return sub, ok
}

// DetectSource returns the source key implied by a job URL, or "" when the
// URL has no registrable domain.
func DetectSource(rawURL string) string {
	domain := registrableDomain(rawURL)
	if domain == "" {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	return NormalizeSource(label)
}

// registrableDomain accepts a URL or a bare host and returns its eTLD+1.
func registrableDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// NormalizeSource folds a source name to its registry key: diacritics are
// stripped, case is folded and runs of spaces, underscores and dots become a
// single dash. "Green House" and "greenhouse" stay distinct.
func NormalizeSource(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Transformers carry state, so each call builds its own chain.
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(strip, s); err == nil {
		s = folded
	}
	s = cases.Fold().String(s)

	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Manual is the submitter for jobs that must be applied to by hand. It fails
// every attempt permanently.
type Manual struct{}

var _ core.Submitter = Manual{}

// Name implements core.Submitter.
func (Manual) Name() string { return model.SourceManual }

// Submit implements core.Submitter.
func (Manual) Submit(context.Context, core.SubmitRequest) (string, error) {
	return "", model.Permanent(ReasonManual, nil)
}
