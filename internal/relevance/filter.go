// Package relevance decides which search candidates are worth retrieving.
package relevance

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// DomainMode selects how the domain check is performed.
type DomainMode string

// Domain modes.
const (
	// DomainStrict accepts only hosts under a trusted domain.
	DomainStrict DomainMode = "strict"
	// DomainLoose additionally accepts hosts carrying a configured signal.
	DomainLoose DomainMode = "loose"
)

// SelectionMode selects how passing candidates are reduced to MaxCandidates.
type SelectionMode string

// Selection modes.
const (
	SelectFirst  SelectionMode = "first"
	SelectSample SelectionMode = "sample"
)

// DefaultMinTitleLength is the length a title must exceed to count as topical.
const DefaultMinTitleLength = 10

// DefaultTrustedDomains are Australian family-law sources.
var DefaultTrustedDomains = []string{
	"legalaid.vic.gov.au",
	"familycourt.gov.au",
	"ag.gov.au",
	"lawhandbook.sa.gov.au",
	"lawaccess.nsw.gov.au",
	"familyrelationships.gov.au",
	"childrenscourt.justice.nsw.gov.au",
	"justice.gov.au",
	"courts.justice.nsw.gov.au",
	"supremecourt.justice.nsw.gov.au",
	"legalaid.nsw.gov.au",
	"legalaid.qld.gov.au",
	"legalaid.wa.gov.au",
	"legalaid.sa.gov.au",
	"legalaid.tas.gov.au",
	"legalaid.act.gov.au",
	"legalaid.nt.gov.au",
	"fclc.org.au",
	"wlsnsw.org.au",
	"legalanswers.sl.nsw.gov.au",
	"relationships.org.au",
	"mensline.org.au",
	"gotocourt.com.au",
	"findlaw.com.au",
	"lawhandbook.org.au",
	"communitylegalwa.org.au",
	"legalvision.com.au",
	"turnerlawyers.com.au",
	"familylawyers.com.au",
}

// DefaultLooseSignals are host fragments that suggest a relevant source.
var DefaultLooseSignals = []string{".gov.au"}

// DefaultKeywords mark a title or description as family-law content.
var DefaultKeywords = []string{
	"family", "child", "custody", "support", "law", "court", "legal",
	"parenting", "divorce", "separation", "intervention", "order",
}

// ErrInvalidConfig wraps every configuration problem reported by New.
var ErrInvalidConfig = errors.New("invalid relevance config")

// Config controls the filter.
type Config struct {
	TrustedDomains []string
	DomainMode     DomainMode
	LooseSignals   []string
	Keywords       []string
	MinTitleLength int
	// MaxCandidates truncates the selection; 0 keeps every passing candidate.
	MaxCandidates int
	Selection     SelectionMode
	// Seed makes sampling reproducible; 0 draws a random seed.
	Seed uint64
}

// Decision explains the verdict for one candidate.
type Decision struct {
	Candidate           crawler.Candidate
	Excluded            bool
	Duplicate           bool
	DomainMatch         bool
	TitleRelevant       bool
	DescriptionRelevant bool
	Pass                bool
}

// Reason summarises why the candidate failed, or "" when it passed.
func (d Decision) Reason() string {
	switch {
	case d.Pass:
		return ""
	case d.Excluded:
		return "previously processed"
	case d.Duplicate:
		return "duplicate in batch"
	case !d.DomainMatch:
		return "untrusted domain"
	default:
		return "not topical"
	}
}

// ExclusionChecker reports URLs that were already handled.
type ExclusionChecker interface {
	Contains(rawURL string) bool
}

// Result is the outcome of one filtering pass over a batch.
type Result struct {
	Selected  []crawler.Candidate
	Decisions []Decision
}

// Passed counts candidates that passed before truncation.
func (r Result) Passed() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Pass {
			n++
		}
	}
	return n
}

// Excluded counts candidates dropped by the exclusion set.
func (r Result) Excluded() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Excluded {
			n++
		}
	}
	return n
}

// Duplicates counts repeats of a URL already seen earlier in the batch.
func (r Result) Duplicates() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Duplicate {
			n++
		}
	}
	return n
}

// Filter classifies candidates. It holds no mutable state besides the
// sampling source.
type Filter struct {
	cfg      Config
	trusted  *hostPatterns
	signals  hostSignals
	keywords []string
	rng      *rand.Rand
}

// New validates cfg and builds a Filter.
func New(cfg Config) (*Filter, error) {
	if cfg.DomainMode == "" {
		cfg.DomainMode = DomainStrict
	}
	if cfg.Selection == "" {
		cfg.Selection = SelectFirst
	}
	if cfg.MinTitleLength == 0 {
		cfg.MinTitleLength = DefaultMinTitleLength
	}
	switch cfg.DomainMode {
	case DomainStrict, DomainLoose:
	default:
		return nil, fmt.Errorf("%w: unknown domain mode %q", ErrInvalidConfig, cfg.DomainMode)
	}
	switch cfg.Selection {
	case SelectFirst, SelectSample:
	default:
		return nil, fmt.Errorf("%w: unknown selection mode %q", ErrInvalidConfig, cfg.Selection)
	}
	if cfg.MinTitleLength < 0 {
		return nil, fmt.Errorf("%w: min title length must be >= 0", ErrInvalidConfig)
	}
	if cfg.MaxCandidates < 0 {
		return nil, fmt.Errorf("%w: max candidates must be >= 0", ErrInvalidConfig)
	}

	keywords := normalizeKeywords(cfg.Keywords)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: at least one keyword is required", ErrInvalidConfig)
	}
	trusted := newHostPatterns(cfg.TrustedDomains)
	signals := newHostSignals(cfg.LooseSignals)
	if trusted.empty() && (cfg.DomainMode == DomainStrict || len(cfg.LooseSignals) == 0) {
		return nil, fmt.Errorf("%w: no trusted domains configured", ErrInvalidConfig)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Filter{
		cfg:      cfg,
		trusted:  trusted,
		signals:  signals,
		keywords: keywords,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Evaluate classifies one candidate. Both the domain and the topical check
// must hold for the candidate to pass.
func (f *Filter) Evaluate(c crawler.Candidate) Decision {
	d := Decision{Candidate: c}
	d.DomainMatch = f.domainMatches(c.Host())
	d.TitleRelevant = len([]rune(c.Title)) > f.cfg.MinTitleLength && f.containsKeyword(c.Title)
	d.DescriptionRelevant = f.containsKeyword(c.Description)
	d.Pass = d.DomainMatch && (d.TitleRelevant || d.DescriptionRelevant)
	return d
}

// Apply drops excluded candidates and later spellings of a URL already seen
// in the batch, evaluates the rest in upstream order and reduces the passing
// set according to the selection mode. excluded may be nil.
func (f *Filter) Apply(candidates []crawler.Candidate, excluded ExclusionChecker) Result {
	result := Result{Decisions: make([]Decision, 0, len(candidates))}
	seen := make(map[string]struct{}, len(candidates))
	var passing []crawler.Candidate
	for _, c := range candidates {
		if excluded != nil && excluded.Contains(c.URL) {
			result.Decisions = append(result.Decisions, Decision{Candidate: c, Excluded: true})
			continue
		}
		k := batchKey(c.URL)
		if _, dup := seen[k]; dup {
			result.Decisions = append(result.Decisions, Decision{Candidate: c, Duplicate: true})
			continue
		}
		seen[k] = struct{}{}
		d := f.Evaluate(c)
		result.Decisions = append(result.Decisions, d)
		if d.Pass {
			passing = append(passing, c)
		}
	}
	result.Selected = f.selectCandidates(passing)
	return result
}

func (f *Filter) selectCandidates(passing []crawler.Candidate) []crawler.Candidate {
	limit := f.cfg.MaxCandidates
	if limit == 0 || len(passing) <= limit {
		return passing
	}
	if f.cfg.Selection == SelectFirst {
		return passing[:limit]
	}
	picked := f.rng.Perm(len(passing))[:limit]
	sort.Ints(picked)
	out := make([]crawler.Candidate, 0, limit)
	for _, idx := range picked {
		out = append(out, passing[idx])
	}
	return out
}

func batchKey(rawURL string) string {
	if k, err := crawler.NormalizeURL(rawURL); err == nil {
		return k
	}
	return rawURL
}

func (f *Filter) domainMatches(host string) bool {
	if f.trusted.Matches(host) {
		return true
	}
	return f.cfg.DomainMode == DomainLoose && f.signals.Matches(host)
}

func (f *Filter) containsKeyword(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
