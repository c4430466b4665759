// Package exclusion persists the set of URLs that have already been attempted
// so later runs skip them.
package exclusion

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// ErrMalformed is returned when the exclusion file exists but cannot be decoded.
var ErrMalformed = errors.New("malformed exclusion file")

// document is the on-disk layout shared with the rest of the pipeline.
type document struct {
	ScrapedURLs  []string  `json:"scraped_urls"`
	LastUpdated  time.Time `json:"last_updated"`
	TotalScraped int       `json:"total_scraped"`
}

// Set is an ordered, de-duplicated collection of processed URLs. Membership is
// keyed by the normalized URL; the original spelling is what gets persisted.
// A Set is not safe for concurrent use.
type Set struct {
	path    string
	maxSize int
	clock   crawler.Clock

	urls  []string
	index map[string]int
}

// Options configure a Set.
type Options struct {
	Path string
	// MaxSize keeps only the most recent entries on Save; 0 is unbounded.
	MaxSize int
	Clock   crawler.Clock
}

// Load reads the set from opts.Path. A missing file yields an empty set.
func Load(opts Options) (*Set, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("exclusion path is required")
	}
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("exclusion max size must be >= 0")
	}
	s := &Set{
		path:    opts.Path,
		maxSize: opts.MaxSize,
		clock:   opts.Clock,
		index:   make(map[string]int),
	}

	raw, err := os.ReadFile(opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read exclusion file %s: %w", opts.Path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMalformed, opts.Path, err)
	}
	for _, u := range doc.ScrapedURLs {
		s.Add(u)
	}
	return s, nil
}

// Contains reports whether rawURL, or an equivalent spelling of it, is in the set.
func (s *Set) Contains(rawURL string) bool {
	_, ok := s.index[key(rawURL)]
	return ok
}

// Add inserts rawURL and reports whether it was new.
func (s *Set) Add(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	k := key(rawURL)
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.urls)
	s.urls = append(s.urls, rawURL)
	return true
}

// Len returns the number of entries.
func (s *Set) Len() int {
	return len(s.urls)
}

// URLs returns a copy of the entries in insertion order.
func (s *Set) URLs() []string {
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

// Save overwrites the file with the full set. The write goes to a temporary
// file in the same directory which is then renamed over the target.
func (s *Set) Save() error {
	s.trim()

	now := time.Now().UTC()
	if s.clock != nil {
		now = s.clock.Now()
	}
	doc := document{
		ScrapedURLs:  s.URLs(),
		LastUpdated:  now,
		TotalScraped: len(s.urls),
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal exclusion set: %w", err)
	}
	return writeFileAtomic(s.path, payload)
}

func (s *Set) trim() {
	if s.maxSize == 0 || len(s.urls) <= s.maxSize {
		return
	}
	s.urls = append([]string(nil), s.urls[len(s.urls)-s.maxSize:]...)
	s.index = make(map[string]int, len(s.urls))
	for i, u := range s.urls {
		s.index[key(u)] = i
	}
}

func key(rawURL string) string {
	normalized, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		return rawURL
	}
	return normalized
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
