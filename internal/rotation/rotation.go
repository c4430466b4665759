// Package rotation cycles through search queries with an explicit cursor.
package rotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// ErrNoQueries is returned when the query list is empty.
var ErrNoQueries = errors.New("no queries configured")

// DefaultQueries are the family-law topics searched in rotation.
var DefaultQueries = []string{
	"australian family law parenting orders",
	"child support australia changes",
	"family court australia custody",
	"family violence intervention order victoria",
	"separation and divorce australia fathers",
	"shared parenting arrangements australia",
}

// Next returns the query at cursor and the cursor to use on the following run.
// Cursors outside the list wrap, so a stale cursor after the list shrinks is
// still valid.
func Next(queries []string, cursor int) (string, int, error) {
	if len(queries) == 0 {
		return "", 0, ErrNoQueries
	}
	idx := cursor % len(queries)
	if idx < 0 {
		idx += len(queries)
	}
	return queries[idx], (idx + 1) % len(queries), nil
}

// State is the persisted rotation cursor.
type State struct {
	QueryIndex int       `json:"query_index"`
	LastQuery  string    `json:"last_query"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LoadState reads the cursor file. A missing file is the zero State.
func LoadState(path string) (State, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read rotation state %s: %w", path, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode rotation state %s: %w", path, err)
	}
	return st, nil
}

// SaveState writes st to path, creating parent directories as needed.
func SaveState(path string, st State) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("rotation state path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create rotation state dir: %w", err)
	}
	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rotation state: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write rotation state %s: %w", path, err)
	}
	return nil
}

// Advance loads the cursor at path, picks the next query, persists the new
// cursor and returns the chosen query.
func Advance(path string, queries []string, clock crawler.Clock) (string, error) {
	st, err := LoadState(path)
	if err != nil {
		return "", err
	}
	query, next, err := Next(queries, st.QueryIndex)
	if err != nil {
		return "", err
	}
	err = SaveState(path, State{
		QueryIndex: next,
		LastQuery:  query,
		UpdatedAt:  clock.Now(),
	})
	if err != nil {
		return "", err
	}
	return query, nil
}
