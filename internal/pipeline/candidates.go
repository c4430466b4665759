package pipeline

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// ErrSearchResults is returned when the search-results document is not JSON
// or not an array.
var ErrSearchResults = errors.New("invalid search results")

// ParseSearchResults accepts either a flat array of organic results or an
// array of result pages each carrying an "organicResults" array. Items that
// cannot become a Candidate are skipped and reported in the second return.
// Missing positions are numbered from 1 in document order.
func ParseSearchResults(data []byte) ([]crawler.Candidate, []error, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("%w: not valid JSON", ErrSearchResults)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, nil, fmt.Errorf("%w: expected a JSON array", ErrSearchResults)
	}

	var (
		out     []crawler.Candidate
		skipped []error
		ordinal int
	)
	add := func(item gjson.Result) {
		ordinal++
		position := ordinal
		if p := item.Get("position"); p.Exists() && p.Int() > 0 {
			position = int(p.Int())
		}
		c, err := crawler.NewCandidate(
			item.Get("url").String(),
			item.Get("title").String(),
			item.Get("description").String(),
			position,
		)
		if err != nil {
			skipped = append(skipped, err)
			return
		}
		out = append(out, c)
	}

	root.ForEach(func(_, item gjson.Result) bool {
		if page := item.Get("organicResults"); page.IsArray() {
			page.ForEach(func(_, nested gjson.Result) bool {
				add(nested)
				return true
			})
			return true
		}
		add(item)
		return true
	})
	return out, skipped, nil
}
