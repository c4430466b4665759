// Package extractor turns fetched HTML into plain-text articles.
package extractor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// nonContentSelectors lists elements stripped before any text is read.
const nonContentSelectors = "script, style, noscript, nav, header, footer, aside"

// DefaultSelectors are the "main content" containers tried in order.
var DefaultSelectors = []string{
	"article",
	".content",
	".main-content",
	"#content",
	".page-content",
	"main",
	".post-content",
}

// DefaultMinSelectorChars is the length a selector match must exceed to be accepted.
const DefaultMinSelectorChars = 500

// ErrEmptyDocument is returned when there is nothing to parse.
var ErrEmptyDocument = errors.New("empty document")

// Config controls extraction.
type Config struct {
	Selectors        []string
	MinSelectorChars int
}

// Extractor implements crawler.Extractor with goquery.
type Extractor struct {
	selectors []string
	minChars  int
	clock     crawler.Clock
}

// New creates an Extractor, filling unset fields with defaults.
func New(cfg Config, clock crawler.Clock) *Extractor {
	selectors := make([]string, 0, len(cfg.Selectors))
	for _, sel := range cfg.Selectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			selectors = append(selectors, sel)
		}
	}
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	minChars := cfg.MinSelectorChars
	if minChars <= 0 {
		minChars = DefaultMinSelectorChars
	}
	return &Extractor{
		selectors: selectors,
		minChars:  minChars,
		clock:     clock,
	}
}

// Extract parses body and returns the article text. The URL is copied onto
// the article as-is; titleHint wins over any title found in the document.
func (e *Extractor) Extract(body []byte, pageURL string, titleHint string) (crawler.Article, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return crawler.Article{}, ErrEmptyDocument
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Article{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(titleHint)
	if title == "" {
		title = documentTitle(doc)
	}

	doc.Find(nonContentSelectors).Remove()
	text := e.mainText(doc)

	return crawler.Article{
		URL:         pageURL,
		Title:       title,
		Body:        text,
		WordCount:   len(strings.Fields(text)),
		CharCount:   len([]rune(text)),
		ContentHash: computeHash(text),
		ExtractedAt: e.clock.Now(),
	}, nil
}

func (e *Extractor) mainText(doc *goquery.Document) string {
	for _, sel := range e.selectors {
		match := doc.Find(sel).First()
		if match.Length() == 0 {
			continue
		}
		if text := selectionText(match); len([]rune(text)) > e.minChars {
			return text
		}
	}
	return selectionText(doc.Find("body").First())
}

// documentTitle prefers the first <h1>, then <title>.
func documentTitle(doc *goquery.Document) string {
	if h1 := selectionText(doc.Find("h1").First()); h1 != "" {
		return h1
	}
	return selectionText(doc.Find("title").First())
}

// selectionText joins every descendant text node with single spaces.
func selectionText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		*parts = append(*parts, strings.Fields(n.Data)...)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func computeHash(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
