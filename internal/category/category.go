// Package category assigns a topical bucket to extracted articles.
package category

import (
	"strings"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// Category names written into handoff files.
const (
	ChildSupport     = "child_support"
	FamilyViolence   = "family_violence"
	ParentingCustody = "parenting_custody"
	MentalHealth     = "mental_health"
	GeneralLegal     = "general_legal"
)

// bodyWindow is how much of the body participates in matching.
const bodyWindow = 1000

// Bucket is a named keyword group.
type Bucket struct {
	Name     string
	Keywords []string
}

// DefaultBuckets are checked in order; the first hit wins.
var DefaultBuckets = []Bucket{
	{Name: ChildSupport, Keywords: []string{"child support", "csa", "assessment", "maintenance", "financial support"}},
	{Name: FamilyViolence, Keywords: []string{"family violence", "intervention order", "restraining order", "domestic violence", "fvio"}},
	{Name: ParentingCustody, Keywords: []string{"parenting", "custody", "children", "arrangements", "contact", "residence"}},
	{Name: MentalHealth, Keywords: []string{"mental health", "wellbeing", "stress", "depression", "anxiety", "support"}},
}

// Classifier maps articles to buckets.
type Classifier struct {
	buckets  []Bucket
	fallback string
}

// New returns a Classifier over buckets, or DefaultBuckets when none are given.
func New(buckets []Bucket) *Classifier {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	normalized := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		kws := make([]string, 0, len(b.Keywords))
		for _, kw := range b.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		normalized = append(normalized, Bucket{Name: b.Name, Keywords: kws})
	}
	return &Classifier{buckets: normalized, fallback: GeneralLegal}
}

// Classify returns the first bucket whose keywords appear in the title, the
// start of the body or the description.
func (c *Classifier) Classify(a crawler.Article) string {
	body := a.Body
	if r := []rune(body); len(r) > bodyWindow {
		body = string(r[:bodyWindow])
	}
	text := strings.ToLower(a.Title + " " + body + " " + a.Description)
	for _, b := range c.buckets {
		for _, kw := range b.Keywords {
			if strings.Contains(text, kw) {
				return b.Name
			}
		}
	}
	return c.fallback
}
