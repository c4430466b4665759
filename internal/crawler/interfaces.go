package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher issues a single GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor turns raw HTML into an Article. titleHint may be empty.
type Extractor interface {
	Extract(body []byte, pageURL string, titleHint string) (Article, error)
}

// BlobStore writes handoff artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes "articles ready" notices to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ArticleStore records accepted articles in a durable ledger.
type ArticleStore interface {
	StoreArticle(ctx context.Context, runID string, article Article) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
