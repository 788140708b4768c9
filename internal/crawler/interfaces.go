package crawler

import (
	"context"
	"io"
	"time"
)

// Lister returns article page URLs from the content source.
type Lister interface {
	ListArticles(ctx context.Context, n int) ([]string, error)
}

// Resolver turns an article page URL into an Article with its title and image URLs.
type Resolver interface {
	Resolve(ctx context.Context, link string) (Article, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Downloader fetches one resource and stores it under dest. No object is
// written when the fetch fails.
type Downloader interface {
	Download(ctx context.Context, url string, dest string) (int64, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Queue hands out articles to workers. TryDequeue never blocks.
type Queue interface {
	TryDequeue() (Article, bool)
	Exhausted() bool
}

// Hasher digests downloaded content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// StopSignal is the cooperative cancellation flag observed by workers and the dispatcher.
type StopSignal interface {
	IsSet() bool
	Done() <-chan struct{}
}
