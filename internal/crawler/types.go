package crawler

import (
	"errors"
	"net/http"
	"time"
)

// Sentinel errors returned while building the article list.
var (
	// ErrTitleNotFound means an article page had no resolvable title. It aborts the run.
	ErrTitleNotFound = errors.New("crawler: title not found")
	// ErrNoArticles means the feed produced no article links at all.
	ErrNoArticles = errors.New("crawler: no articles found")
)

// Article is one unit of downloadable work: an article page and the images it references.
// It is built before the queue is filled and must not be mutated afterwards.
type Article struct {
	Link      string
	Title     string
	ImageURLs []string
}

// HasImages reports whether the article has anything to download.
func (a Article) HasImages() bool {
	return len(a.ImageURLs) > 0
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse contains the result of a fetch.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// FailedResource records an image that could not be downloaded.
type FailedResource struct {
	Index int
	URL   string
	Err   error
}

// Result summarizes how a worker handled one Article.
type Result struct {
	Worker    int
	Title     string
	Link      string
	Skipped   bool
	Attempted int
	Failed    []FailedResource
}

// Succeeded returns the number of images that were written.
func (r Result) Succeeded() int {
	return r.Attempted - len(r.Failed)
}
