// Package download fetches single resources and writes them to a blob store.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/article-image-crawler/internal/crawler"
)

// ErrIncompleteBody means the fetched body does not match its Content-Length.
var ErrIncompleteBody = errors.New("incomplete body")

// Downloader implements crawler.Downloader on top of a Fetcher and a BlobStore.
type Downloader struct {
	fetcher crawler.Fetcher
	store   crawler.BlobStore
	headers http.Header
	hasher  crawler.Hasher
	logger  *zap.Logger
}

// Option customizes a Downloader.
type Option func(*Downloader)

// WithHeaders adds headers to every image request.
func WithHeaders(h http.Header) Option {
	return func(d *Downloader) {
		d.headers = h.Clone()
	}
}

// WithHasher records a content digest for every stored image.
func WithHasher(h crawler.Hasher) Option {
	return func(d *Downloader) {
		d.hasher = h
	}
}

// New builds a Downloader.
func New(fetcher crawler.Fetcher, store crawler.BlobStore, logger *zap.Logger, opts ...Option) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Downloader{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches url and stores the body at dest, returning the bytes written.
// Nothing is stored when the fetch fails or returns an empty body.
func (d *Downloader) Download(ctx context.Context, url string, dest string) (int64, error) {
	resp, err := d.fetcher.Fetch(ctx, crawler.FetchRequest{URL: url, Headers: d.headers})
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return 0, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return 0, fmt.Errorf("fetch %s: empty body", url)
	}
	if err := checkLength(resp); err != nil {
		return 0, fmt.Errorf("fetch %s: %w", url, err)
	}

	contentType := resp.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body)
	}
	uri, err := d.store.PutObject(ctx, dest, contentType, bytes.NewReader(resp.Body))
	if err != nil {
		return 0, fmt.Errorf("store %s: %w", dest, err)
	}
	fields := []zap.Field{
		zap.String("url", url),
		zap.String("uri", uri),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("fetch_duration", resp.Duration),
	}
	if d.hasher != nil {
		if digest, err := d.hasher.Hash(resp.Body); err == nil {
			fields = append(fields, zap.String("sha256", digest))
		}
	}
	d.logger.Debug("image stored", fields...)
	return int64(len(resp.Body)), nil
}

// checkLength rejects a body shorter or longer than its declared Content-Length.
func checkLength(resp crawler.FetchResponse) error {
	raw := resp.Headers.Get("Content-Length")
	if raw == "" {
		return nil
	}
	want, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || want < 0 {
		return nil
	}
	if got := int64(len(resp.Body)); got != want {
		return fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteBody, got, want)
	}
	return nil
}
