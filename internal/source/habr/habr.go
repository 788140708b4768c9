// Package habr lists articles from the habr.com feed and extracts their images.
//
// Fetching goes through crawler.Fetcher; parsing is pure and works on raw HTML.
// A page that cannot be fetched is treated as a page with no items.
package habr

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-image-crawler/internal/crawler"
)

const (
	// DefaultBaseURL is the site root used to resolve relative article links.
	DefaultBaseURL = "https://habr.com"
	// DefaultFeedPath is the feed page pattern; %d is the 1-based page number.
	DefaultFeedPath = "/ru/all/page%d"
	// DefaultPageSize is the number of article snippets on one feed page.
	DefaultPageSize = 20
	// DefaultImagePrefix selects which image sources count as article images.
	DefaultImagePrefix = "https://habrastorage"

	articleLinkSelector = "a.tm-article-snippet__readmore"
	titleSelector       = ".tm-article-snippet__title_h1 > span"
)

// Config controls where the feed lives.
type Config struct {
	BaseURL  string
	FeedPath string
	PageSize int
	// ImagePrefix is matched against the start of every src attribute.
	ImagePrefix string
}

// Source implements crawler.Lister and crawler.Resolver for habr.com.
type Source struct {
	fetcher crawler.Fetcher
	base    *url.URL
	cfg     Config
	logger  *zap.Logger
}

var (
	_ crawler.Lister   = (*Source)(nil)
	_ crawler.Resolver = (*Source)(nil)
)

// New builds a Source. Empty config fields take the habr.com defaults.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) (*Source, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.FeedPath == "" {
		cfg.FeedPath = DefaultFeedPath
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ImagePrefix == "" {
		cfg.ImagePrefix = DefaultImagePrefix
	}
	if !strings.Contains(cfg.FeedPath, "%d") {
		return nil, fmt.Errorf("feed path %q must contain %%d", cfg.FeedPath)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{fetcher: fetcher, base: base, cfg: cfg, logger: logger}, nil
}

// ListArticles walks feed pages from the first one, taking at most PageSize links
// per page until n links are collected or a page yields nothing.
func (s *Source) ListArticles(ctx context.Context, n int) ([]string, error) {
	links := make([]string, 0, max(n, 0))
	for page := 1; len(links) < n; page++ {
		if err := ctx.Err(); err != nil {
			return links, fmt.Errorf("list canceled: %w", err)
		}
		pageURL := s.feedURL(page)
		body, err := s.load(ctx, pageURL)
		if err != nil {
			return links, fmt.Errorf("list canceled: %w", err)
		}
		found := ParseFeed(body, pageURL)
		want := min(n-len(links), s.cfg.PageSize)
		if len(found) > want {
			found = found[:want]
		}
		s.logger.Debug("feed page parsed",
			zap.Int("page", page),
			zap.String("url", pageURL),
			zap.Int("links", len(found)),
		)
		if len(found) == 0 {
			break
		}
		links = append(links, found...)
	}
	return links, nil
}

// Resolve fetches an article page and extracts its title and image links.
func (s *Source) Resolve(ctx context.Context, link string) (crawler.Article, error) {
	body, err := s.load(ctx, link)
	if err != nil {
		return crawler.Article{}, fmt.Errorf("resolve canceled: %w", err)
	}
	title, images := ParseArticle(body, s.cfg.ImagePrefix)
	if title == "" {
		return crawler.Article{}, fmt.Errorf("%w in %s", crawler.ErrTitleNotFound, link)
	}
	return crawler.Article{Link: link, Title: title, ImageURLs: images}, nil
}

func (s *Source) feedURL(page int) string {
	ref := &url.URL{Path: fmt.Sprintf(s.cfg.FeedPath, page)}
	return s.base.ResolveReference(ref).String()
}

// load returns the page body, or nil when the fetch fails. The only error it
// reports is cancellation of ctx, so a stopped run is never mistaken for an
// empty page or a missing title.
func (s *Source) load(ctx context.Context, link string) ([]byte, error) {
	resp, err := s.fetcher.Fetch(ctx, crawler.FetchRequest{URL: link})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("page fetch failed", zap.String("url", link), zap.Error(err))
		return nil, nil
	}
	return resp.Body, nil
}

// ParseFeed returns absolute article links from a feed page, in document order.
func ParseFeed(html []byte, pageURL string) []string {
	doc, ok := parse(html)
	if !ok {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	var links []string
	doc.Find(articleLinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links
}

// ParseArticle returns the article title and every src starting with
// imagePrefix, in document order. The title is empty when the page has none.
func ParseArticle(html []byte, imagePrefix string) (string, []string) {
	doc, ok := parse(html)
	if !ok {
		return "", nil
	}
	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	var images []string
	doc.Find("[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && strings.HasPrefix(src, imagePrefix) {
			images = append(images, src)
		}
	})
	return title, images
}

func parse(html []byte) (*goquery.Document, bool) {
	if len(html) == 0 {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, false
	}
	return doc, true
}
