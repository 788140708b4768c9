package habr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/article-image-crawler/internal/crawler"
)

func TestParseFeedResolvesLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<article><a href="/ru/articles/1/" class="tm-article-snippet__readmore">Read</a></article>
<article><a href="https://habr.com/ru/articles/2/" class="tm-article-snippet__readmore">Read</a></article>
<article><a href="/ru/news/3/" class="other">skip</a></article>
<article><a class="tm-article-snippet__readmore">no href</a></article>
</body></html>`

	links := ParseFeed([]byte(html), "https://habr.com/ru/all/page1")
	require.Equal(t, []string{
		"https://habr.com/ru/articles/1/",
		"https://habr.com/ru/articles/2/",
	}, links)
}

func TestParseArticle(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h1 class="tm-article-snippet__title tm-article-snippet__title_h1"><span> Go: каналы &amp; горутины </span></h1>
<img src="https://habrastorage.org/a.png">
<img src="https://example.com/tracker.gif">
<img src="https://habrastorage.org/b.jpeg">
<img src="https://habrastorage.org/a.png">
</body></html>`

	title, images := ParseArticle([]byte(html), DefaultImagePrefix)
	require.Equal(t, "Go: каналы & горутины", title)
	require.Equal(t, []string{
		"https://habrastorage.org/a.png",
		"https://habrastorage.org/b.jpeg",
		"https://habrastorage.org/a.png",
	}, images)
}

func TestParseArticleWithoutTitle(t *testing.T) {
	t.Parallel()

	title, images := ParseArticle([]byte(`<h1>plain</h1><img src="https://habrastorage.org/x.jpg">`), DefaultImagePrefix)
	require.Empty(t, title)
	require.Len(t, images, 1)

	title, images = ParseArticle(nil, DefaultImagePrefix)
	require.Empty(t, title)
	require.Empty(t, images)
}

func TestListArticlesPaginates(t *testing.T) {
	t.Parallel()

	fetcher := newFeedFetcher(3, 4)
	src, err := New(fetcher, Config{BaseURL: "https://habr.example", PageSize: 4}, nil)
	require.NoError(t, err)

	links, err := src.ListArticles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, links, 10)
	require.Equal(t, "https://habr.example/ru/articles/1-0/", links[0])
	require.Equal(t, "https://habr.example/ru/articles/3-1/", links[9])
	require.Equal(t, []string{
		"https://habr.example/ru/all/page1",
		"https://habr.example/ru/all/page2",
		"https://habr.example/ru/all/page3",
	}, fetcher.Requested())
}

func TestListArticlesStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	fetcher := newFeedFetcher(1, 5)
	src, err := New(fetcher, Config{BaseURL: "https://habr.example", PageSize: 5}, nil)
	require.NoError(t, err)

	links, err := src.ListArticles(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, links, 5)
	require.Len(t, fetcher.Requested(), 2)
}

func TestListArticlesFetchFailureMeansNoItems(t *testing.T) {
	t.Parallel()

	src, err := New(failingFetcher{}, Config{}, nil)
	require.NoError(t, err)

	links, err := src.ListArticles(context.Background(), 25)
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestListArticlesZero(t *testing.T) {
	t.Parallel()

	fetcher := newFeedFetcher(2, 20)
	src, err := New(fetcher, Config{}, nil)
	require.NoError(t, err)

	links, err := src.ListArticles(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, links)
	require.Empty(t, fetcher.Requested())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	page := `<h1 class="tm-article-snippet__title_h1"><span>Title?</span></h1><img src="https://habrastorage.org/1.jpg">`
	src, err := New(staticFetcher(page), Config{}, nil)
	require.NoError(t, err)

	article, err := src.Resolve(context.Background(), "https://habr.com/ru/articles/1/")
	require.NoError(t, err)
	require.Equal(t, crawler.Article{
		Link:      "https://habr.com/ru/articles/1/",
		Title:     "Title?",
		ImageURLs: []string{"https://habrastorage.org/1.jpg"},
	}, article)
}

func TestResolveMissingTitle(t *testing.T) {
	t.Parallel()

	src, err := New(staticFetcher(`<p>nothing</p>`), Config{}, nil)
	require.NoError(t, err)
	_, err = src.Resolve(context.Background(), "https://habr.com/ru/articles/1/")
	require.ErrorIs(t, err, crawler.ErrTitleNotFound)

	src, err = New(failingFetcher{}, Config{}, nil)
	require.NoError(t, err)
	_, err = src.Resolve(context.Background(), "https://habr.com/ru/articles/1/")
	require.ErrorIs(t, err, crawler.ErrTitleNotFound)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{}, nil)
	require.Error(t, err)

	_, err = New(failingFetcher{}, Config{FeedPath: "/ru/all/"}, nil)
	require.Error(t, err)
}

// feedFetcher serves pages 1..pages with perPage links each; later pages are empty.
type feedFetcher struct {
	pages   int
	perPage int

	mu        sync.Mutex
	requested []string
}

func newFeedFetcher(pages, perPage int) *feedFetcher {
	return &feedFetcher{pages: pages, perPage: perPage}
}

func (f *feedFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	f.requested = append(f.requested, req.URL)
	f.mu.Unlock()

	var page int
	if _, err := fmt.Sscanf(req.URL[strings.LastIndex(req.URL, "page"):], "page%d", &page); err != nil {
		return crawler.FetchResponse{}, err
	}
	var b strings.Builder
	if page <= f.pages {
		for i := 0; i < f.perPage; i++ {
			fmt.Fprintf(&b, `<a class="tm-article-snippet__readmore" href="/ru/articles/%d-%d/">Read</a>`, page, i)
		}
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte(b.String())}, nil
}

func (f *feedFetcher) Requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

func TestResolveCanceledMidFetch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	src, err := New(cancelingFetcher{cancel: cancel}, Config{}, nil)
	require.NoError(t, err)

	_, err = src.Resolve(ctx, "https://habr.com/ru/articles/1/")
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, crawler.ErrTitleNotFound)
}

func TestListArticlesCanceledMidFetch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	src, err := New(cancelingFetcher{cancel: cancel}, Config{}, nil)
	require.NoError(t, err)

	links, err := src.ListArticles(ctx, 5)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, links)
}

// cancelingFetcher cancels the caller's context while the request is in flight.
type cancelingFetcher struct {
	cancel context.CancelFunc
}

func (f cancelingFetcher) Fetch(ctx context.Context, _ crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.cancel()
	<-ctx.Done()
	return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
}

type staticFetcher string

func (s staticFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte(s)}, nil
}

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{}, errors.New("dial tcp: connection refused")
}

func TestParseArticleCustomPrefix(t *testing.T) {
	t.Parallel()

	html := `<h1 class="tm-article-snippet__title_h1"><span>T</span></h1>
<img src="http://127.0.0.1:8080/img/1.jpg"><img src="https://habrastorage.org/2.jpg">`
	_, images := ParseArticle([]byte(html), "http://127.0.0.1:8080/img/")
	require.Equal(t, []string{"http://127.0.0.1:8080/img/1.jpg"}, images)
}
