package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/article-image-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/article-image-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/article-image-crawler/internal/hash/sha256"
	"github.com/JakeFAU/article-image-crawler/internal/storage/memory"
)

func TestDownloadStoresBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://habr.com" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("\xff\xd8\xffimage"))
	}))
	t.Cleanup(srv.Close)

	store := memory.NewBlobStore()
	d := New(collyfetcher.New(collyfetcher.Config{Timeout: time.Second}), store, zap.NewNop(),
		WithHeaders(http.Header{"Referer": {"https://habr.com"}}))

	n, err := d.Download(context.Background(), srv.URL+"/a.jpg", "Title/0.jpg")
	require.NoError(t, err)
	require.EqualValues(t, 8, n)

	body, contentType, ok := store.Get("Title/0.jpg")
	require.True(t, ok)
	require.Equal(t, "\xff\xd8\xffimage", string(body))
	require.Equal(t, "image/jpeg", contentType)
}

func TestDownloadFailureWritesNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	store := memory.NewBlobStore()
	d := New(collyfetcher.New(collyfetcher.Config{Timeout: time.Second}), store, nil)

	n, err := d.Download(context.Background(), srv.URL+"/missing.jpg", "Title/0.jpg")
	require.Error(t, err)
	require.Zero(t, n)
	require.Empty(t, store.Paths())
}

func TestDownloadRejectsBadResponses(t *testing.T) {
	t.Parallel()

	cases := map[string]stubFetcher{
		"error":  {err: errors.New("dial tcp: refused")},
		"status": {resp: crawler.FetchResponse{StatusCode: http.StatusBadGateway, Body: []byte("x")}},
		"empty":  {resp: crawler.FetchResponse{StatusCode: http.StatusOK}},
		"short": {resp: crawler.FetchResponse{
			StatusCode: http.StatusOK,
			Headers:    http.Header{"Content-Length": {"100"}},
			Body:       []byte("0123456789"),
		}},
	}
	for name, fetcher := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := memory.NewBlobStore()
			_, err := New(fetcher, store, nil).Download(context.Background(), "https://habrastorage.org/x.jpg", "T/0.jpg")
			require.Error(t, err)
			require.Empty(t, store.Paths())
		})
	}
}

func TestDownloadRejectsOversizedImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 100))
	}))
	t.Cleanup(srv.Close)

	store := memory.NewBlobStore()
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: time.Second, MaxBodySize: 10})
	n, err := New(fetcher, store, nil).Download(context.Background(), srv.URL+"/big.jpg", "T/0.jpg")
	require.ErrorIs(t, err, collyfetcher.ErrBodyTooLarge)
	require.Zero(t, n)
	require.Empty(t, store.Paths())
}

func TestCheckLength(t *testing.T) {
	t.Parallel()

	body := []byte("0123456789")
	cases := map[string]struct {
		header string
		err    error
	}{
		"absent":  {header: ""},
		"match":   {header: "10"},
		"garbage": {header: "ten"},
		"short":   {header: "11", err: ErrIncompleteBody},
		"long":    {header: "9", err: ErrIncompleteBody},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			resp := crawler.FetchResponse{Headers: http.Header{}, Body: body}
			if tc.header != "" {
				resp.Headers.Set("Content-Length", tc.header)
			}
			err := checkLength(resp)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDownloadSniffsContentType(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	fetcher := stubFetcher{resp: crawler.FetchResponse{StatusCode: http.StatusOK, Body: []byte("\x89PNG\r\n\x1a\n....")}}
	_, err := New(fetcher, store, nil).Download(context.Background(), "https://habrastorage.org/x.png", "T/0.jpg")
	require.NoError(t, err)
	_, contentType, ok := store.Get("T/0.jpg")
	require.True(t, ok)
	require.Equal(t, "image/png", contentType)
}

func TestDownloadLogsDigest(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	fetcher := stubFetcher{resp: crawler.FetchResponse{StatusCode: http.StatusOK, Body: []byte("hello world")}}
	d := New(fetcher, memory.NewBlobStore(), zap.New(core), WithHasher(sha256.New()))

	_, err := d.Download(context.Background(), "https://habrastorage.org/x.jpg", "T/0.jpg")
	require.NoError(t, err)

	entries := logs.FilterMessage("image stored").All()
	require.Len(t, entries, 1)
	require.Equal(t,
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		entries[0].ContextMap()["sha256"],
	)
}

type stubFetcher struct {
	resp crawler.FetchResponse
	err  error
}

func (s stubFetcher) Fetch(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error) {
	return s.resp, s.err
}
