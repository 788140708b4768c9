package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-image-crawler/internal/api"
	"github.com/JakeFAU/article-image-crawler/internal/clock/system"
	"github.com/JakeFAU/article-image-crawler/internal/config"
	"github.com/JakeFAU/article-image-crawler/internal/crawler"
	"github.com/JakeFAU/article-image-crawler/internal/dispatcher"
	"github.com/JakeFAU/article-image-crawler/internal/download"
	collyfetcher "github.com/JakeFAU/article-image-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/article-image-crawler/internal/hash/sha256"
	"github.com/JakeFAU/article-image-crawler/internal/id/uuid"
	"github.com/JakeFAU/article-image-crawler/internal/metrics"
	"github.com/JakeFAU/article-image-crawler/internal/progress"
	"github.com/JakeFAU/article-image-crawler/internal/progress/sinks"
	"github.com/JakeFAU/article-image-crawler/internal/shutdown"
	"github.com/JakeFAU/article-image-crawler/internal/source/habr"
	"github.com/JakeFAU/article-image-crawler/internal/storage/gcs"
	"github.com/JakeFAU/article-image-crawler/internal/storage/local"
)

const shutdownTimeout = 10 * time.Second

// crawlOptions are the command-line overrides for a single run.
type crawlOptions struct {
	articles    int
	articlesSet bool
	workers     int
	outputDir   string
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var articles int
	cmd := &cobra.Command{
		Use:   "crawl [-n ARTICLES] [THREADS] [OUT_DIR]",
		Short: "Downloads article images with a pool of workers",
		Long: `Lists ARTICLES feed entries (default 25), resolves each article's title and
images, then downloads the images with THREADS workers into OUT_DIR.
THREADS and OUT_DIR fall back to crawler.workers and crawler.output_dir.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseCrawlArgs(args)
			if err != nil {
				return err
			}
			opts.articles = articles
			opts.articlesSet = cmd.Flags().Changed("articles")
			return runCrawlCommand(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVarP(&articles, "articles", "n", 25, "number of articles to process")
	return cmd
}

func parseCrawlArgs(args []string) (crawlOptions, error) {
	var opts crawlOptions
	if len(args) > 0 {
		workers, err := strconv.Atoi(args[0])
		if err != nil {
			return crawlOptions{}, fmt.Errorf("THREADS must be an integer: %w", err)
		}
		if workers < 1 {
			return crawlOptions{}, fmt.Errorf("THREADS must be >= 1, got %d", workers)
		}
		opts.workers = workers
	}
	if len(args) > 1 {
		opts.outputDir = args[1]
	}
	return opts, nil
}

// applyOptions merges command-line overrides into the loaded configuration.
func applyOptions(cfg config.Config, opts crawlOptions) (config.Config, error) {
	if opts.articlesSet {
		if opts.articles < 0 {
			return cfg, fmt.Errorf("-n must be >= 0, got %d", opts.articles)
		}
		cfg.Crawler.Articles = opts.articles
	}
	if opts.workers > 0 {
		cfg.Crawler.Workers = opts.workers
	}
	if opts.outputDir != "" {
		cfg.Crawler.OutputDir = opts.outputDir
	}
	return cfg, cfg.Validate()
}

func runCrawlCommand(ctx context.Context, opts crawlOptions) error {
	e, err := resolveEnv(ctx)
	if err != nil {
		return err
	}
	cfg, err := applyOptions(e.cfg, opts)
	if err != nil {
		return err
	}
	return runCrawl(ctx, cfg, e.logger)
}

// runCrawl performs one complete run. It returns nil on normal completion and
// on graceful cancellation; a missing article title is returned as an error.
func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	stop := shutdown.New(logger.Named("shutdown"))
	uninstall := stop.Install(ctx)
	defer uninstall()

	runID, err := uuid.New().NewRunID()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID.String()))

	store, closeStore, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("init metrics sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:    cfg.Progress.BufferSize,
		FlushInterval: cfg.FlushInterval(),
		Logger:        logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("progress")), promSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
		if dropped := hub.Dropped(); dropped > 0 {
			logger.Warn("progress events dropped", zap.Int64("dropped", dropped))
		}
	}()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
	})
	source, err := habr.New(fetcher, habr.Config{
		BaseURL:     cfg.Crawler.BaseURL,
		FeedPath:    cfg.Crawler.FeedPath,
		PageSize:    cfg.Crawler.PageSize,
		ImagePrefix: cfg.Crawler.ImagePrefix,
	}, logger.Named("habr"))
	if err != nil {
		return fmt.Errorf("init source: %w", err)
	}
	downloader := download.New(fetcher, store, logger.Named("download"),
		download.WithHeaders(http.Header{"Referer": {cfg.Crawler.BaseURL}}),
		download.WithHasher(sha256.New()))

	d := dispatcher.New(downloader, stop, hub, system.New(), dispatcher.Config{
		Workers:  cfg.Crawler.Workers,
		ImageExt: cfg.Crawler.ImageExt,
		RunID:    progress.UUIDToBytes(runID),
	}, logger.Named("dispatcher"))

	if cfg.Metrics.Addr != "" {
		metrics.Init()
		metrics.SetBuildInfo(version)
		server := api.NewServer(
			api.StateFunc(func() fmt.Stringer { return d.State() }),
			prometheus.Gatherers{reg, prometheus.DefaultGatherer},
			logger.Named("api"),
		)
		if err := server.Start(cfg.Metrics.Addr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	// Collection is abandoned on a stop signal; downloads are not.
	collectCtx, cancelCollect := context.WithCancel(ctx)
	defer cancelCollect()
	go func() {
		select {
		case <-stop.Done():
			cancelCollect()
		case <-collectCtx.Done():
		}
	}()
	articles, err := crawler.CollectArticles(collectCtx, source, source, cfg.Crawler.Articles, logger)
	if err != nil {
		if stop.IsSet() && errors.Is(err, context.Canceled) {
			logger.Info("crawl cancelled before downloads started")
			return nil
		}
		return err
	}
	cancelCollect()

	summary := d.Run(ctx, articles)
	logger.Info("crawl finished",
		zap.Int("articles", summary.Articles),
		zap.Int("workers", summary.Workers),
		zap.Int("processed", summary.Processed),
		zap.Int("downloads", summary.Attempted),
		zap.Int("failed_downloads", summary.Failed),
		zap.Bool("cancelled", summary.Cancelled),
	)
	return nil
}

// openBlobStore picks GCS when a bucket is configured and the local output
// directory otherwise. The local directory is created if absent.
func openBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.BlobStore, func(), error) {
	if cfg.Storage.GCSBucket != "" {
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open gcs store: %w", err)
		}
		logger.Info("writing images to gcs", zap.String("bucket", cfg.Storage.GCSBucket))
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("gcs close failed", zap.Error(err))
			}
		}, nil
	}
	if err := os.MkdirAll(cfg.Crawler.OutputDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}
	store, err := local.New(local.Config{BaseDir: cfg.Crawler.OutputDir})
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}
	logger.Info("writing images to disk", zap.String("dir", cfg.Crawler.OutputDir))
	return store, func() {}, nil
}
