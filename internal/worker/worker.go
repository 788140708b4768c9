// Package worker implements the loop that drains the article queue and
// downloads each article's images.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/article-image-crawler/internal/clock/system"
	"github.com/JakeFAU/article-image-crawler/internal/crawler"
	"github.com/JakeFAU/article-image-crawler/internal/progress"
)

// Config controls Worker behavior.
type Config struct {
	// ImageExt is the file extension given to every downloaded image.
	ImageExt string
	// RunID tags progress events with the dispatcher run they belong to.
	RunID [16]byte
}

// Worker takes articles from a shared queue until it is drained or the stop
// signal is set. A download that has started always runs to completion.
type Worker struct {
	index      int
	queue      crawler.Queue
	downloader crawler.Downloader
	stop       crawler.StopSignal
	emitter    progress.Emitter
	clock      crawler.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker.
func New(
	index int,
	queue crawler.Queue,
	downloader crawler.Downloader,
	stop crawler.StopSignal,
	emitter progress.Emitter,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if clock == nil {
		clock = system.New()
	}
	if cfg.ImageExt == "" {
		cfg.ImageExt = ".jpg"
	}
	return &Worker{
		index:      index,
		queue:      queue,
		downloader: downloader,
		stop:       stop,
		emitter:    emitter,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Index returns the worker's position in the pool.
func (w *Worker) Index() int {
	return w.index
}

// Run drains the queue. ctx governs in-flight downloads only; stopping the
// loop is driven by the stop signal. When results is non-nil every taken
// article produces exactly one Result on it, so the channel must have room
// for the whole queue.
func (w *Worker) Run(ctx context.Context, results chan<- crawler.Result) {
	w.logger.Info("worker started")
	w.emit(progress.Event{Stage: progress.StageWorkerStart})
	defer func() {
		w.emit(progress.Event{Stage: progress.StageWorkerDone})
		w.logger.Info("worker finished")
	}()

	for {
		if w.stop != nil && w.stop.IsSet() {
			w.logger.Debug("stop signal observed")
			return
		}
		article, ok := w.queue.TryDequeue()
		if !ok {
			return
		}
		result := w.handle(ctx, article)
		if results != nil {
			results <- result
		}
	}
}

func (w *Worker) handle(ctx context.Context, article crawler.Article) crawler.Result {
	result := crawler.Result{
		Worker: w.index,
		Title:  article.Title,
		Link:   article.Link,
	}
	if !article.HasImages() {
		result.Skipped = true
		w.logger.Debug("article has no images", zap.String("title", article.Title))
		w.emit(progress.Event{Stage: progress.StageItemSkipped, Title: article.Title})
		return result
	}

	w.logger.Info("handling article", zap.String("title", article.Title))
	w.emit(progress.Event{Stage: progress.StageItemStart, Title: article.Title})

	for i, url := range article.ImageURLs {
		result.Attempted++
		if err := w.download(ctx, article.Title, i, url); err != nil {
			result.Failed = append(result.Failed, crawler.FailedResource{Index: i, URL: url, Err: err})
		}
	}

	w.logger.Info("end handling article",
		zap.String("title", article.Title),
		zap.Int("images", result.Attempted),
		zap.Int("failed", len(result.Failed)),
	)
	w.emit(progress.Event{Stage: progress.StageItemDone, Title: article.Title})
	return result
}

func (w *Worker) download(ctx context.Context, title string, index int, url string) error {
	dest := crawler.ImagePath(title, index, w.cfg.ImageExt)
	start := w.clock.Now()
	written, err := w.downloader.Download(ctx, url, dest)
	evt := progress.Event{
		Stage:   progress.StageDownloadDone,
		Title:   title,
		URL:     url,
		Bytes:   written,
		Outcome: progress.OutcomeOK,
		Dur:     w.clock.Now().Sub(start),
	}
	if err != nil {
		evt.Outcome = progress.OutcomeError
		evt.Note = err.Error()
		w.logger.Warn("image download failed",
			zap.String("title", title),
			zap.String("url", url),
			zap.String("dest", dest),
			zap.Error(err),
		)
	}
	w.emit(evt)
	return err
}

func (w *Worker) emit(evt progress.Event) {
	evt.RunID = w.cfg.RunID
	evt.Worker = w.index
	evt.TS = w.clock.Now()
	if evt.Dur < 0 {
		evt.Dur = 0
	}
	w.emitter.Emit(evt)
}
