// Package dispatcher manages worker fan-out over the article queue.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/article-image-crawler/internal/clock/system"
	"github.com/JakeFAU/article-image-crawler/internal/crawler"
	"github.com/JakeFAU/article-image-crawler/internal/progress"
	queueMemory "github.com/JakeFAU/article-image-crawler/internal/queue/memory"
	"github.com/JakeFAU/article-image-crawler/internal/worker"
)

// State is the lifecycle phase of a dispatcher run.
type State int32

// Run phases. Every run passes through all of them in order.
const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config controls the worker pool.
type Config struct {
	// Workers is the requested pool size. It is clamped to the number of articles.
	Workers int
	// ImageExt is passed through to every worker.
	ImageExt string
	// RunID tags progress events.
	RunID [16]byte
}

// Summary describes how a run ended.
type Summary struct {
	Workers   int
	Articles  int
	Processed int
	Skipped   int
	Remaining int
	Attempted int
	Failed    int
	Cancelled bool
	Duration  time.Duration
	Results   []crawler.Result
}

// Dispatcher fans the article queue out to a fixed pool of workers and waits
// for all of them before returning.
type Dispatcher struct {
	downloader crawler.Downloader
	stop       crawler.StopSignal
	emitter    progress.Emitter
	clock      crawler.Clock
	cfg        Config
	logger     *zap.Logger
	state      atomic.Int32
}

// New creates a Dispatcher.
func New(
	downloader crawler.Downloader,
	stop crawler.StopSignal,
	emitter progress.Emitter,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if clock == nil {
		clock = system.New()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		downloader: downloader,
		stop:       stop,
		emitter:    emitter,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// State returns the current lifecycle phase.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// PoolSize returns how many workers a run over n articles starts.
func (d *Dispatcher) PoolSize(n int) int {
	return min(d.cfg.Workers, n)
}

// Run queues articles, starts the pool, and blocks until every worker has
// returned, either because the queue drained or because the stop signal was
// set. ctx is handed to downloads and is not used to stop the pool.
func (d *Dispatcher) Run(ctx context.Context, articles []crawler.Article) Summary {
	start := d.clock.Now()
	queue := queueMemory.NewQueue(articles)
	poolSize := d.PoolSize(len(articles))
	results := make(chan crawler.Result, len(articles))

	d.transition(StateRunning)
	d.logger.Info("dispatcher started",
		zap.Int("articles", len(articles)),
		zap.Int("requested_workers", d.cfg.Workers),
		zap.Int("workers", poolSize),
	)
	d.emit(progress.Event{Stage: progress.StageRunStart})

	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		w := worker.New(
			i,
			queue,
			d.downloader,
			d.stop,
			d.emitter,
			d.clock,
			worker.Config{ImageExt: d.cfg.ImageExt, RunID: d.cfg.RunID},
			d.logger.Named("worker").With(zap.Int("index", i)),
		)
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx, results)
		}(w)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-d.stopDone():
		d.logger.Info("stop signal observed, waiting for workers")
		d.emit(progress.Event{Stage: progress.StageShutdown})
	}
	d.transition(StateDraining)
	<-finished
	close(results)

	summary := Summary{
		Workers:   poolSize,
		Articles:  len(articles),
		Remaining: queue.Len(),
		Cancelled: d.stop != nil && d.stop.IsSet(),
		Duration:  d.clock.Now().Sub(start),
	}
	for r := range results {
		summary.add(r)
	}
	if summary.Duration < 0 {
		summary.Duration = 0
	}

	d.transition(StateStopped)
	outcome := progress.OutcomeCompleted
	if summary.Cancelled {
		outcome = progress.OutcomeCancelled
	}
	d.emit(progress.Event{Stage: progress.StageRunDone, Outcome: outcome, Dur: summary.Duration})
	d.logger.Info("dispatcher stopped",
		zap.String("outcome", outcome),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("remaining", summary.Remaining),
		zap.Int("downloads", summary.Attempted),
		zap.Int("failed_downloads", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}

func (s *Summary) add(r crawler.Result) {
	s.Results = append(s.Results, r)
	s.Processed++
	if r.Skipped {
		s.Skipped++
	}
	s.Attempted += r.Attempted
	s.Failed += len(r.Failed)
}

// stopDone returns a nil channel when no signal is configured so the select
// only waits on the pool.
func (d *Dispatcher) stopDone() <-chan struct{} {
	if d.stop == nil {
		return nil
	}
	return d.stop.Done()
}

func (d *Dispatcher) transition(to State) {
	from := State(d.state.Swap(int32(to)))
	d.logger.Debug("dispatcher state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func (d *Dispatcher) emit(evt progress.Event) {
	evt.RunID = d.cfg.RunID
	evt.Worker = -1
	evt.TS = d.clock.Now()
	d.emitter.Emit(evt)
}
