// Package shutdown provides the cooperative cancellation signal shared by the
// dispatcher and its workers.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Signal is a one-way stop flag. Once set it stays set for its lifetime.
// It is safe for concurrent use.
type Signal struct {
	set    atomic.Bool
	done   chan struct{}
	logger *zap.Logger
}

// New returns an unset Signal.
func New(logger *zap.Logger) *Signal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signal{
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Set marks the signal. Only the first call has any effect.
func (s *Signal) Set() {
	if !s.set.CompareAndSwap(false, true) {
		return
	}
	close(s.done)
	s.logger.Info("graceful shutdown requested")
}

// IsSet reports whether Set has been called.
func (s *Signal) IsSet() bool {
	return s.set.Load()
}

// Done returns a channel closed when the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Install routes the given OS signals (SIGINT and SIGTERM by default) into Set
// until ctx ends or the returned stop func is called. Repeated OS signals are
// absorbed rather than killing the process.
func (s *Signal) Install(ctx context.Context, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	stopCh := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case sig := <-ch:
				s.logger.Debug("os signal received", zap.String("signal", sig.String()))
				s.Set()
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(stopCh)
		})
	}
}
