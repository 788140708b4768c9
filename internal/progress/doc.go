// Package progress provides the event primitives, non-blocking hub, and emitter
// interface that the dispatcher and workers use to report crawl progress. The
// hub batches events on a background goroutine and fans them out to pluggable
// sinks such as structured logs or Prometheus collectors.
package progress
