// Package memory provides the in-memory article queue shared by the worker pool.
package memory

import (
	"github.com/JakeFAU/article-image-crawler/internal/crawler"
)

// Queue is a fill-once, drain-many FIFO of articles. All items are loaded at
// construction and the backing channel is closed immediately, so receives
// never block and every item is handed to exactly one caller.
type Queue struct {
	ch chan crawler.Article
}

// NewQueue constructs a queue holding items in order.
func NewQueue(items []crawler.Article) *Queue {
	ch := make(chan crawler.Article, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	return &Queue{ch: ch}
}

// TryDequeue pops the next article. It returns false once the queue is drained.
func (q *Queue) TryDequeue() (crawler.Article, bool) {
	item, ok := <-q.ch
	return item, ok
}

// Exhausted reports whether every article has been taken. It is an
// observation only; workers rely on TryDequeue to detect the end.
func (q *Queue) Exhausted() bool {
	return len(q.ch) == 0
}

// Len returns the number of articles still waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}
