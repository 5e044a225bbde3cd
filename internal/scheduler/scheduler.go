// Package scheduler runs deferred work after the HTTP response has been
// written. Handlers add tasks to a request-scoped batch; once the handler
// chain finishes, the batch is handed to a background worker in order. Tasks
// are in-memory only: a process exit before a task runs loses it.
package scheduler

import (
	"container/list"
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a unit of deferred work.
type Task func(ctx context.Context)

// Scheduler accepts tasks for eventual execution.
type Scheduler interface {
	Schedule(Task)
}

// Worker drains an unbounded FIFO queue on a single background goroutine.
// The queue is deliberately unbounded: the service applies no backpressure
// on deferred deliveries.
type Worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  *list.List
	closed bool
	done   chan struct{}
	log    zerolog.Logger
}

// NewWorker starts the drain goroutine immediately.
func NewWorker(log zerolog.Logger) *Worker {
	w := &Worker{
		queue: list.New(),
		done:  make(chan struct{}),
		log:   log.With().Str("component", "scheduler").Logger(),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Schedule enqueues a task. Tasks scheduled after Close are dropped.
func (w *Worker) Schedule(t Task) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.log.Warn().Msg("task scheduled after close, dropping")
		return
	}
	w.queue.PushBack(t)
	w.cond.Signal()
}

func (w *Worker) run() {
	for {
		w.mu.Lock()
		for w.queue.Len() == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.queue.Len() == 0 && w.closed {
			w.mu.Unlock()
			close(w.done)
			return
		}
		front := w.queue.Front()
		w.queue.Remove(front)
		w.mu.Unlock()

		w.invoke(front.Value.(Task))
	}
}

func (w *Worker) invoke(t Task) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("deferred task panicked")
		}
	}()
	t(context.Background())
}

// Close drains every task already scheduled, then stops the worker.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Signal()
	w.mu.Unlock()
	<-w.done
}

// Sync executes tasks inline. Used in tests to make deferred behavior
// deterministic.
type Sync struct{}

func (Sync) Schedule(t Task) {
	t(context.Background())
}
