package scheduler

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// batchKey is the gin context key holding the request-scoped batch.
const batchKey = "scheduler_batch"

// Batch collects tasks during a request. It implements Scheduler so the
// forwarding facade does not know whether it is scheduling into a request
// batch or straight into a worker.
type Batch struct {
	mu    sync.Mutex
	tasks []Task
}

func (b *Batch) Schedule(t Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = append(b.tasks, t)
}

func (b *Batch) flush(s Scheduler) {
	b.mu.Lock()
	tasks := b.tasks
	b.tasks = nil
	b.mu.Unlock()

	for _, t := range tasks {
		s.Schedule(t)
	}
}

// Middleware attaches a batch to each request and flushes it to s after the
// handler chain returns, i.e. after the response has been written. Tasks of
// one request therefore run after that request's response and in scheduling
// order; nothing is guaranteed across concurrent requests.
func Middleware(s Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		b := &Batch{}
		c.Set(batchKey, b)
		c.Next()
		b.flush(s)
	}
}

// FromContext returns the request's batch. Outside of Middleware (plain
// handler tests) it falls back to inline execution.
func FromContext(c *gin.Context) Scheduler {
	if v, ok := c.Get(batchKey); ok {
		if b, ok := v.(*Batch); ok {
			return b
		}
	}
	return Sync{}
}
