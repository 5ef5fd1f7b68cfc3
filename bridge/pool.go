package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/worker"
)

// workerPool tracks a live population of worker.Worker goroutines reading
// from a single queue, implementing controller.Pool. It is the bridge's
// concrete worker-population manager the Controller and Watcher scale.
type workerPool struct {
	ctx     context.Context
	queue   *queue.Queue
	deps    worker.Deps
	nextID  atomic.Int64
	mu      sync.Mutex
	workers []*worker.Worker
	wg      sync.WaitGroup
}

func newWorkerPool(ctx context.Context, q *queue.Queue, deps worker.Deps) *workerPool {
	return &workerPool{ctx: ctx, queue: q, deps: deps}
}

// Spawn starts one more worker goroutine reading from the pool's queue.
func (p *workerPool) Spawn() {
	id := int(p.nextID.Add(1))
	w := &worker.Worker{ID: id, Queue: p.queue, Deps: p.deps}

	p.mu.Lock()
	p.workers = append(p.workers, w)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.Run(p.ctx)
	}()
}

// ShutdownOne signals the most recently spawned worker to stop; it exits
// once a dequeue attempt finds its queue empty.
func (p *workerPool) ShutdownOne() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return
	}
	last := p.workers[len(p.workers)-1]
	p.workers = p.workers[:len(p.workers)-1]
	last.Stop()
}

// Size reports the current worker count.
func (p *workerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Wait blocks until every spawned worker goroutine has returned.
func (p *workerPool) Wait() {
	p.wg.Wait()
}
