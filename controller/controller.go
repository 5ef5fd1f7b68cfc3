// Package controller implements the bridge's two scaling loops: the
// Controller (paces scale-up/down on backlog, refills the client pool,
// emits telemetry) and the Watcher (restores minimum parallelism quickly
// after a transient drain). Grounded on the teacher coordinator.Coordinator's
// ctx/cancel/sync.WaitGroup lifecycle and ticker-driven loops, adapted from
// a single WebSocket connection loop to two independent periodic loops over
// a worker population.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openprocurement/archivarius-bridge/clientpool"
	"github.com/openprocurement/archivarius-bridge/logging"
	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/stats"
)

// Pool is the minimal worker-population control surface the Controller and
// Watcher need: spawn one more worker, or signal the most recently spawned
// one to shut down. The bridge package's workerPool (bridge/pool.go)
// supplies the concrete implementation backed by worker.Worker.
type Pool interface {
	Spawn()
	ShutdownOne()
	Size() int
}

// Config carries the scaling thresholds and loop periods from spec.md §6.
type Config struct {
	WorkersMin        int
	WorkersMax        int
	RetryWorkersMin   int
	RetryWorkersMax   int
	ControllerPeriod  time.Duration
	WatchPeriod       time.Duration
	ClientPoolMinSize int
}

// Controller owns the scale-up/down pacing loop and the Watcher's
// minimum-parallelism loop. Both read the same queues and worker
// populations but run on independent tickers per spec.md §4.4's rationale.
type Controller struct {
	cfg         Config
	primary     *queue.Queue
	retry       *queue.Queue
	clients     *clientpool.Pool
	primaryPool Pool
	retryPool   Pool
	stats       *stats.Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Controller. Call Start to launch its two loops and Stop to
// request cooperative shutdown.
func New(cfg Config, primary, retry *queue.Queue, clients *clientpool.Pool, primaryPool, retryPool Pool, st *stats.Stats) *Controller {
	return &Controller{
		cfg:         cfg,
		primary:     primary,
		retry:       retry,
		clients:     clients,
		primaryPool: primaryPool,
		retryPool:   retryPool,
		stats:       st,
	}
}

// Start launches the Controller and Watcher loops in the background.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go c.controllerLoop()
	go c.watcherLoop()
}

// Stop requests both loops to exit and waits for them to finish.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Done reports whether the primary and retry queues this Controller
// tracks are both currently empty, one of the shutdown conditions
// spec.md §4.7 names (feeders are tracked separately by the bridge).
// Worker pool size alone cannot signal this: the controller/watcher
// loops only ever shrink a pool down to its configured minimum, never
// to zero, so an empty population means its queue has drained, not
// that no workers are spawned.
func (c *Controller) Done() bool {
	return c.primary.Empty() && c.retry.Empty()
}

func (c *Controller) controllerLoop() {
	defer c.wg.Done()
	log := logging.Entry("controller")
	ticker := time.NewTicker(c.cfg.ControllerPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.tick(log)
		}
	}
}

func (c *Controller) tick(log *logrus.Entry) {
	if c.clients.Size() == 0 {
		if err := c.clients.RefillTo(c.ctx, 1); err != nil {
			log.WithError(err).Warn("client pool refill failed")
		}
	}

	switch {
	case !c.primary.Empty() && c.primaryPool.Size() < c.cfg.WorkersMax:
		c.primaryPool.Spawn()
	case c.primary.Empty() && c.primaryPool.Size() > c.cfg.WorkersMin:
		c.primaryPool.ShutdownOne()
	}

	snap := c.stats.Snapshot()
	log.WithField("primary_queue_depth", c.primary.Len()).
		WithField("retry_queue_depth", c.retry.Len()).
		WithField("primary_workers", c.primaryPool.Size()).
		WithField("retry_workers", c.retryPool.Size()).
		WithField("stats", snap).
		Info("telemetry")
}

func (c *Controller) watcherLoop() {
	defer c.wg.Done()
	log := logging.Entry("watcher")
	ticker := time.NewTicker(c.cfg.WatchPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.primary.Empty() && c.primaryPool.Size() < c.cfg.WorkersMin {
				log.Debug("primary pool below minimum, spawning")
				c.primaryPool.Spawn()
			}
			if !c.retry.Empty() && c.retryPool.Size() < c.cfg.RetryWorkersMin {
				log.Debug("retry pool below minimum, spawning")
				c.retryPool.Spawn()
			}
		}
	}
}
