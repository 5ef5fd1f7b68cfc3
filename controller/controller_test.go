package controller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/openprocurement/archivarius-bridge/clientpool"
	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/stats"
	"github.com/openprocurement/archivarius-bridge/upstream"
)

type fakePool struct {
	size     atomic.Int64
	spawns   atomic.Int64
	shutdown atomic.Int64
}

func (p *fakePool) Spawn()       { p.size.Add(1); p.spawns.Add(1) }
func (p *fakePool) ShutdownOne() { p.size.Add(-1); p.shutdown.Add(1) }
func (p *fakePool) Size() int    { return int(p.size.Load()) }

func TestWatcherSpawnsPrimaryBelowMinimum(t *testing.T) {
	primary := queue.New(10)
	primary.Push(queue.WorkItem{ID: "a"})
	retry := queue.New(10)

	clients := clientpool.New(clientpool.Config{Upstream: upstream.Config{BaseURL: "http://example.invalid"}}, "bridge")
	primaryPool := &fakePool{}
	retryPool := &fakePool{}

	c := New(Config{
		WorkersMin:       2,
		WorkersMax:       5,
		RetryWorkersMin:  1,
		ControllerPeriod: time.Hour,
		WatchPeriod:      10 * time.Millisecond,
	}, primary, retry, clients, primaryPool, retryPool, stats.New(prometheus.NewRegistry()))

	c.Start(context.Background())
	defer c.Stop()

	assert.Eventually(t, func() bool { return primaryPool.Size() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestControllerShutsDownOneWhenPrimaryEmptyAboveMin(t *testing.T) {
	primary := queue.New(10)
	retry := queue.New(10)

	clients := clientpool.New(clientpool.Config{Upstream: upstream.Config{BaseURL: "http://example.invalid"}}, "bridge")
	primaryPool := &fakePool{}
	primaryPool.size.Store(3)
	retryPool := &fakePool{}

	c := New(Config{
		WorkersMin:       1,
		WorkersMax:       5,
		ControllerPeriod: 10 * time.Millisecond,
		WatchPeriod:      time.Hour,
	}, primary, retry, clients, primaryPool, retryPool, stats.New(prometheus.NewRegistry()))

	c.Start(context.Background())
	defer c.Stop()

	assert.Eventually(t, func() bool { return primaryPool.Size() < 3 }, time.Second, 5*time.Millisecond)
}

func TestDoneWhenBothQueuesEmpty(t *testing.T) {
	primary := queue.New(10)
	retry := queue.New(10)
	clients := clientpool.New(clientpool.Config{Upstream: upstream.Config{BaseURL: "http://example.invalid"}}, "bridge")

	primaryPool := &fakePool{}
	primaryPool.size.Store(1) // at workers_min, never shrinks to 0
	retryPool := &fakePool{}
	retryPool.size.Store(1)

	c := New(Config{ControllerPeriod: time.Hour, WatchPeriod: time.Hour}, primary, retry, clients, primaryPool, retryPool, stats.New(prometheus.NewRegistry()))
	assert.True(t, c.Done())
}

func TestNotDoneWhileQueueHasItems(t *testing.T) {
	primary := queue.New(10)
	primary.Push(queue.WorkItem{ID: "a"})
	retry := queue.New(10)
	clients := clientpool.New(clientpool.Config{Upstream: upstream.Config{BaseURL: "http://example.invalid"}}, "bridge")

	c := New(Config{ControllerPeriod: time.Hour, WatchPeriod: time.Hour}, primary, retry, clients, &fakePool{}, &fakePool{}, stats.New(prometheus.NewRegistry()))
	assert.False(t, c.Done())
}
