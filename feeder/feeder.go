// Package feeder implements the per-resource producer that scans a
// SourceStore view, applies a resource-specific filter, and pushes matching
// work items onto the primary queue. Grounded on the pagination shape of
// store.CouchDBStore.ScanFinalized and the teacher's worker.Worker run-loop
// (a single goroutine looping until its source is exhausted).
package feeder

import (
	"context"
	"fmt"
	"time"

	"github.com/openprocurement/archivarius-bridge/logging"
	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/stats"
	"github.com/openprocurement/archivarius-bridge/store"
)

// PageSize is the number of documents requested per view page, matching
// spec.md §4.1's "design uses 1,000 docs per page".
const PageSize = 1000

// Scanner is the subset of store.SourceStore a Feeder needs.
type Scanner interface {
	ScanFinalized(ctx context.Context, resource string, startKey interface{}, pageSize int) (rows []store.FeedRow, nextKey interface{}, err error)
}

// Filter decides whether row is eligible for archival, parameterized by
// the feeder's start time captured once per run so eligibility stays
// stable for the whole pass.
type Filter func(row store.FeedRow, startTime time.Time) bool

// Feeder scans one resource's view to completion, pushing matching items
// onto a primary queue.
type Feeder struct {
	Resource string
	Scanner  Scanner
	Filter   Filter
	Queue    *queue.Queue
	Stats    *stats.Stats
}

// Run scans the resource's view from the beginning to exhaustion, pushing
// every row the filter accepts. It returns when the view is exhausted or
// ctx is cancelled; a scan error is fatal for this Feeder per spec.md
// §4.1 ("transient view errors are fatal for that Feeder").
func (f *Feeder) Run(ctx context.Context) error {
	log := logging.Entry("feeder").WithField("resource", f.Resource)
	startTime := time.Now()

	var startKey interface{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rows, nextKey, err := f.Scanner.ScanFinalized(ctx, f.Resource, startKey, PageSize)
		if err != nil {
			log.WithError(err).Error("view scan failed")
			return fmt.Errorf("feeder: scan %s: %w", f.Resource, err)
		}

		for _, row := range rows {
			if !f.Filter(row, startTime) {
				continue
			}
			f.Queue.Push(queue.WorkItem{ID: row.ID, Resource: f.Resource})
			f.Stats.Added.Inc()
		}

		if nextKey == nil {
			log.Info("view exhausted")
			return nil
		}
		startKey = nextKey
	}
}
