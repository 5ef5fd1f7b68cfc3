// Package worker implements the per-item archival state machine (S0-S8),
// grounded on the teacher's worker.Worker/Pool run-loop shape (a goroutine
// dequeuing with a bounded timeout, processing one job, looping until
// told to stop) generalized from a generic job processor to the bridge's
// fixed sequence of store and upstream calls.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openprocurement/archivarius-bridge/clientpool"
	"github.com/openprocurement/archivarius-bridge/db"
	"github.com/openprocurement/archivarius-bridge/logging"
	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/stats"
	"github.com/openprocurement/archivarius-bridge/store"
)

// Config carries the retry and timing policy from spec.md §4.6 and §6.
type Config struct {
	RetryDefaultTimeout time.Duration
	RetriesCountMax     int
	QueueTimeout        time.Duration
	WorkerSleep         time.Duration
}

// Deps bundles every collaborator the state machine calls into, so Workers
// stay free of globals per spec.md §9 ("pass the context explicitly").
type Deps struct {
	Source  store.SourceStore
	Public  store.PublicArchive
	Secret  store.SecretStore
	Clients *clientpool.Pool
	Primary *queue.Queue
	Retry   *queue.Queue
	Stats   *stats.Stats
	Seal    func(plaintext []byte) ([]byte, error)
	Config  Config
}

// Worker consumes from a single queue (either the primary or the retry
// queue; two pools of Workers exist, one per queue) and runs every
// dequeued item through S0-S8.
type Worker struct {
	ID      int
	Queue   *queue.Queue
	Deps    Deps
	stopped atomic.Bool
}

// Stop requests cooperative shutdown: the Worker exits after its current
// S0 dequeue attempt finds the queue empty.
func (w *Worker) Stop() { w.stopped.Store(true) }

// Run loops S0 until the queue is empty and Stop has been called, or ctx
// is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log := logging.Entry("worker").WithField("worker_id", w.ID)
	log.Info("worker started")
	defer log.Info("worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		item, ok := w.Queue.Pop(ctx, w.Deps.Config.QueueTimeout)
		if !ok {
			if w.stopped.Load() {
				return
			}
			continue
		}

		w.process(ctx, item)
	}
}

// process runs one WorkItem through S1-S8, dispatching to the retry queue
// or incrementing dropped on the way out.
func (w *Worker) process(ctx context.Context, item queue.WorkItem) {
	log := logging.Entry("worker").WithField("worker_id", w.ID).
		WithField("resource", item.Resource).WithField("id", item.ID)

	// S1 — fetch SourceDoc by id.
	sourceDoc, err := w.Deps.Source.Get(ctx, item.ID)
	if isNotFound(err) {
		return // absent: discard item silently
	}
	if err != nil {
		w.Deps.Stats.Exceptions.Inc()
		logStoreError(log, "ARCHBR-S1", err, "fetch source document failed")
		w.retry(item, false)
		return
	}

	// S2 — mirror into PublicArchive if absent or stale.
	if err := w.mirror(ctx, sourceDoc); err != nil {
		w.Deps.Stats.Exceptions.Inc()
		logStoreError(log, "ARCHBR-S2", err, "mirror to public archive failed")
		w.retry(item, false)
		return
	}

	// S3 — acquire a client for the dump fetch.
	handle, ok := w.Deps.Clients.Acquire()
	if !ok {
		time.Sleep(w.Deps.Config.WorkerSleep)
		w.retry(item, false)
		return
	}

	// S4 — fetch the authoritative dump.
	dump, err := handle.Client.GetResourceDump(ctx, item.Resource, item.ID)
	switch {
	case isNotFoundUpstream(err):
		w.Deps.Clients.ApplyOtherError(handle)
		w.Deps.Stats.NotFound.Inc()
		return // terminal for the item, no retry
	case isRateLimited(err):
		w.Deps.Clients.ApplyRateLimited(handle)
		w.retry(item, true)
		return
	case err != nil:
		w.Deps.Clients.ApplyOtherError(handle)
		w.Deps.Stats.Exceptions.Inc()
		logging.MessageID(log, "ARCHBR-S4").WithError(err).Warn("fetch dump failed")
		w.retry(item, false)
		return
	}
	w.Deps.Clients.ApplySuccess(handle)

	// S5 — seal and write to the secret store (absent-only write).
	sealed, err := w.Deps.Seal(dump)
	if err != nil {
		w.Deps.Stats.Exceptions.Inc()
		logging.MessageID(log, "ARCHBR-S5").WithError(err).Error("sealing failed")
		w.retry(item, false)
		return
	}
	if err := w.Deps.Secret.Put(ctx, item.ID, sealed); err != nil {
		w.Deps.Stats.Exceptions.Inc()
		logStoreError(log, "ARCHBR-S5", err, "secret store write failed")
		w.retry(item, false)
		return
	}
	w.Deps.Stats.DumpedToSecret.Inc()

	// S6 — acquire a client for the dump delete.
	handle, ok = w.Deps.Clients.Acquire()
	if !ok {
		time.Sleep(w.Deps.Config.WorkerSleep)
		w.retry(item, false)
		return
	}

	// S7 — delete the upstream dump.
	err = handle.Client.DeleteResourceDump(ctx, item.Resource, item.ID)
	switch {
	case isNotFoundUpstream(err):
		w.Deps.Clients.ApplyOtherError(handle)
	case isRateLimited(err):
		w.Deps.Clients.ApplyRateLimited(handle)
		w.retry(item, true)
		return
	case err != nil:
		w.Deps.Clients.ApplyOtherError(handle)
		w.Deps.Stats.Exceptions.Inc()
		logging.MessageID(log, "ARCHBR-S7").WithError(err).Warn("delete dump failed")
		w.retry(item, false)
		return
	default:
		w.Deps.Clients.ApplySuccess(handle)
	}

	// S8 — tombstone the source document.
	if err := w.Deps.Source.Delete(ctx, item.ID, sourceDoc.Rev); err != nil {
		w.Deps.Stats.Exceptions.Inc()
		logStoreError(log, "ARCHBR-S8", err, "tombstone write failed")
		w.retry(item, false)
		return
	}
	w.Deps.Stats.Archived.Inc()
}

// mirror implements S2: put the source document into the public archive
// when absent or stale, taking rev from the archived copy it has just read.
// A failed put (including a revision conflict) is returned to the caller,
// so the retried attempt reads the archive again.
func (w *Worker) mirror(ctx context.Context, sourceDoc store.SourceDoc) error {
	archived, err := w.Deps.Public.Get(ctx, sourceDoc.ID)
	switch {
	case isNotFound(err):
		if _, err := w.Deps.Public.Put(ctx, sourceDoc.ID, sourceDoc.Body); err != nil {
			return err
		}
		w.Deps.Stats.MovedToPublic.Inc()
		return nil
	case err != nil:
		return err
	case archived.DateModified.Before(sourceDoc.DateModified):
		body, err := withRev(sourceDoc.Body, archived.Rev)
		if err != nil {
			return err
		}
		if _, err := w.Deps.Public.Put(ctx, sourceDoc.ID, body); err != nil {
			return err
		}
		w.Deps.Stats.MovedToPublic.Inc()
		return nil
	default:
		return nil // already current, skip mirror
	}
}

func withRev(body json.RawMessage, rev string) (json.RawMessage, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["_rev"] = rev
	return json.Marshal(fields)
}

// retry implements §4.6's retry policy: non-429 failures double the
// timeout and increment retries_count; 429 failures leave both unchanged.
// Exceeding retries_count_max drops the item instead of requeuing it.
func (w *Worker) retry(item queue.WorkItem, rateLimited bool) {
	if !rateLimited {
		if item.Timeout <= 0 {
			item.Timeout = w.Deps.Config.RetryDefaultTimeout
		} else {
			item.Timeout *= 2
		}
		item.RetriesCount++
	}

	if item.RetriesCount > w.Deps.Config.RetriesCountMax {
		w.Deps.Stats.Dropped.Inc()
		logging.MessageID(logging.Entry("worker"), "ARCHBR-DROP").
			WithField("resource", item.Resource).WithField("id", item.ID).
			Error("item dropped after exceeding max retries")
		return
	}

	w.Deps.Stats.Retried.Inc()
	w.Deps.Retry.PushAfter(item, item.Timeout)
}

func isNotFound(err error) bool {
	var couchErr *db.CouchDBError
	return errors.As(err, &couchErr) && couchErr.IsNotFound()
}

// logStoreError logs a store-step failure, escalating to Error when the
// cause is an authorization failure (misconfigured credential, not a
// transient condition the scheduled retry will clear) instead of the
// usual Warn.
func logStoreError(log *logrus.Entry, messageID string, err error, msg string) {
	entry := logging.MessageID(log, messageID).WithError(err)
	if isUnauthorized(err) {
		entry.Error(msg)
		return
	}
	entry.Warn(msg)
}
