// Package store defines the three document-store roles the bridge pipeline
// moves records through — the live SourceStore, the PublicArchive, and the
// SecretStore — and provides CouchDB- and S3-backed implementations of each.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/openprocurement/archivarius-bridge/db"
)

// ErrContentExists names the "target key already holds content" condition.
// Neither SecretStore implementation in this package returns it: both
// report a pre-existing key as a successful Put, since the secret archive
// is append-only and never overwrites.
var ErrContentExists = errors.New("store: content already exists at key")

// Record is a document as it flows through the pipeline: an identifier, its
// source revision, the resource collection it belongs to, and its raw JSON
// body as returned by the upstream dump endpoint.
type Record struct {
	ID       string
	Rev      string
	Resource string
	Body     json.RawMessage
}

// FeedRow is one entry from a SourceStore view scan: enough to enqueue work
// without paying for the full document body up front.
type FeedRow struct {
	ID           string
	Resource     string
	DateModified time.Time
}

// SourceDoc is the live record a Worker fetches in S1: enough to mirror it
// into PublicArchive (S2) and to build its tombstone delete (S8).
type SourceDoc struct {
	ID           string
	Rev          string
	DateModified time.Time
	Body         json.RawMessage
}

// SourceStore is the live document store the Feeder scans and the Worker
// deletes from once a record has been safely archived.
type SourceStore interface {
	// ScanFinalized returns up to pageSize rows from resource's
	// by_dateModified view, starting at the given key for pagination.
	ScanFinalized(ctx context.Context, resource string, startKey interface{}, pageSize int) (rows []FeedRow, nextKey interface{}, err error)

	// Get fetches the full live document by id, used at S1.
	Get(ctx context.Context, id string) (SourceDoc, error)

	// GetRevision returns the current _rev for id, used to build the
	// tombstone delete. Returns a *db.CouchDBError with StatusCode 404 if
	// the document is already gone.
	GetRevision(ctx context.Context, id string) (rev string, err error)

	// Delete tombstones the document: {_id, _rev, _deleted: true}.
	Delete(ctx context.Context, id, rev string) error
}

// PublicArchive receives an unencrypted copy of every archived record.
type PublicArchive interface {
	// Get fetches the mirrored document by id. Implementations return a
	// *db.CouchDBError with StatusCode 404 when absent.
	Get(ctx context.Context, id string) (SourceDoc, error)

	Put(ctx context.Context, id string, body json.RawMessage) (rev string, err error)
}

// SecretStore receives the sealed (encrypted) copy of every archived
// record, keyed by id. Implementations never overwrite an existing key:
// Put is idempotent and a pre-existing key is reported as success, never as
// ErrContentExists bubbling up to the caller as a failure.
type SecretStore interface {
	Put(ctx context.Context, id string, sealed []byte) error
}

// ViewEnsurer creates or updates the by_dateModified design document views
// a Feeder depends on. CouchDBStore implements it with the map function in
// views.go, and the bridge calls it for every resource before starting the
// Feeders.
type ViewEnsurer interface {
	EnsureView(ctx context.Context, resource string) error
}
