package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openprocurement/archivarius-bridge/db"
)

// CouchDBStore is a CouchDB-backed SourceStore, PublicArchive, and (via
// NewCouchDBSecretStore) SecretStore implementation, built on db.CouchDBService
// the way the teacher's flow-process service was built on the same client.
type CouchDBStore struct {
	svc *db.CouchDBService
}

// NewSourceStore opens (and creates if missing) the live document database
// a Feeder scans and a Worker deletes from.
func NewSourceStore(cfg db.CouchDBConfig) (*CouchDBStore, error) {
	svc, err := db.NewCouchDBServiceFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open source database: %w", err)
	}
	return &CouchDBStore{svc: svc}, nil
}

// NewPublicArchive opens (and creates if missing) the database that
// receives an unencrypted copy of every archived record.
func NewPublicArchive(cfg db.CouchDBConfig) (*CouchDBStore, error) {
	svc, err := db.NewCouchDBServiceFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open public archive database: %w", err)
	}
	return &CouchDBStore{svc: svc}, nil
}

// Close releases the underlying CouchDB connection.
func (s *CouchDBStore) Close() error { return s.svc.Close() }

// ScanFinalized queries <resource>'s by_dateModified view, returning up to
// pageSize rows and an opaque nextKey to resume from. A nil nextKey means
// the scan reached the end of the view.
func (s *CouchDBStore) ScanFinalized(ctx context.Context, resource string, startKey interface{}, pageSize int) ([]FeedRow, interface{}, error) {
	opts := db.ViewOptions{
		IncludeDocs: false,
		Limit:       pageSize + 1,
	}
	if startKey != nil {
		opts.StartKey = startKey
	}

	result, err := s.svc.QueryView(resource, "by_dateModified", opts)
	if err != nil {
		return nil, nil, fmt.Errorf("store: scan %s: %w", resource, err)
	}

	rows := result.Rows
	var next interface{}
	if len(rows) > pageSize {
		next = rows[pageSize].Key
		rows = rows[:pageSize]
	}

	out := make([]FeedRow, 0, len(rows))
	for _, r := range rows {
		modified, _ := parseDateModified(r.Key)
		out = append(out, FeedRow{ID: r.ID, Resource: resource, DateModified: modified})
	}
	return out, next, nil
}

// Get fetches the full live document by id for the Worker's S1 step. The
// document's dateModified field is parsed from its body the same way a
// view key is, since both are produced by the same upstream resource
// schema.
func (s *CouchDBStore) Get(ctx context.Context, id string) (SourceDoc, error) {
	body, rev, err := s.svc.GetRawDocument(ctx, id)
	if err != nil {
		return SourceDoc{}, err
	}

	var fields struct {
		DateModified time.Time `json:"dateModified"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return SourceDoc{}, fmt.Errorf("store: parse dateModified for %s: %w", id, err)
	}

	return SourceDoc{ID: id, Rev: rev, DateModified: fields.DateModified, Body: body}, nil
}

func parseDateModified(key interface{}) (time.Time, error) {
	s, ok := key.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("store: view key is not a timestamp string")
	}
	return time.Parse(time.RFC3339, s)
}

// GetRevision returns the current _rev for id.
func (s *CouchDBStore) GetRevision(ctx context.Context, id string) (string, error) {
	_, rev, err := s.svc.GetRawDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return rev, nil
}

// Delete tombstones the document at id/rev.
func (s *CouchDBStore) Delete(ctx context.Context, id, rev string) error {
	return s.svc.DeleteDocument(ctx, id, rev)
}

// Put saves body at id, creating or updating as needed, and returns the new
// revision. This is PublicArchive.Put; the CouchDB SecretStore variant
// writes through its own db.CouchDBService instead.
func (s *CouchDBStore) Put(ctx context.Context, id string, body json.RawMessage) (string, error) {
	return s.svc.PutRawDocument(ctx, id, body)
}

// CouchDBSecretStore is the CouchDB-backed SecretStore variant: a second
// database (conventionally the archive database name plus "_secret") that
// receives sealed payloads and is never updated once written.
type CouchDBSecretStore struct {
	svc *db.CouchDBService
}

// NewCouchDBSecretStore opens the secret CouchDB database. Callers
// typically derive its name from the public archive's as dbName+"_secret".
func NewCouchDBSecretStore(cfg db.CouchDBConfig) (*CouchDBSecretStore, error) {
	svc, err := db.NewCouchDBServiceFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open secret database: %w", err)
	}
	return &CouchDBSecretStore{svc: svc}, nil
}

// Close releases the underlying CouchDB connection.
func (s *CouchDBSecretStore) Close() error { return s.svc.Close() }

// Put writes sealed at id only if the document does not already exist.
// An existing document is treated as success, matching the blob store's
// "content-exists" semantics and the secret archive's write-once contract.
func (s *CouchDBSecretStore) Put(ctx context.Context, id string, sealed []byte) error {
	if _, _, err := s.svc.GetRawDocument(ctx, id); err == nil {
		return nil
	} else {
		var couchErr *db.CouchDBError
		if !errors.As(err, &couchErr) || !couchErr.IsNotFound() {
			return fmt.Errorf("store: check existing secret document %s: %w", id, err)
		}
	}

	body, err := json.Marshal(sealedDocument{ID: id, Sealed: sealed})
	if err != nil {
		return fmt.Errorf("store: marshal sealed document %s: %w", id, err)
	}

	if _, err := s.svc.PutRawDocument(ctx, id, body); err != nil {
		var couchErr *db.CouchDBError
		if errors.As(err, &couchErr) && couchErr.IsConflict() {
			// Another worker wrote it first; the write-once contract is satisfied.
			return nil
		}
		return fmt.Errorf("store: put secret document %s: %w", id, err)
	}
	return nil
}

type sealedDocument struct {
	ID     string `json:"_id"`
	Sealed []byte `json:"sealed"` // base64-encoded by encoding/json's []byte marshaling
}
