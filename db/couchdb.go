// Package db provides CouchDB connectivity via the Kivik driver: generic
// document CRUD, paginated view queries, and design document management.
// Higher-level archival semantics (source/public/secret roles) live in the
// store package, which is built on top of this one.
package db

import (
	"context"
	"encoding/json"
	"fmt"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb" // The CouchDB driver
)

// CouchDBService wraps a Kivik client/database pair for a single database.
// Instances are safe for concurrent use; the underlying Kivik client pools
// its own HTTP connections.
type CouchDBService struct {
	client   *kivik.Client
	database *kivik.DB
	dbName   string
}

// NewCouchDBServiceFromConfig connects to CouchDB and opens dbName, creating
// it first if CreateIfMissing is set and it does not already exist.
func NewCouchDBServiceFromConfig(config CouchDBConfig) (*CouchDBService, error) {
	client, err := kivik.New("couch", connectionURLWithAuth(config))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	ctx := context.Background()
	exists, err := client.DBExists(ctx, config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		if !config.CreateIfMissing {
			return nil, fmt.Errorf("database %s does not exist", config.Database)
		}
		if err := client.CreateDB(ctx, config.Database); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &CouchDBService{
		client:   client,
		database: client.DB(config.Database),
		dbName:   config.Database,
	}, nil
}

func connectionURLWithAuth(config CouchDBConfig) string {
	url := config.URL
	if config.Username != "" && config.Password != "" {
		if !containsAt(url) {
			scheme, rest, ok := splitScheme(url)
			if ok {
				url = fmt.Sprintf("%s://%s:%s@%s", scheme, config.Username, config.Password, rest)
			}
		}
	}
	return url
}

func containsAt(s string) bool {
	for i := range s {
		if s[i] == '@' {
			return true
		}
	}
	return false
}

func splitScheme(url string) (scheme, rest string, ok bool) {
	for i := 0; i+2 < len(url); i++ {
		if url[i] == ':' && url[i+1] == '/' && url[i+2] == '/' {
			return url[:i], url[i+3:], true
		}
	}
	return "", "", false
}

// DBName returns the database name this service is bound to.
func (c *CouchDBService) DBName() string { return c.dbName }

// GetRawDocument retrieves a document by ID as raw JSON along with its
// current revision. Returns a *CouchDBError with StatusCode 404 when the
// document does not exist.
func (c *CouchDBService) GetRawDocument(ctx context.Context, id string) (json.RawMessage, string, error) {
	row := c.database.Get(ctx, id)
	if row.Err() != nil {
		status := kivik.HTTPStatus(row.Err())
		if status == 404 {
			return nil, "", &CouchDBError{StatusCode: 404, ErrorType: "not_found", Reason: "document not found"}
		}
		return nil, "", fmt.Errorf("failed to get document %s: %w", id, row.Err())
	}

	var raw json.RawMessage
	if err := row.ScanDoc(&raw); err != nil {
		return nil, "", fmt.Errorf("failed to scan document %s: %w", id, err)
	}
	rev, _ := row.Rev()
	return raw, rev, nil
}

// PutRawDocument creates or updates a document at id with the given raw
// JSON body, returning the new revision.
func (c *CouchDBService) PutRawDocument(ctx context.Context, id string, body json.RawMessage) (string, error) {
	rev, err := c.database.Put(ctx, id, body)
	if err != nil {
		if status := kivik.HTTPStatus(err); status != 0 {
			return "", &CouchDBError{StatusCode: status, ErrorType: "put_failed", Reason: err.Error()}
		}
		return "", fmt.Errorf("failed to put document %s: %w", id, err)
	}
	return rev, nil
}

// DeleteDocument tombstones a document: {_id, _rev, _deleted: true}.
func (c *CouchDBService) DeleteDocument(ctx context.Context, id, rev string) error {
	_, err := c.database.Put(ctx, id, BulkDeleteDoc{ID: id, Rev: rev, Deleted: true})
	if err != nil {
		if status := kivik.HTTPStatus(err); status != 0 {
			return &CouchDBError{StatusCode: status, ErrorType: "delete_failed", Reason: err.Error()}
		}
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying CouchDB client connection.
func (c *CouchDBService) Close() error {
	return c.client.Close()
}
