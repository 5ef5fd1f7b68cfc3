package db

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// CouchDBConfig provides generic CouchDB connection configuration.
//
// Configuration Options:
//   - URL: CouchDB server URL (e.g., "http://localhost:5984")
//   - Database: Target database name for operations
//   - Username: Authentication username for CouchDB access
//   - Password: Authentication password for secure connections
//   - Timeout: Request timeout in milliseconds; NewCouchDBServiceFromConfig
//     does not read it, so no timeout is applied
//   - CreateIfMissing: Automatically create database if it doesn't exist
//
// Example Usage:
//
//	config := CouchDBConfig{
//	    URL:             "https://couchdb.example.com:6984",
//	    Database:        "archive_db",
//	    Username:        "admin",
//	    Password:        "secure-password",
//	    Timeout:         30000,
//	    CreateIfMissing: true,
//	}
type CouchDBConfig struct {
	URL             string // CouchDB server URL
	Database        string // Database name
	Username        string // Authentication username
	Password        string // Authentication password
	Timeout         int    // Request timeout in milliseconds
	CreateIfMissing bool   // Create database if it doesn't exist
}

// CouchDBError represents a CouchDB-specific error with HTTP status information.
// This error type provides structured error handling with helper methods for
// common CouchDB error conditions like conflicts, not found, and authorization.
//
// Error Fields:
//   - StatusCode: HTTP status code from CouchDB response
//   - ErrorType: Error type identifier (e.g., "conflict", "not_found")
//   - Reason: Human-readable error description
//
// Common Error Types:
//   - 404 Not Found: Document or database doesn't exist
//   - 409 Conflict: Document revision conflict (MVCC)
//   - 401 Unauthorized: Authentication required or failed
//   - 403 Forbidden: Insufficient permissions
//   - 412 Precondition Failed: Missing or invalid revision
//
// Example Usage:
//
//	_, _, err := service.GetRawDocument(ctx, "missing-doc")
//	if err != nil {
//	    if couchErr, ok := err.(*CouchDBError); ok {
//	        if couchErr.IsNotFound() {
//	            fmt.Println("document not found")
//	        } else if couchErr.IsConflict() {
//	            fmt.Println("revision conflict - retry needed")
//	        }
//	    }
//	}
type CouchDBError struct {
	StatusCode int    `json:"status_code"` // HTTP status code
	ErrorType  string `json:"error"`       // Error type identifier
	Reason     string `json:"reason"`      // Human-readable error description
}

// Error implements the error interface for CouchDBError.
// Returns a formatted error message containing status code, error type, and reason.
func (e *CouchDBError) Error() string {
	return fmt.Sprintf("CouchDB error (status %d): %s - %s", e.StatusCode, e.ErrorType, e.Reason)
}

// IsConflict checks if the error is a document conflict error (HTTP 409).
// Conflicts occur when attempting to update a document with an outdated
// revision, indicating that another process has modified the document since
// it was retrieved. The worker's S2/S8 steps treat this as retryable: S2
// recomputes the rev from a fresh PublicArchive.Get before writing again.
//
// Returns:
//   - bool: true if this is a revision conflict error, false otherwise
func (e *CouchDBError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsNotFound checks if the error is a not found error (HTTP 404).
// Not found errors occur when attempting to access a document or database
// that doesn't exist in CouchDB. The worker's S1 step treats this as a
// silent discard rather than a retry: an absent SourceDoc means another
// worker (or an operator) has already removed it.
//
// Returns:
//   - bool: true if this is a not found error, false otherwise
func (e *CouchDBError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if the error is an authorization error (HTTP 401 or
// 403). Authorization errors occur when authentication fails or the
// authenticated user lacks sufficient permissions for the requested
// operation. The worker state machine logs these at a higher severity than
// other store errors, since they typically indicate a misconfigured
// credential rather than a transient condition that a retry will clear.
//
// Returns:
//   - bool: true if this is an authorization error, false otherwise
func (e *CouchDBError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ViewOptions configures parameters for querying CouchDB MapReduce views.
// This structure provides comprehensive control over view query behavior
// including key ranges, document inclusion, pagination, sorting, and reduce
// function usage. A Feeder builds one ViewOptions per page when it scans a
// resource's by_dateModified view.
//
// Query Parameters:
//   - Key: Exact key match for view results
//   - StartKey: Starting key for range queries (inclusive)
//   - EndKey: Ending key for range queries (inclusive)
//   - IncludeDocs: Include full document content with view results
//   - Limit: Maximum number of results to return
//   - Skip: Number of results to skip for pagination
//   - Descending: Reverse result order
//   - Group: Group results by key when using reduce
//   - GroupLevel: Group by key array prefix (for array keys)
//   - Reduce: Execute reduce function (if defined in view)
//
// Example Usage:
//
//	// First page of a resource's by_dateModified view
//	opts := ViewOptions{Limit: 1000}
//	result, _ := service.QueryView("tenders", "by_dateModified", opts)
//
//	// Resume from the key the previous page left off at
//	opts = ViewOptions{StartKey: lastSeenKey, Limit: 1000}
type ViewOptions struct {
	Key         interface{} // Exact key to query
	StartKey    interface{} // Range query start key (inclusive)
	EndKey      interface{} // Range query end key (inclusive)
	IncludeDocs bool        // Include full documents in results
	Limit       int         // Maximum results to return
	Skip        int         // Number of results to skip
	Descending  bool        // Reverse sort order
	Group       bool        // Group results by key
	GroupLevel  int         // Group by key array prefix level
	Reduce      bool        // Execute reduce function
}

// ViewResult contains the results from a CouchDB view query.
// This structure provides metadata about the query results along with
// the actual row data returned from the view.
//
// Result Fields:
//   - TotalRows: Total number of rows in the view (before limit/skip)
//   - Offset: Starting offset for the returned results
//   - Rows: Array of view rows containing key/value/document data
//
// Example Usage:
//
//	result, _ := service.QueryView("tenders", "by_dateModified", opts)
//	fmt.Printf("Found %d total rows, showing %d\n", result.TotalRows, len(result.Rows))
type ViewResult struct {
	TotalRows int       `json:"total_rows"` // Total rows in view
	Offset    int       `json:"offset"`     // Starting offset
	Rows      []ViewRow `json:"rows"`       // Result rows
}

// ViewRow represents a single row from a CouchDB view query result.
// Each row contains the document ID, the emitted key and value from the
// map function, and optionally the full document content. store.CouchDBStore
// reads Row.ID and Row.Key (the dateModified timestamp) to build each
// store.FeedRow a Feeder enqueues.
//
// Row Fields:
//   - ID: Document identifier that emitted this row
//   - Key: Key emitted by the map function
//   - Value: Value emitted by the map function
//   - Doc: Full document content (if IncludeDocs=true)
type ViewRow struct {
	ID    string          `json:"id"`            // Document ID
	Key   interface{}     `json:"key"`           // Emitted key
	Value interface{}     `json:"value"`         // Emitted value
	Doc   json.RawMessage `json:"doc,omitempty"` // Full document (if IncludeDocs=true)
}

// View represents a CouchDB MapReduce view definition.
// Views enable efficient querying and aggregation of documents through
// JavaScript map and reduce functions. store.EnsureView installs exactly
// one of these per resource: by_dateModified, which emits each document
// keyed by its dateModified field.
//
// Map Function:
//
//	function(doc) {
//	    if (doc.dateModified) {
//	        emit(doc.dateModified, null);
//	    }
//	}
type View struct {
	Name   string `json:"-"`                // View name (not in JSON)
	Map    string `json:"map"`              // JavaScript map function
	Reduce string `json:"reduce,omitempty"` // JavaScript reduce function (optional)
}

// DesignDoc represents a CouchDB design document containing views.
// Design documents are special documents that contain application logic
// including MapReduce views, validation functions, and show/list functions.
// store.EnsureView builds one DesignDoc per resource, named after the
// resource itself.
//
// Design Document Structure:
//   - ID: Design document identifier (must start with "_design/")
//   - Language: Programming language for functions (default: "javascript")
//   - Views: Map of view names to view definitions
//
// Example Usage:
//
//	designDoc := DesignDoc{
//	    ID:       "_design/tenders",
//	    Language: "javascript",
//	    Views: map[string]View{
//	        "by_dateModified": {
//	            Map: `function(doc) {
//	                if (doc.dateModified) {
//	                    emit(doc.dateModified, null);
//	                }
//	            }`,
//	        },
//	    },
//	}
//	service.CreateDesignDoc(designDoc)
type DesignDoc struct {
	ID       string          `json:"_id"`            // Design document ID (must start with "_design/")
	Rev      string          `json:"_rev,omitempty"` // Document revision (for updates)
	Language string          `json:"language"`       // Programming language (typically "javascript")
	Views    map[string]View `json:"views"`          // Map of view names to definitions
}

// BulkDeleteDoc represents a document to be deleted: the shape CouchDB
// requires for a tombstone write ({_id, _rev, _deleted: true}).
type BulkDeleteDoc struct {
	ID      string `json:"_id"`      // Document ID
	Rev     string `json:"_rev"`     // Current revision
	Deleted bool   `json:"_deleted"` // Deletion flag (must be true)
}
