package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	kivik "github.com/go-kivik/kivik/v4"
)

// CreateDesignDoc creates or updates a CouchDB design document containing views.
// The bridge uses this to install one by_dateModified view per resource, the
// view a Feeder pages through to find archival candidates.
//
// Design Document Structure:
//
//	Design documents must have IDs starting with "_design/":
//	- Valid: "_design/tenders"
//	- Invalid: "tenders" (will be auto-prefixed)
//
// Parameters:
//   - designDoc: DesignDoc structure containing ID, language, and views
//
// Returns:
//   - error: Creation, update, or validation errors
//
// Update Behavior:
//
//	If design document exists:
//	- Retrieves current revision automatically
//	- Updates with new view definitions
//	- Writes only _id, _rev, language and views; any other fields of the
//	  existing design document are not kept
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
//
//	err := service.CreateDesignDoc(designDoc)
//	if err != nil {
//	    log.Printf("Failed to create design doc: %v", err)
//	}
func (c *CouchDBService) CreateDesignDoc(designDoc DesignDoc) error {
	ctx := context.Background()

	// Ensure ID starts with _design/
	if !strings.HasPrefix(designDoc.ID, "_design/") {
		designDoc.ID = "_design/" + designDoc.ID
	}

	// Set default language if not specified
	if designDoc.Language == "" {
		designDoc.Language = "javascript"
	}

	// Check if design document already exists to get revision
	existingRow := c.database.Get(ctx, designDoc.ID)
	if existingRow.Err() == nil {
		// Design doc exists, get its revision
		var existing map[string]interface{}
		if err := existingRow.ScanDoc(&existing); err == nil {
			if rev, ok := existing["_rev"].(string); ok {
				designDoc.Rev = rev
			}
		}
	}

	// Convert views to the format expected by CouchDB
	viewsMap := make(map[string]interface{})
	for name, view := range designDoc.Views {
		viewDef := map[string]string{
			"map": view.Map,
		}
		if view.Reduce != "" {
			viewDef["reduce"] = view.Reduce
		}
		viewsMap[name] = viewDef
	}

	// Create the design document structure
	docData := map[string]interface{}{
		"_id":      designDoc.ID,
		"language": designDoc.Language,
		"views":    viewsMap,
	}

	if designDoc.Rev != "" {
		docData["_rev"] = designDoc.Rev
	}

	// Save the design document
	_, err := c.database.Put(ctx, designDoc.ID, docData)
	if err != nil {
		if kivik.HTTPStatus(err) != 0 {
			return &CouchDBError{
				StatusCode: kivik.HTTPStatus(err),
				ErrorType:  "create_design_doc_failed",
				Reason:     err.Error(),
			}
		}
		return fmt.Errorf("failed to create design document: %w", err)
	}

	return nil
}

// QueryView queries a CouchDB MapReduce view with configurable options.
// A Feeder calls this (via store.CouchDBStore.ScanFinalized) to page
// through one resource's by_dateModified view, a page at a time.
//
// Parameters:
//   - designName: Design document name (without "_design/" prefix)
//   - viewName: View name within the design document
//   - opts: ViewOptions for configuring the query
//
// Returns:
//   - *ViewResult: Contains rows with keys, values, and optional documents
//   - error: Query execution or parsing errors
//
// View Query Options:
//   - Key: Query for exact key match
//   - StartKey/EndKey: Query for key range
//   - IncludeDocs: Include full document content in results
//   - Limit: Maximum number of results to return
//   - Skip: Number of results to skip for pagination
//   - Descending: Reverse sort order
//   - Reduce: Execute reduce function (if view has one)
//   - Group: Group reduce results by key
//
// Example Usage:
//
//	// Page through a resource's by_dateModified view
//	opts := ViewOptions{
//	    StartKey: lastSeenKey,
//	    Limit:    1000,
//	}
//	result, err := service.QueryView("tenders", "by_dateModified", opts)
//	if err != nil {
//	    log.Printf("Query failed: %v", err)
//	    return
//	}
//
//	fmt.Printf("Found %d candidate rows\n", len(result.Rows))
//	for _, row := range result.Rows {
//	    fmt.Printf("Row: %s -> %v\n", row.ID, row.Key)
//	}
func (c *CouchDBService) QueryView(designName, viewName string, opts ViewOptions) (*ViewResult, error) {
	ctx := context.Background()

	// Remove _design/ prefix if provided
	designName = strings.TrimPrefix(designName, "_design/")

	// Build query parameters
	params := make(map[string]interface{})

	if opts.Key != nil {
		params["key"] = opts.Key
	}
	if opts.StartKey != nil {
		params["startkey"] = opts.StartKey
	}
	if opts.EndKey != nil {
		params["endkey"] = opts.EndKey
	}
	if opts.IncludeDocs {
		params["include_docs"] = true
	}
	if opts.Limit > 0 {
		params["limit"] = opts.Limit
	}
	if opts.Skip > 0 {
		params["skip"] = opts.Skip
	}
	if opts.Descending {
		params["descending"] = true
	}
	if opts.Reduce {
		params["reduce"] = true
	} else if opts.Key != nil || opts.StartKey != nil || opts.EndKey != nil {
		// Explicitly disable reduce for key queries if not requested
		params["reduce"] = false
	}
	if opts.Group {
		params["group"] = true
	}
	if opts.GroupLevel > 0 {
		params["group_level"] = opts.GroupLevel
	}

	// Query the view
	rows := c.database.Query(ctx, "_design/"+designName, viewName, kivik.Params(params))
	defer rows.Close()

	result := &ViewResult{
		Rows: []ViewRow{},
	}

	// Note: TotalRows and Offset may not be available in all Kivik versions
	// They will remain 0 if not available

	// Iterate through results
	for rows.Next() {
		row := ViewRow{}

		// Get document ID (not available for reduced views)
		id, err := rows.ID()
		if err == nil {
			row.ID = id
		}

		// Get key - Key() returns (interface{}, error)
		key, err := rows.Key()
		if err == nil {
			row.Key = key
		}

		// Get value
		var value interface{}
		if err := rows.ScanValue(&value); err == nil {
			row.Value = value
		}

		// Get document if include_docs was specified
		if opts.IncludeDocs {
			var doc json.RawMessage
			if err := rows.ScanDoc(&doc); err == nil {
				row.Doc = doc
			}
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		if kivik.HTTPStatus(err) != 0 {
			return nil, &CouchDBError{
				StatusCode: kivik.HTTPStatus(err),
				ErrorType:  "query_view_failed",
				Reason:     err.Error(),
			}
		}
		return nil, fmt.Errorf("error querying view: %w", err)
	}

	return result, nil
}
