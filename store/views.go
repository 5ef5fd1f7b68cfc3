package store

import (
	"context"
	"fmt"

	"github.com/openprocurement/archivarius-bridge/db"
)

// byDateModifiedMap is the map function every per-resource view ensured by
// EnsureView installs: documents are emitted keyed by their dateModified
// field so a Feeder can page through them in modification order.
const byDateModifiedMap = `function(doc) {
  if (doc.dateModified) {
    emit(doc.dateModified, null);
  }
}`

// EnsureView creates or updates the <resource>/by_dateModified design
// document view a Feeder's ScanFinalized call depends on. CouchDBStore
// implements ViewEnsurer directly so the bridge can install the view on
// the same store the Feeder scans without a second connection.
func (s *CouchDBStore) EnsureView(ctx context.Context, resource string) error {
	err := s.svc.CreateDesignDoc(db.DesignDoc{
		ID:       "_design/" + resource,
		Language: "javascript",
		Views: map[string]db.View{
			"by_dateModified": {Map: byDateModifiedMap},
		},
	})
	if err != nil {
		return fmt.Errorf("store: ensure view for %s: %w", resource, err)
	}
	return nil
}
