package store

import (
	"fmt"

	"github.com/google/uuid"
)

// BlobKey derives the S3 object key for a secret record from its document
// id. The id is parsed as a UUID and its five canonical fields (time-low,
// time-mid, time-hi-and-version, clock-seq, node) are rendered as lowercase
// hex and joined with "/", spreading keys evenly across prefixes the way a
// flat UUID string would not.
func BlobKey(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("store: id %q is not a UUID: %w", id, err)
	}
	b := u[:]
	return fmt.Sprintf("%x/%x/%x/%x/%x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
