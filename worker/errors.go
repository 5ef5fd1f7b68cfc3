package worker

import (
	"errors"

	"github.com/openprocurement/archivarius-bridge/db"
	"github.com/openprocurement/archivarius-bridge/upstream"
)

func isNotFoundUpstream(err error) bool {
	var nf *upstream.NotFoundError
	return errors.As(err, &nf)
}

func isRateLimited(err error) bool {
	var rl *upstream.RateLimitedError
	return errors.As(err, &rl)
}

// isUnauthorized reports whether err is a CouchDB authorization failure
// (401/403), which the worker logs at a higher severity than other store
// errors since it usually means a misconfigured credential rather than a
// transient condition the scheduled retry will clear.
func isUnauthorized(err error) bool {
	var couchErr *db.CouchDBError
	return errors.As(err, &couchErr) && couchErr.IsUnauthorized()
}
