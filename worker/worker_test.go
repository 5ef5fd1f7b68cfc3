package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprocurement/archivarius-bridge/clientpool"
	"github.com/openprocurement/archivarius-bridge/db"
	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/stats"
	"github.com/openprocurement/archivarius-bridge/store"
	"github.com/openprocurement/archivarius-bridge/upstream"
)

type fakeSource struct {
	docs    map[string]store.SourceDoc
	deleted map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{docs: map[string]store.SourceDoc{}, deleted: map[string]bool{}}
}

func (f *fakeSource) ScanFinalized(ctx context.Context, resource string, startKey interface{}, pageSize int) ([]store.FeedRow, interface{}, error) {
	return nil, nil, nil
}

func (f *fakeSource) Get(ctx context.Context, id string) (store.SourceDoc, error) {
	doc, ok := f.docs[id]
	if !ok {
		return store.SourceDoc{}, &db.CouchDBError{StatusCode: 404}
	}
	return doc, nil
}

func (f *fakeSource) GetRevision(ctx context.Context, id string) (string, error) {
	return f.docs[id].Rev, nil
}

func (f *fakeSource) Delete(ctx context.Context, id, rev string) error {
	f.deleted[id] = true
	return nil
}

type fakePublic struct {
	docs map[string]store.SourceDoc
}

func newFakePublic() *fakePublic { return &fakePublic{docs: map[string]store.SourceDoc{}} }

func (f *fakePublic) Get(ctx context.Context, id string) (store.SourceDoc, error) {
	doc, ok := f.docs[id]
	if !ok {
		return store.SourceDoc{}, &db.CouchDBError{StatusCode: 404}
	}
	return doc, nil
}

func (f *fakePublic) Put(ctx context.Context, id string, body json.RawMessage) (string, error) {
	f.docs[id] = store.SourceDoc{ID: id, Rev: "1-mirrored", Body: body}
	return "1-mirrored", nil
}

type fakeSecret struct {
	sealed map[string][]byte
}

func newFakeSecret() *fakeSecret { return &fakeSecret{sealed: map[string][]byte{}} }

func (f *fakeSecret) Put(ctx context.Context, id string, sealed []byte) error {
	f.sealed[id] = sealed
	return nil
}

func newTestDeps(t *testing.T, srv *httptest.Server) (Deps, *fakeSource, *fakePublic, *fakeSecret) {
	source := newFakeSource()
	public := newFakePublic()
	secret := newFakeSecret()

	pool := clientpool.New(clientpool.Config{
		Upstream: upstream.Config{BaseURL: srv.URL, UserAgent: "ArchivariusBridge"},
		IncStep:  100 * time.Millisecond,
		DecStep:  20 * time.Millisecond,
	}, "test-bridge")
	require.NoError(t, pool.RefillTo(context.Background(), 1))

	return Deps{
		Source:  source,
		Public:  public,
		Secret:  secret,
		Clients: pool,
		Primary: queue.New(10),
		Retry:   queue.New(10),
		Stats:   stats.New(prometheus.NewRegistry()),
		Seal:    func(p []byte) ([]byte, error) { return append([]byte("sealed:"), p...), nil },
		Config: Config{
			RetryDefaultTimeout: 3 * time.Second,
			RetriesCountMax:     10,
			QueueTimeout:        time.Second,
			WorkerSleep:         10 * time.Millisecond,
		},
	}, source, public, secret
}

func TestHappyPathArchivesAndTombstones(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"data":{"secret":"D"}}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	deps, source, public, secret := newTestDeps(t, srv)
	source.docs["U1"] = store.SourceDoc{ID: "U1", Rev: "1-a", Body: []byte(`{"dateModified":"2024-01-01T00:00:00Z"}`)}

	w := &Worker{ID: 1, Queue: deps.Retry, Deps: deps}
	w.process(context.Background(), queue.WorkItem{ID: "U1", Resource: "tenders"})

	assert.Contains(t, public.docs, "U1")
	assert.Contains(t, secret.sealed, "U1")
	assert.True(t, source.deleted["U1"])

	snap := deps.Stats.Snapshot()
	assert.Equal(t, float64(1), snap.MovedToPublic)
	assert.Equal(t, float64(1), snap.DumpedToSecret)
	assert.Equal(t, float64(1), snap.Archived)
}

func TestNotFoundUpstreamIsTerminalNoRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	deps, source, _, _ := newTestDeps(t, srv)
	source.docs["U1"] = store.SourceDoc{ID: "U1", Rev: "1-a", Body: []byte(`{"dateModified":"2024-01-01T00:00:00Z"}`)}

	w := &Worker{ID: 1, Queue: deps.Retry, Deps: deps}
	w.process(context.Background(), queue.WorkItem{ID: "U1", Resource: "tenders"})

	snap := deps.Stats.Snapshot()
	assert.Equal(t, float64(1), snap.NotFound)
	assert.Equal(t, float64(0), snap.Dropped)
	assert.Equal(t, float64(0), snap.Archived)
	assert.Equal(t, 0, deps.Retry.Len())
}

func TestMissingSourceDocIsDiscardedSilently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	deps, _, _, _ := newTestDeps(t, srv)

	w := &Worker{ID: 1, Queue: deps.Retry, Deps: deps}
	w.process(context.Background(), queue.WorkItem{ID: "missing", Resource: "tenders"})

	snap := deps.Stats.Snapshot()
	assert.Equal(t, float64(0), snap.Exceptions)
	assert.Equal(t, 0, deps.Retry.Len())
}

func TestRetryDropsAfterMaxRetries(t *testing.T) {
	deps, _, _, _ := newTestDeps(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	deps.Config.RetriesCountMax = 1

	w := &Worker{ID: 1, Queue: deps.Retry, Deps: deps}

	item := queue.WorkItem{ID: "U1", Resource: "tenders", RetriesCount: 0}
	w.retry(item, false)
	assert.Equal(t, float64(0), deps.Stats.Snapshot().Dropped)

	item.RetriesCount = 1
	w.retry(item, false)
	assert.Equal(t, float64(1), deps.Stats.Snapshot().Dropped)
}

func TestRateLimitedRetryDoesNotGrowTimeoutOrRetries(t *testing.T) {
	deps, _, _, _ := newTestDeps(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	w := &Worker{ID: 1, Queue: deps.Retry, Deps: deps}
	item := queue.WorkItem{ID: "U1", Resource: "tenders", RetriesCount: 3, Timeout: 20 * time.Millisecond}
	w.retry(item, true)

	assert.Equal(t, float64(1), deps.Stats.Snapshot().Retried)

	requeued, ok := deps.Retry.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, requeued.Timeout)
	assert.Equal(t, 3, requeued.RetriesCount)
}
