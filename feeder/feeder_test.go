package feeder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/stats"
	"github.com/openprocurement/archivarius-bridge/store"

	"github.com/prometheus/client_golang/prometheus"
)

type pagedScanner struct {
	pages [][]store.FeedRow
	calls int
}

func (p *pagedScanner) ScanFinalized(ctx context.Context, resource string, startKey interface{}, pageSize int) ([]store.FeedRow, interface{}, error) {
	if p.calls >= len(p.pages) {
		return nil, nil, nil
	}
	rows := p.pages[p.calls]
	p.calls++
	var next interface{}
	if p.calls < len(p.pages) {
		next = p.calls
	}
	return rows, next, nil
}

func TestFeederPushesFilteredRows(t *testing.T) {
	scanner := &pagedScanner{pages: [][]store.FeedRow{
		{{ID: "a", Resource: "tenders"}, {ID: "b", Resource: "tenders"}},
		{{ID: "c", Resource: "tenders"}},
	}}

	q := queue.New(10)
	st := stats.New(prometheus.NewRegistry())

	f := &Feeder{
		Resource: "tenders",
		Scanner:  scanner,
		Filter:   func(row store.FeedRow, startTime time.Time) bool { return row.ID != "b" },
		Queue:    q,
		Stats:    st,
	}

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, float64(2), st.Snapshot().Added)
}

func TestFeederPropagatesScanError(t *testing.T) {
	f := &Feeder{
		Resource: "tenders",
		Scanner:  erroringScanner{},
		Filter:   func(row store.FeedRow, startTime time.Time) bool { return true },
		Queue:    queue.New(10),
		Stats:    stats.New(prometheus.NewRegistry()),
	}

	err := f.Run(context.Background())
	assert.Error(t, err)
}

type erroringScanner struct{}

func (erroringScanner) ScanFinalized(ctx context.Context, resource string, startKey interface{}, pageSize int) ([]store.FeedRow, interface{}, error) {
	return nil, nil, errors.New("boom")
}
