package clientpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprocurement/archivarius-bridge/upstream"
)

func testConfig() Config {
	return Config{
		Upstream:               upstream.Config{BaseURL: "http://example.invalid", UserAgent: "ArchivariusBridge"},
		IncStep:                100 * time.Millisecond,
		DecStep:                20 * time.Millisecond,
		DropThreshold:          200 * time.Millisecond,
		CreationInitialBackoff: time.Millisecond,
	}
}

func TestRefillToCreatesHandles(t *testing.T) {
	p := New(testConfig(), "bridge-id")
	require.NoError(t, p.RefillTo(context.Background(), 3))
	assert.Equal(t, 3, p.Size())
}

func TestAcquireOnEmptyPoolReturnsFalse(t *testing.T) {
	p := New(testConfig(), "bridge-id")
	_, ok := p.Acquire()
	assert.False(t, ok)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(testConfig(), "bridge-id")
	require.NoError(t, p.RefillTo(context.Background(), 1))

	h, ok := p.Acquire()
	require.True(t, ok)
	assert.Equal(t, 0, p.Size())

	p.Release(h)
	assert.Equal(t, 1, p.Size())
}

func TestApplySuccessDecrementsFloorsAtZero(t *testing.T) {
	p := New(testConfig(), "bridge-id")
	h := &Handle{RequestInterval: 10 * time.Millisecond}
	p.ApplySuccess(h)
	assert.Equal(t, time.Duration(0), h.RequestInterval)
	assert.Equal(t, 1, p.Size())
}

func TestApplyRateLimitedBelowThresholdIncrements(t *testing.T) {
	p := New(testConfig(), "bridge-id")
	require.NoError(t, p.RefillTo(context.Background(), 1))
	h, _ := p.Acquire()
	h.RequestInterval = 50 * time.Millisecond

	p.ApplyRateLimited(h)
	assert.Equal(t, 150*time.Millisecond, h.RequestInterval)
}

func TestApplyRateLimitedAboveThresholdResetsAndClearsCookies(t *testing.T) {
	p := New(testConfig(), "bridge-id")
	require.NoError(t, p.RefillTo(context.Background(), 1))
	h, _ := p.Acquire()
	h.RequestInterval = 250 * time.Millisecond
	jarBefore := h.Client

	p.ApplyRateLimited(h)
	assert.Equal(t, time.Duration(0), h.RequestInterval)
	assert.Same(t, jarBefore, h.Client, "handle keeps the same client, only its cookies reset")
}

func TestReleaseAfterDelaysReadmission(t *testing.T) {
	p := New(testConfig(), "bridge-id")
	h := &Handle{}
	p.ReleaseAfter(h, 20*time.Millisecond)

	assert.Equal(t, 0, p.Size())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, p.Size())
}
