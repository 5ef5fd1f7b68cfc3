// Package clientpool maintains the bridge's bounded supply of upstream
// client handles with adaptive per-client backoff, grounded on the
// teacher's worker.Pool/Worker lifecycle shape (a managed slice of handles
// behind a mutex, refilled on demand) adapted from a pool of goroutines to
// a pool of rate-limited HTTP client handles.
package clientpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openprocurement/archivarius-bridge/logging"
	"github.com/openprocurement/archivarius-bridge/upstream"
)

// Handle wraps one upstream.Client with the adaptive request_interval the
// worker state machine adjusts after every call.
type Handle struct {
	Client          *upstream.Client
	RequestInterval time.Duration
}

// Config configures Pool creation and the adaptive backoff steps applied
// by callers per spec.md §4.3.
type Config struct {
	Upstream               upstream.Config
	IncStep                time.Duration
	DecStep                time.Duration
	DropThreshold          time.Duration
	CreationInitialBackoff time.Duration
}

// DefaultCreationBackoff is the starting backoff for client creation
// retries, matching the original's create_api_client doubling from 0.1s.
const DefaultCreationBackoff = 100 * time.Millisecond

// Pool is a thread-safe collection of Handles. It has no upper size limit:
// RefillTo only tops it up to a minimum, and Release always re-admits.
type Pool struct {
	mu       sync.Mutex
	handles  []*Handle
	cfg      Config
	bridgeID string
}

// New creates an empty Pool; call RefillTo to populate it.
func New(cfg Config, bridgeID string) *Pool {
	if cfg.CreationInitialBackoff <= 0 {
		cfg.CreationInitialBackoff = DefaultCreationBackoff
	}
	return &Pool{cfg: cfg, bridgeID: bridgeID}
}

// Acquire returns a handle without blocking, or ok=false if the pool is
// currently empty.
func (p *Pool) Acquire() (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.handles) == 0 {
		return nil, false
	}
	h := p.handles[len(p.handles)-1]
	p.handles = p.handles[:len(p.handles)-1]
	return h, true
}

// Release returns handle to the pool immediately.
func (p *Pool) Release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles = append(p.handles, h)
}

// ReleaseAfter schedules handle's re-admission after delay without
// blocking the caller, the fire-and-forget timer spec.md §4.3 calls for.
func (p *Pool) ReleaseAfter(h *Handle, delay time.Duration) {
	if delay <= 0 {
		p.Release(h)
		return
	}
	time.AfterFunc(delay, func() {
		p.Release(h)
	})
}

// Size reports how many handles are currently available for Acquire.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// RefillTo creates new handles until at least min are present, retrying
// handle creation with doubling backoff starting at
// cfg.CreationInitialBackoff on transient failures, per the original's
// create_api_client retry loop.
func (p *Pool) RefillTo(ctx context.Context, min int) error {
	for p.Size() < min {
		h, err := p.createWithBackoff(ctx)
		if err != nil {
			return fmt.Errorf("clientpool: refill: %w", err)
		}
		p.Release(h)
	}
	return nil
}

func (p *Pool) createWithBackoff(ctx context.Context) (*Handle, error) {
	backoff := p.cfg.CreationInitialBackoff
	for {
		h, err := p.create()
		if err == nil {
			return h, nil
		}

		logging.Entry("clientpool").WithError(err).Warn("client creation failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (p *Pool) create() (*Handle, error) {
	clientUUID := uuid.New().String()
	cfg := p.cfg.Upstream
	cfg.UserAgent = fmt.Sprintf("%s/%s/%s", cfg.UserAgent, p.bridgeID, clientUUID)

	client, err := upstream.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Handle{Client: client}, nil
}

// ApplySuccess applies the §4.3 success rule: request_interval decreases,
// floored at zero.
func (p *Pool) ApplySuccess(h *Handle) {
	h.RequestInterval -= p.cfg.DecStep
	if h.RequestInterval < 0 {
		h.RequestInterval = 0
	}
	p.Release(h)
}

// ApplyRateLimited applies the §4.3 rate-limit rule: above the drop
// threshold, cookies are cleared and the interval resets to zero;
// otherwise the interval grows by the increment step. The handle is
// returned to the pool via ReleaseAfter(request_interval).
func (p *Pool) ApplyRateLimited(h *Handle) {
	if h.RequestInterval > p.cfg.DropThreshold {
		h.Client.ClearCookies()
		h.RequestInterval = 0
	} else {
		h.RequestInterval += p.cfg.IncStep
	}
	p.ReleaseAfter(h, h.RequestInterval)
}

// ApplyOtherError applies the §4.3 rule for any other upstream error:
// release immediately, interval unchanged.
func (p *Pool) ApplyOtherError(h *Handle) {
	p.Release(h)
}
