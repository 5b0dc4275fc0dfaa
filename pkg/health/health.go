// Package health serves liveness and readiness probes.
//
// Checks run when a probe is requested, each bounded by its own timeout.
// Results are cached for a short window so that aggressive probing does not
// turn into a database ping per request.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	mu      sync.Mutex
	checked time.Time
	lastErr error
}

func (c *check) result(ctx context.Context, now time.Time, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checked.IsZero() && now.Sub(c.checked) < ttl {
		return c.lastErr
	}
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.lastErr = c.fn(checkCtx)
	c.checked = now
	return c.lastErr
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
}

// Option configures Health.
type Option func(h *Health)

// WithCacheTTL sets how long a check result is reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(h *Health) { h.ttl = ttl }
}

// New creates Health in the not-ready state.
func New(opts ...Option) *Health {
	h := &Health{
		ttl: time.Second,
		now: time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// AddLivenessCheck registers a check that must pass for the process to be
// considered alive.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, &check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check that must pass before traffic is
// accepted, e.g. database connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, &check{name: name, timeout: timeout, fn: fn})
}

// SetReady sets the manual readiness flag. The server marks itself ready
// after startup and unready at the beginning of shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Ready reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) Ready(ctx context.Context) bool {
	return h.ready.Load() && len(h.failures(ctx, h.snapshot(false))) == 0
}

func (h *Health) snapshot(live bool) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.readiness
	if live {
		src = h.liveness
	}
	return append([]*check(nil), src...)
}

func (h *Health) failures(ctx context.Context, checks []*check) map[string]string {
	failed := make(map[string]string)
	now := h.now()
	for _, c := range checks {
		if err := c.result(ctx, now, h.ttl); err != nil {
			failed[c.name] = err.Error()
		}
	}
	return failed
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, h.failures(r.Context(), h.snapshot(true)))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	failed := h.failures(r.Context(), h.snapshot(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

// writeStatus responds 200 {"status":"ok"} or 503 with the failed checks.
func writeStatus(w http.ResponseWriter, failed map[string]string) {
	var e jx.Encoder
	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")

		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
