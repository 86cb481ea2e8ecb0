// Package health serves the /livez and /readyz probes of the API server.
//
// Checks are polled in the background, all of them concurrently on every
// tick, and the endpoints report the last known state. A check turns
// unhealthy after failureThreshold consecutive failures and recovers on the
// first success.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

const failureThreshold = 3

// CheckFunc reports the health of one dependency.
type CheckFunc func(ctx context.Context) error

// Kind tells which probe a check belongs to.
type Kind int

const (
	// Liveness checks failing means the process should be restarted.
	Liveness Kind = iota
	// Readiness checks failing means the process should get no traffic.
	Readiness
)

type check struct {
	name    string
	kind    Kind
	timeout time.Duration
	fn      CheckFunc

	mu      sync.Mutex
	fails   int
	healthy bool
	lastErr error
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.fn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err == nil {
		c.fails = 0
		c.healthy = true
		return
	}
	c.fails++
	if c.fails >= failureThreshold {
		c.healthy = false
	}
}

// state returns "" when healthy, else the failure reason.
func (c *check) state() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.healthy:
		return ""
	case c.lastErr != nil:
		return c.lastErr.Error()
	default:
		return "unhealthy"
	}
}

// Health tracks the checks of one process and the manual ready flag.
type Health struct {
	ready atomic.Bool

	mu     sync.Mutex
	checks []*check
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a liveness check. Register before Start.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, Liveness, timeout, fn)
}

// AddReadinessCheck registers a readiness check. Register before Start.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, Readiness, timeout, fn)
}

func (h *Health) add(name string, kind Kind, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, &check{
		name:    name,
		kind:    kind,
		timeout: timeout,
		fn:      fn,
		healthy: true,
	})
}

// Start polls every check now and then once per interval until Stop or
// ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		cancel()
		return
	}
	h.cancel, h.done = cancel, done
	checks := append([]*check(nil), h.checks...)
	h.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			poll(ctx, checks)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func poll(ctx context.Context, checks []*check) {
	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			c.run(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// Stop stops polling and waits for the running round to finish.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SetReady sets the manual ready flag. It is cleared during shutdown so
// load balancers drain the instance.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the ready flag is set and every readiness check
// passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.Lock()
	checks := append([]*check(nil), h.checks...)
	h.mu.Unlock()

	failed := make(map[string]string)
	for _, c := range checks {
		if c.kind != kind {
			continue
		}
		if reason := c.state(); reason != "" {
			failed[c.name] = reason
		}
	}
	return failed
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := h.failures(Readiness)
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

// writeStatus answers 200 {"status":"ok"} or 503 {"status":"unhealthy",
// "checks":{name: reason}}.
func writeStatus(w http.ResponseWriter, failed map[string]string) {
	var e jx.Encoder
	code := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failed) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		code = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range slices.Sorted(maps.Keys(failed)) {
					e.Field(name, func(e *jx.Encoder) { e.Str(failed[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
