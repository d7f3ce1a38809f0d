// Package health exposes Kubernetes-style liveness and readiness endpoints
// backed by periodically evaluated probes.
//
// Probe state is damped to avoid flapping: a probe must fail failAfter times
// in a row before it is reported as failing, and a single subsequent pass
// clears it. All probes are evaluated by one background loop; each evaluation
// is bounded by the probe's own timeout.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc evaluates one dependency or process property. A nil return means
// the probe passes.
type CheckFunc func(ctx context.Context) error

const (
	failAfter    = 3
	recoverAfter = 1
)

type probeKind int

const (
	liveness probeKind = iota
	readiness
)

// probe is one registered check plus its damped state. The streak counters
// are touched only by the evaluation loop; failing and lastErr are shared
// with the HTTP handlers and use atomics.
type probe struct {
	name    string
	kind    probeKind
	timeout time.Duration
	fn      CheckFunc

	failing atomic.Bool
	lastErr atomic.Pointer[error]

	streakBad  int
	streakGood int
}

func (p *probe) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.streakGood = 0
		p.streakBad++
		if p.streakBad >= failAfter {
			p.failing.Store(true)
		}
		return
	}
	p.streakBad = 0
	p.streakGood++
	if p.streakGood >= recoverAfter {
		p.failing.Store(false)
	}
}

func (p *probe) failure() string {
	if !p.failing.Load() {
		return ""
	}
	if ep := p.lastErr.Load(); ep != nil && *ep != nil {
		return (*ep).Error()
	}
	return "probe failing"
}

// Health is a registry of liveness and readiness probes with HTTP endpoints
// for both. The zero readiness state is "not ready"; call SetReady(true) once
// startup completes and SetReady(false) when draining.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	stop   context.CancelFunc
}

func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe that reflects whether the process itself
// is functional (goroutine leaks, GC stalls). Failing liveness is grounds for
// a restart.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.register(name, liveness, timeout, fn)
}

// AddReadinessCheck registers a probe that reflects whether the service can
// usefully take traffic (database reachable, cache reachable).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.register(name, readiness, timeout, fn)
}

func (h *Health) register(name string, kind probeKind, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, &probe{
		name:    name,
		kind:    kind,
		timeout: timeout,
		fn:      fn,
	})
}

// Start launches the evaluation loop. Every probe is evaluated once
// immediately, then again each interval. Register all probes before calling
// Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	go func() {
		evaluate := func() {
			for _, p := range probes {
				p.observe(ctx)
			}
		}
		evaluate()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evaluate()
			}
		}
	}()
}

// Stop halts the evaluation loop. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady flips the manual readiness gate. Readiness probes are reported
// regardless, but the service is only ready when the gate is open AND every
// readiness probe passes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service would answer /readyz with 200.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, p := range h.snapshot(readiness) {
		if p.failing.Load() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(kind probeKind) []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*probe, 0, len(h.probes))
	for _, p := range h.probes {
		if p.kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// report is the body of both endpoints: {"status":"pass"} on success,
// {"status":"fail","failures":{name:reason}} otherwise.
type report struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// LiveEndpoint serves the liveness probe, usually mounted at /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.failures(liveness))
}

// ReadyEndpoint serves the readiness probe, usually mounted at /readyz.
// A closed manual gate shows up as the "service" failure.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(readiness)
	if !h.ready.Load() {
		failures["service"] = "not marked ready"
	}
	writeReport(w, failures)
}

func (h *Health) failures(kind probeKind) map[string]string {
	failures := make(map[string]string)
	for _, p := range h.snapshot(kind) {
		if reason := p.failure(); reason != "" {
			failures[p.name] = reason
		}
	}
	return failures
}

func writeReport(w http.ResponseWriter, failures map[string]string) {
	rep := report{Status: "pass"}
	code := http.StatusOK
	if len(failures) > 0 {
		rep = report{Status: "fail", Failures: failures}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
