package frontier

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostGate enforces per-host politeness: a minimum interval between request
// starts and a cap on concurrent in-flight requests, independently per host.
//
// Design decision: We build on x/time/rate with one limiter per host (burst
// 1) rather than tracking next-allowed timestamps by hand; the limiter deals
// with monotonic time and lets us ask "how long until this host is ready"
// without consuming the slot.
type HostGate struct {
	mu          sync.Mutex
	delay       time.Duration
	maxInFlight int
	limiters    map[string]*rate.Limiter
	inFlight    map[string]int
}

// NewHostGate creates a HostGate with the given minimum inter-request delay
// and per-host in-flight cap. A zero delay disables rate limiting but keeps
// the in-flight cap.
func NewHostGate(delay time.Duration, maxInFlight int) *HostGate {
	return &HostGate{
		delay:       delay,
		maxInFlight: maxInFlight,
		limiters:    make(map[string]*rate.Limiter),
		inFlight:    make(map[string]int),
	}
}

func (g *HostGate) limiter(host string) *rate.Limiter {
	l, ok := g.limiters[host]
	if !ok {
		limit := rate.Inf
		if g.delay > 0 {
			limit = rate.Every(g.delay)
		}
		l = rate.NewLimiter(limit, 1)
		g.limiters[host] = l
	}
	return l
}

// TryClaim attempts to claim a fetch slot for host. On success it consumes
// the politeness token and counts the request as in-flight. On failure it
// returns how long until the host could be ready, or ok=false with wait=0
// when the host is blocked on its in-flight cap (no time estimate possible).
func (g *HostGate) TryClaim(host string) (claimed bool, wait time.Duration, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight[host] >= g.maxInFlight {
		return false, 0, false
	}

	now := time.Now()
	res := g.limiter(host).ReserveN(now, 1)
	if !res.OK() {
		return false, 0, false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		// Not ready yet; hand the token back so another caller (or this one,
		// later) can take it when it matures.
		res.CancelAt(now)
		return false, delay, true
	}

	g.inFlight[host]++
	return true, 0, true
}

// Release returns the in-flight slot for host. Must be called exactly once
// per successful TryClaim.
func (g *HostGate) Release(host string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[host] > 0 {
		g.inFlight[host]--
	}
}
