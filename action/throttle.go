package action

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ActionClass names the throttle bucket an action belongs to; MOVE and CHAT
// are unthrottled (no entry here), matching §4.4's documented limits.
type ActionClass string

const (
	ClassPrimitive        ActionClass = "primitive"
	ClassBlueprintStart    ActionClass = "blueprint_start"
	ClassBlueprintContinue ActionClass = "blueprint_continue"
	ClassRelocate          ActionClass = "relocate"
)

// limits is the documented per-class token bucket capacity: rate.Limit is
// tokens/sec, burst is the bucket size.
var limits = map[ActionClass]struct {
	rate  rate.Limit
	burst int
}{
	ClassPrimitive:         {rate: rate.Limit(12.0 / 10.0), burst: 12},
	ClassBlueprintStart:    {rate: rate.Limit(2.0 / 20.0), burst: 2},
	ClassBlueprintContinue: {rate: rate.Limit(6.0 / 30.0), burst: 6},
	ClassRelocate:          {rate: rate.Limit(1.0 / 20.0), burst: 1},
}

// Throttle holds one rate.Limiter per live (actionClass, agentId) pair,
// matching the corpus's idiomatic choice for this shape of limit
// (golang.org/x/time/rate) rather than a hand-rolled counter. Evict removes
// an agent's limiters; the serve loop's liveness sweep does not call it, so
// limiters of agents that go offline stay in the map.
type Throttle struct {
	mu       sync.Mutex
	limiters map[ActionClass]map[string]*rate.Limiter
}

func NewThrottle() *Throttle {
	return &Throttle{limiters: make(map[ActionClass]map[string]*rate.Limiter)}
}

func (t *Throttle) limiterFor(class ActionClass, agentID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	byAgent, ok := t.limiters[class]
	if !ok {
		byAgent = make(map[string]*rate.Limiter)
		t.limiters[class] = byAgent
	}
	lim, ok := byAgent[agentID]
	if !ok {
		cfg := limits[class]
		lim = rate.NewLimiter(cfg.rate, cfg.burst)
		byAgent[agentID] = lim
	}
	return lim
}

// Allow reserves one token for (class, agentID); on refusal it returns the
// exact retry-after duration the throttle/rate-limited error requires.
func (t *Throttle) Allow(class ActionClass, agentID string) (bool, time.Duration) {
	lim := t.limiterFor(class, agentID)
	r := lim.Reserve()
	if !r.OK() {
		return false, 0
	}
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// Evict drops every limiter for an agent that has gone offline, so the map
// doesn't grow unbounded across the lifetime of a long-running server.
func (t *Throttle) Evict(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, byAgent := range t.limiters {
		delete(byAgent, agentID)
	}
}

func throttleErr(delay time.Duration) *Error {
	return withDetails(newRetryableErr(KindThrottleRateLimited, "rate limit exceeded"), map[string]any{
		"retryAfterMs": delay.Milliseconds(),
	})
}
