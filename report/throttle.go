package report

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	action "github.com/goliatone/go-action"
)

// Throttle limits reports per title so a failing action in a loop does
// not flood the channel. Dropped reports are counted.
type Throttle struct {
	next  action.Reporter
	every time.Duration
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	dropped  map[string]int
}

// NewThrottle allows burst reports per title, refilling one every interval.
func NewThrottle(next action.Reporter, every time.Duration, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		next:     next,
		every:    every,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		dropped:  make(map[string]int),
	}
}

func (t *Throttle) Report(err error, title, detail string) {
	if err == nil {
		return
	}
	if !t.allow(title) {
		return
	}
	action.SafeReport(t.next, err, title, detail)
}

func (t *Throttle) allow(title string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, ok := t.limiters[title]
	if !ok {
		limit := rate.Inf
		if t.every > 0 {
			limit = rate.Every(t.every)
		}
		limiter = rate.NewLimiter(limit, t.burst)
		t.limiters[title] = limiter
	}
	if limiter.Allow() {
		return true
	}
	t.dropped[title]++
	return false
}

// Dropped returns how many reports for title were suppressed.
func (t *Throttle) Dropped(title string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped[title]
}
