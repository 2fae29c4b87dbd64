package cache

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Limit is the call budget of one source: at most Max calls per Window.
// A non-positive Max means unlimited.
type Limit struct {
	Max    int
	Window time.Duration
}

// Window is a snapshot of one source's current rate-limit window.
type Window struct {
	Source  string    `json:"source"`
	Count   int       `json:"count"`
	Max     int       `json:"max"`
	ResetAt time.Time `json:"reset_at"`
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter keeps one fixed window per source. Calls are counted only
// when allowed; a denied call never waits.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	windows map[string]*window
	now     func() time.Time
}

// NewRateLimiter creates a limiter. Sources missing from limits are unlimited.
// now may be nil.
func NewRateLimiter(limits map[string]Limit, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	copied := make(map[string]Limit, len(limits))
	for source, l := range limits {
		copied[source] = l
	}
	return &RateLimiter{
		limits:  copied,
		windows: make(map[string]*window),
		now:     now,
	}
}

// Allow reports whether source may make one more call in its current window
// and, if so, counts that call.
func (r *RateLimiter) Allow(source string) bool {
	return r.AllowN(source, 1)
}

// AllowN reports whether source may make n more calls in its current window.
// Either all n are counted or none are. n <= 0 is always allowed.
func (r *RateLimiter) AllowN(source string, n int) bool {
	if n <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	limit, ok := r.limits[source]
	if !ok || limit.Max <= 0 {
		return true
	}

	w := r.current(source, limit)
	if w.count+n > limit.Max {
		return false
	}
	w.count += n
	return true
}

// Remaining returns how many calls source may still make in its current
// window. Unlimited sources return math.MaxInt.
func (r *RateLimiter) Remaining(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit, ok := r.limits[source]
	if !ok || limit.Max <= 0 {
		return math.MaxInt
	}

	w := r.current(source, limit)
	if w.count >= limit.Max {
		return 0
	}
	return limit.Max - w.count
}

// current returns the live window for source, opening a fresh one once the
// previous has expired. r.mu must be held.
func (r *RateLimiter) current(source string, limit Limit) *window {
	now := r.now()
	w, ok := r.windows[source]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(limit.Window)}
		r.windows[source] = w
	}
	return w
}

// Windows returns the active windows sorted by source name.
func (r *RateLimiter) Windows() []Window {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Window, 0, len(r.windows))
	for source, w := range r.windows {
		out = append(out, Window{
			Source:  source,
			Count:   w.count,
			Max:     r.limits[source].Max,
			ResetAt: w.resetAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Reset clears every window.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[string]*window)
}
