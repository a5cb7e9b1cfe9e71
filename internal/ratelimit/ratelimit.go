package ratelimit

import (
	"sync"
	"time"
)

// window tracks one client's recent requests
type window struct {
	minute []time.Time
	hour   []time.Time
	day    []time.Time
	last   time.Time
}

// RateLimiter enforces sliding-window request limits per client key
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	requestsPerDay    int
	enabled           bool

	clients map[string]*window
	now     func() time.Time
	mu      sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given limits. A zero
// limit disables that window.
func NewRateLimiter(requestsPerMinute, requestsPerHour, requestsPerDay int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		requestsPerDay:    requestsPerDay,
		enabled:           enabled,
		clients:           make(map[string]*window),
		now:               time.Now,
	}
}

// AllowRequest checks if a request from key is allowed and records it
// Returns true if allowed, false if rate limit exceeded
func (rl *RateLimiter) AllowRequest(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok {
		w = &window{}
		rl.clients[key] = w
	}
	w.cleanup(now)
	w.last = now

	// Check limits
	if rl.requestsPerMinute > 0 && len(w.minute) >= rl.requestsPerMinute {
		return false
	}
	if rl.requestsPerHour > 0 && len(w.hour) >= rl.requestsPerHour {
		return false
	}
	if rl.requestsPerDay > 0 && len(w.day) >= rl.requestsPerDay {
		return false
	}

	// Record the request
	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
	w.day = append(w.day, now)

	return true
}

// cleanup removes expired entries from the time windows
func (w *window) cleanup(now time.Time) {
	w.minute = filterTimes(w.minute, now.Add(-1*time.Minute))
	w.hour = filterTimes(w.hour, now.Add(-1*time.Hour))
	w.day = filterTimes(w.day, now.Add(-24*time.Hour))
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// Sweep forgets clients idle for a full day
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-24 * time.Hour)
	removed := 0
	for key, w := range rl.clients {
		if !w.last.After(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// GetStats returns current rate limiter statistics for key
func (rl *RateLimiter) GetStats(key string) Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[key]
	if !ok {
		w = &window{}
	}
	w.cleanup(rl.now())

	return Stats{
		Enabled:             true,
		Clients:             len(rl.clients),
		RequestsLastMinute:  len(w.minute),
		RequestsLastHour:    len(w.hour),
		RequestsLastDay:     len(w.day),
		LimitPerMinute:      rl.requestsPerMinute,
		LimitPerHour:        rl.requestsPerHour,
		LimitPerDay:         rl.requestsPerDay,
		RemainingThisMinute: max(0, rl.requestsPerMinute-len(w.minute)),
		RemainingThisHour:   max(0, rl.requestsPerHour-len(w.hour)),
		RemainingThisDay:    max(0, rl.requestsPerDay-len(w.day)),
	}
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled             bool `json:"enabled"`
	Clients             int  `json:"clients"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	RequestsLastDay     int  `json:"requests_last_day"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	LimitPerDay         int  `json:"limit_per_day"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
	RemainingThisDay    int  `json:"remaining_this_day"`
}

// Reset clears all tracked requests (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.clients = make(map[string]*window)
}
