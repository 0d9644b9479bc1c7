package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RateLimiter tracks per-client request rates and daily quotas.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage is the usage snapshot for one client address.
type ClientUsage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	DataToday          int64

	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
	lastSeen    time.Time
}

// NewRateLimiter creates a rate limiter. A zero limit is not enforced.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits or rejects one request of dataSize bytes from
// clientID. Rejected requests are not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usageFor(clientID, now)
	rl.rollWindows(usage, now)

	if err := rl.checkRates(usage, now); err != nil {
		return err
	}
	if err := rl.checkQuotas(usage, dataSize, now); err != nil {
		return err
	}

	usage.RequestsLastMinute++
	usage.RequestsLastHour++
	usage.RequestsToday++
	usage.DataToday += dataSize
	usage.lastSeen = now
	return nil
}

// rollWindows resets the fixed windows that have elapsed.
func (rl *RateLimiter) rollWindows(usage *ClientUsage, now time.Time) {
	if now.Sub(usage.minuteStart) >= time.Minute {
		usage.RequestsLastMinute = 0
		usage.minuteStart = now
	}
	if now.Sub(usage.hourStart) >= time.Hour {
		usage.RequestsLastHour = 0
		usage.hourStart = now
	}
	if !sameDay(now, usage.dayStart) {
		usage.RequestsToday = 0
		usage.DataToday = 0
		usage.dayStart = now
	}
}

func (rl *RateLimiter) checkRates(usage *ClientUsage, now time.Time) error {
	if rl.requestsPerMinute > 0 && usage.RequestsLastMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.minuteStart),
		}
	}

	if rl.requestsPerHour > 0 && usage.RequestsLastHour >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: time.Hour - now.Sub(usage.hourStart),
		}
	}

	return nil
}

func (rl *RateLimiter) checkQuotas(usage *ClientUsage, dataSize int64, now time.Time) error {
	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	if rl.maxRequestsPerDay > 0 && usage.RequestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.RequestsToday),
			Resets: resets,
		}
	}

	if rl.maxDataPerDay > 0 && usage.DataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.DataToday,
			Resets: resets,
		}
	}

	return nil
}

func (rl *RateLimiter) usageFor(clientID string, now time.Time) *ClientUsage {
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &ClientUsage{minuteStart: now, hourStart: now, dayStart: now, lastSeen: now}
		rl.clients[clientID] = usage
	}
	return usage
}

// Usage returns a copy of the current usage for clientID.
func (rl *RateLimiter) Usage(clientID string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if usage, ok := rl.clients[clientID]; ok {
		return *usage
	}
	return ClientUsage{}
}

// Prune forgets clients that have not been seen for longer than idle and
// returns how many were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, usage := range rl.clients {
		if now.Sub(usage.lastSeen) > idle {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}

// PruneEvery calls Prune on a ticker until ctx ends.
func (rl *RateLimiter) PruneEvery(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Prune(idle); n > 0 {
				slog.Debug("Pruned idle rate limit clients", "count", n)
			}
		}
	}
}
