// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// window holds the request times of one client inside the current window.
type window struct {
	mu   sync.Mutex
	hits []time.Time
}

// RateLimiter is a per-client sliding-window limiter. Generation is the
// expensive path, so it is mounted on the submission route only.
type RateLimiter struct {
	mu         sync.RWMutex
	clients    map[string]*window
	limit      int
	period     time.Duration
	trustProxy bool
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter allows limit requests per period and per client. When
// trustProxy is set the client is taken from X-Forwarded-For or X-Real-IP.
// A background goroutine drops idle clients until Stop is called.
func NewRateLimiter(limit int, period time.Duration, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		clients:    make(map[string]*window),
		limit:      limit,
		period:     period,
		trustProxy: trustProxy,
		stopCh:     make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(max(period, time.Minute))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()

	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// allow records a hit for key. When the limit is reached it returns false
// and the time until the oldest hit leaves the window.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.RLock()
	win, ok := rl.clients[key]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		if win, ok = rl.clients[key]; !ok {
			win = &window{}
			rl.clients[key] = win
		}
		rl.mu.Unlock()
	}

	now := time.Now()
	cutoff := now.Add(-rl.period)

	win.mu.Lock()
	defer win.mu.Unlock()

	kept := win.hits[:0]
	for _, ts := range win.hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	win.hits = kept

	if len(win.hits) >= rl.limit {
		return false, win.hits[0].Add(rl.period).Sub(now)
	}
	win.hits = append(win.hits, now)
	return true, 0
}

// cleanup removes clients without a hit inside the window.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.period)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, win := range rl.clients {
		win.mu.Lock()
		idle := len(win.hits) == 0 || !win.hits[len(win.hits)-1].After(cutoff)
		win.mu.Unlock()
		if idle {
			delete(rl.clients, key)
		}
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.allow(rl.clientIP(r))
		if !ok {
			secs := int(wait.Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			writeFailure(w, http.StatusTooManyRequests, "Too many requests. Please try again in a moment.", "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP identifies the caller. Forwarding headers are only honoured
// behind a trusted proxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	if rl.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
