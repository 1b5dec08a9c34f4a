package handlers

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts attempts per client IP within a fixed window. The window
// is reset lazily on the first call after it elapses.
type RateLimiter struct {
	attempts    map[string]int
	limit       int
	mutex       sync.Mutex
	window      time.Duration
	windowStart time.Time
	now         func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]int),
		limit:       limit,
		window:      window,
		windowStart: time.Now(),
		now:         time.Now,
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if now := rl.now(); now.Sub(rl.windowStart) >= rl.window {
		rl.attempts = make(map[string]int)
		rl.windowStart = now
	}

	if rl.attempts[ip] >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

// clientIP is the peer address. Only when the peer is a trusted proxy is
// X-Forwarded-For consulted, and then the nearest hop that is not itself a
// trusted proxy wins; entries further left are client-supplied.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !isTrustedProxy(peer, trusted) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !isTrustedProxy(hop, trusted) {
			return hop
		}
	}
	return peer
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
