package indextest

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// throttle answers 429 once a client address has spent its token bucket.
type throttle struct {
	mu    sync.Mutex
	ips   map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func newThrottle(limit rate.Limit, burst int) *throttle {
	return &throttle{
		ips:   make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

// getLimiter returns the limiter for the given IP
func (t *throttle) getLimiter(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, exists := t.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(t.limit, t.burst)
		t.ips[ip] = limiter
	}
	return limiter
}

func (t *throttle) allow(r *http.Request) bool {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return t.getLimiter(ip).Allow()
}

// Throttle limits every client address to limit requests per second after
// an initial burst.
func (s *Server) Throttle(limit rate.Limit, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle = newThrottle(limit, burst)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		t := s.throttle
		s.mu.RUnlock()

		if t != nil && !t.allow(r) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
