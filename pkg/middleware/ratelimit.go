package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit gives every client address a token bucket of perSecond tokens
// and the given burst. Health probes are never limited. A non-positive
// perSecond disables limiting.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if perSecond <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		var (
			mu        sync.Mutex
			clients   = make(map[string]*clientLimiter)
			lastSweep = time.Now()
		)
		allow := func(key string) bool {
			mu.Lock()
			defer mu.Unlock()
			now := time.Now()
			if now.Sub(lastSweep) > limiterIdle {
				for k, c := range clients {
					if now.Sub(c.lastSeen) > limiterIdle {
						delete(clients, k)
					}
				}
				lastSweep = now
			}
			c, ok := clients[key]
			if !ok {
				c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
				clients[key] = c
			}
			c.lastSeen = now
			return c.limiter.Allow()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			if !allow(clientKey(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded","kind":"rate_limited"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
