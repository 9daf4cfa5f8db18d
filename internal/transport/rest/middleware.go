package rest

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

type RequestObserver interface {
	ObserveRequest(route, method string, code int, elapsed time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records every routed request under its path template.
func MetricsMiddleware(obs RequestObserver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			obs.ObserveRequest(route, r.Method, rec.status, time.Since(started))
		})
	}
}

// TimeoutMiddleware bounds requests that arrive without a deadline.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

const defaultLimiterIdle = 10 * time.Minute

type RateLimiterConfig struct {
	PerMinute int
	Burst     int
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers name the client. Headers from any other peer are ignored.
	TrustedProxies []netip.Prefix
	// Idle is how long an unused bucket is kept. Zero means ten minutes.
	Idle time.Duration
}

type clientBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter hands out one token bucket per client IP and drops buckets
// that have been idle for longer than the configured period.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	trusted   []netip.Prefix
	now       func() time.Time
	log       *slog.Logger
}

// NewRateLimiter allows cfg.PerMinute requests per client with cfg.Burst.
func NewRateLimiter(cfg RateLimiterConfig, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Idle <= 0 {
		cfg.Idle = defaultLimiterIdle
	}
	limit := rate.Inf
	if cfg.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.PerMinute))
	}
	l := &RateLimiter{
		clients: make(map[string]*clientBucket),
		limit:   limit,
		burst:   cfg.Burst,
		idle:    cfg.Idle,
		trusted: cfg.TrustedProxies,
		now:     time.Now,
		log:     log.With(slog.String("component", "http.ratelimit")),
	}
	l.lastSweep = l.now()
	return l
}

func (l *RateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for key, c := range l.clients {
			if now.Sub(c.seen) >= l.idle {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.seen = now
	return c.lim
}

// tracked reports how many client buckets are held.
func (l *RateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *RateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := l.clientIP(r)
		if !l.limiter(ip).Allow() {
			l.log.WarnContext(r.Context(), "rate limit exceeded", slog.String("ip", ip))
			RespondError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests, try again later")
			return
		}
		next(w, r)
	}
}

// clientIP is the peer address unless the peer is a trusted proxy. Behind a
// trusted proxy it is the right-most X-Forwarded-For hop that is not itself
// trusted, then X-Real-IP.
func (l *RateLimiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !l.isTrusted(peer) {
		return host
	}

	if fwd := r.Header.Values("X-Forwarded-For"); len(fwd) > 0 {
		hops := strings.Split(strings.Join(fwd, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !l.isTrusted(hop) {
				return hop.String()
			}
		}
	}
	if xr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xr.String()
	}
	return host
}

func (l *RateLimiter) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
