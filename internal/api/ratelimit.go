package api

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"bond-arena/internal/config"
)

// RateLimitConfig configures the IP-based rate limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Requests allowed per second per IP
	Burst             int           // Maximum burst size
	CleanupInterval   time.Duration // How often idle IPs are forgotten
	Proxies           *TrustedProxies
}

// DefaultRateLimitConfig is used when the router gets no limiter. Pointer
// moves arrive at mouse rate, so the budget is higher than a typical API.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 50,
	Burst:             100,
	CleanupInterval:   5 * time.Minute,
}

// RateLimitConfigFrom builds the limiter settings from the server section.
// Unparseable proxy entries are logged and ignored; config.Validate rejects
// them earlier.
func RateLimitConfigFrom(cfg config.ServerConfig) RateLimitConfig {
	out := DefaultRateLimitConfig
	if cfg.RateLimit > 0 {
		out.RequestsPerSecond = cfg.RateLimit
	}
	if cfg.RateBurst > 0 {
		out.Burst = cfg.RateBurst
	}
	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Printf("⚠️ Ignoring trusted proxies: %v", err)
		proxies = &TrustedProxies{}
	}
	out.Proxies = proxies
	return out
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// IPRateLimiter keeps one token bucket per client IP for HTTP requests.
type IPRateLimiter struct {
	buckets sync.Map // map[string]*ipBucket
	config  RateLimitConfig
	stop    chan struct{}
	once    sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// LimiterStats is served on /api/stats.
type LimiterStats struct {
	Allowed    uint64 `json:"allowed"`
	Rejected   uint64 `json:"rejected"`
	TrackedIPs int    `json:"trackedIps"`
}

// NewIPRateLimiter creates the limiter and its idle-IP sweeper.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{config: cfg, stop: make(chan struct{})}
	go rl.sweepLoop()
	return rl
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// ClientIP resolves the key used for r.
func (rl *IPRateLimiter) ClientIP(r *http.Request) string {
	return rl.config.Proxies.ClientIP(r)
}

func (rl *IPRateLimiter) bucket(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := rl.buckets.Load(ip); ok {
		b := v.(*ipBucket)
		b.lastSeen.Store(now)
		return b.limiter
	}

	b := &ipBucket{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
	b.lastSeen.Store(now)
	v, _ := rl.buckets.LoadOrStore(ip, b)
	return v.(*ipBucket).limiter
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(time.Now().Add(-2 * rl.config.CleanupInterval))
		}
	}
}

// sweep forgets IPs idle since before cutoff.
func (rl *IPRateLimiter) sweep(cutoff time.Time) {
	limit := cutoff.UnixNano()
	rl.buckets.Range(func(key, value any) bool {
		if value.(*ipBucket).lastSeen.Load() < limit {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// Allow takes a token for ip.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.bucket(ip).Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Middleware answers 429 once a client's bucket is empty.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.ClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns the limiter counters.
func (rl *IPRateLimiter) Stats() LimiterStats {
	tracked := 0
	rl.buckets.Range(func(_, _ any) bool {
		tracked++
		return true
	})
	return LimiterStats{Allowed: rl.allowed.Load(), Rejected: rl.rejected.Load(), TrackedIPs: tracked}
}

// connLimiter caps concurrent WebSocket connections per IP.
type connLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	maxPerIP int
	rejected atomic.Uint64
}

// ConnStats describes per-IP connection usage.
type ConnStats struct {
	IPs      int    `json:"ips"`
	Busiest  int    `json:"busiest"` // connections held by the busiest IP
	MaxPerIP int    `json:"maxPerIp"`
	Rejected uint64 `json:"rejected"`
}

func newConnLimiter(maxPerIP int) *connLimiter {
	return &connLimiter{open: make(map[string]int), maxPerIP: maxPerIP}
}

// acquire reserves a slot for ip and returns the count it now holds.
func (cl *connLimiter) acquire(ip string) (int, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	n := cl.open[ip]
	if n >= cl.maxPerIP {
		cl.rejected.Add(1)
		return n, false
	}
	cl.open[ip] = n + 1
	return n + 1, true
}

func (cl *connLimiter) release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if n := cl.open[ip]; n > 1 {
		cl.open[ip] = n - 1
	} else {
		delete(cl.open, ip)
	}
}

func (cl *connLimiter) stats() ConnStats {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	s := ConnStats{IPs: len(cl.open), MaxPerIP: cl.maxPerIP, Rejected: cl.rejected.Load()}
	for _, n := range cl.open {
		s.Busiest = max(s.Busiest, n)
	}
	return s
}

// AllowedOrigins lists origins accepted for CORS and WebSocket upgrades in
// addition to any localhost port.
var AllowedOrigins = []string{
	"http://localhost",
	"http://127.0.0.1",
}

// IsAllowedOrigin checks if an origin is in the allowed list
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	// Any local port: the arena is served to a browser on the same machine
	if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
		return true
	}

	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
