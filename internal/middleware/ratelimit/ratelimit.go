package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	window  = time.Minute
	idleTTL = 10 * time.Minute
)

// Limiter admits up to RequestsPerMinute requests per client in fixed
// one-minute windows.
type Limiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*counter

	done     chan struct{}
	stopOnce sync.Once
	rejected prometheus.Counter
}

type counter struct {
	start time.Time // beginning of the current window
	seen  time.Time
	n     int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Registerer receives the rejected-requests counter when set.
	Registerer prometheus.Registerer
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter returns a limiter whose idle clients are forgotten every
// CleanupInterval until Stop is called.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		limit:   cfg.RequestsPerMinute,
		now:     time.Now,
		clients: make(map[string]*counter),
		done:    make(chan struct{}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fintrack",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(rl.rejected)
	}
	go rl.sweep(cfg.CleanupInterval)
	return rl
}

// Allow counts a request from clientIP and reports whether it fits the
// current window.
func (rl *Limiter) Allow(clientIP string) bool {
	ok, _ := rl.take(clientIP)
	return ok
}

// take is Allow plus the time left in the client's window.
func (rl *Limiter) take(clientIP string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[clientIP]
	if !ok || now.Sub(c.start) >= window {
		c = &counter{start: now}
		rl.clients[clientIP] = c
	}
	c.seen = now
	left := window - now.Sub(c.start)
	if c.n >= rl.limit {
		return false, left
	}
	c.n++
	return true, left
}

func (rl *Limiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.done:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleTTL)
	for ip, c := range rl.clients {
		if c.seen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// ActiveClients returns the number of clients currently tracked.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Requests for which skip returns true are not counted. onLimit, when
// set, writes the rejection body.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, skip func(*http.Request) bool, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			ok, left := rl.take(extractIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			rl.rejected.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(max(int(left.Seconds()), 1)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
