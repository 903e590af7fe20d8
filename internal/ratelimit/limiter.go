// Package ratelimit throttles the admin HTTP surface per client using
// token buckets from golang.org/x/time/rate.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls the per-key token buckets.
type Config struct {
	RequestsPerSecond int           `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	Enabled           bool          `json:"enabled"`
	MaxKeys           int           `json:"max_keys,omitempty"`
	CleanupPeriod     time.Duration `json:"cleanup_period,omitempty"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string `json:"trusted_proxies,omitempty"`
}

// Validate validates the rate limiter configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if c.MaxKeys < 0 {
		return fmt.Errorf("max keys cannot be negative")
	}
	if _, err := parseNetworks(c.TrustedProxies); err != nil {
		return err
	}
	return nil
}

// Limiter keeps one token bucket per key. Buckets idle for longer than
// CleanupPeriod are dropped.
type Limiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// New creates a limiter. Zero MaxKeys and CleanupPeriod take 10000 and 5m.
func New(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxKeys == 0 {
		config.MaxKeys = 10000
	}
	if config.CleanupPeriod <= 0 {
		config.CleanupPeriod = 5 * time.Minute
	}

	return &Limiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
	}, nil
}

// Allow reports whether a request for key may proceed now.
func (rl *Limiter) Allow(key string) bool {
	if !rl.config.Enabled {
		return true
	}
	return rl.limiterFor(key).Allow()
}

// ActiveKeys returns how many buckets are tracked.
func (rl *Limiter) ActiveKeys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *Limiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastCleanup) > rl.config.CleanupPeriod {
		rl.cleanup(now)
	}

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		}
		rl.limiters[key] = entry

		if len(rl.limiters) > rl.config.MaxKeys {
			rl.cleanup(now)
		}
	}
	entry.lastUsed = now

	return entry.limiter
}

// cleanup removes buckets that haven't been used recently
func (rl *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.config.CleanupPeriod)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
	rl.lastCleanup = now
}

// HTTPMiddleware rejects requests over the limit with 429.
func HTTPMiddleware(limiter *Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r)) {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerSecond))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKey keys requests by the peer address of the connection. Forwarding
// headers are ignored; use TrustedProxyKey behind a reverse proxy.
func IPKey(r *http.Request) string {
	return remoteHost(r.RemoteAddr)
}

// TrustedProxyKey keys requests by the client address a trusted proxy
// reports. X-Forwarded-For is read only when the peer is in trusted, and its
// hops are walked from the right so a client cannot choose its own key by
// sending the header itself. With no trusted networks it behaves as IPKey.
func TrustedProxyKey(trusted []string) (func(*http.Request) string, error) {
	networks, err := parseNetworks(trusted)
	if err != nil {
		return nil, err
	}
	if len(networks) == 0 {
		return IPKey, nil
	}

	isTrusted := func(host string) bool {
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		for _, n := range networks {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := remoteHost(r.RemoteAddr)
		if !isTrusted(peer) {
			return peer
		}

		hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop) {
				return hop
			}
		}
		return peer
	}, nil
}

// KeyFunc returns the request key function for the configured proxies.
func (rl *Limiter) KeyFunc() func(*http.Request) string {
	keyFunc, err := TrustedProxyKey(rl.config.TrustedProxies)
	if err != nil {
		return IPKey
	}
	return keyFunc
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func parseNetworks(entries []string) ([]*net.IPNet, error) {
	networks := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			networks = append(networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		networks = append(networks, n)
	}
	return networks, nil
}
