package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/TecharoHQ/powhash/decaymap"
	"github.com/gaissmai/bart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sebest/xff"
	"golang.org/x/time/rate"
)

var (
	ErrBadRate   = errors.New("ratelimit: requests per second must be positive")
	ErrBadBurst  = errors.New("ratelimit: burst must be at least 1")
	ErrBadExempt = errors.New("ratelimit: exempt network is not a CIDR prefix")

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powhash_rate_limited_requests_total",
		Help: "Number of requests rejected by the per-client rate limiter",
	})

	trackedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powhash_rate_limited_clients",
		Help: "Number of clients with a live rate limiter after the last cleanup",
	})
)

// limiterIdle is how long a client's limiter is kept after its last request.
const limiterIdle = 10 * time.Minute

// RateLimiter hands out a token bucket per client address. Clients in an
// exempt network are never limited.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	exempt  *bart.Table[bool]
	clients *decaymap.Impl[netip.Addr, *rate.Limiter]
	lock    sync.Mutex
}

func NewRateLimiter(perSecond float64, burst int, exempt []string) (*RateLimiter, error) {
	var errs []error

	if perSecond <= 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrBadRate, perSecond))
	}

	if burst < 1 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrBadBurst, burst))
	}

	table := &bart.Table[bool]{}
	for _, cidr := range exempt {
		pfx, err := netip.ParsePrefix(cidr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %w", ErrBadExempt, cidr, err))
			continue
		}
		table.Insert(pfx.Masked(), true)
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		exempt:  table,
		clients: decaymap.New[netip.Addr, *rate.Limiter](),
	}, nil
}

// Allow reports whether a request from addr may proceed right now.
func (rl *RateLimiter) Allow(addr netip.Addr) bool {
	addr = addr.Unmap()

	if exempt, ok := rl.exempt.Lookup(addr); ok && exempt {
		return true
	}

	rl.lock.Lock()
	lim, ok := rl.clients.Get(addr)
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
	}
	// refresh the idle timer on every hit
	rl.clients.Set(addr, lim, limiterIdle)
	rl.lock.Unlock()

	return lim.Allow()
}

// Cleanup drops limiters of clients that have gone quiet and returns how many
// clients are still tracked.
func (rl *RateLimiter) Cleanup() int {
	rl.clients.Cleanup()
	n := rl.clients.Len()
	trackedClients.Set(float64(n))
	return n
}

// Middleware rejects requests over the client's budget with 429. Requests
// whose client address can't be parsed are let through and logged.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, err := ClientAddr(r)
		if err != nil {
			slog.Debug("can't determine client address, not rate limiting", "err", err)
			next.ServeHTTP(w, r)
			return
		}

		if !rl.Allow(addr) {
			rateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(max(1, 1/float64(rl.limit)))))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientAddr resolves the address of the client that made r, honoring
// X-Forwarded-For from private proxies.
func ClientAddr(r *http.Request) (netip.Addr, error) {
	remote := xff.GetRemoteAddr(r)

	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%q is not an IP address: %w", host, err)
	}

	return addr, nil
}
