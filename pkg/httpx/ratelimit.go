package httpx

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitProfile names a preset requests-per-second budget.
type RateLimitProfile string

const (
	// RateLimitStrict guards credential-bearing endpoints such as token
	// exchange and registration.
	RateLimitStrict RateLimitProfile = "strict"
	// RateLimitModerate covers interactive flow endpoints.
	RateLimitModerate RateLimitProfile = "moderate"
	// RateLimitLenient covers validation endpoints hit on every resource
	// request.
	RateLimitLenient RateLimitProfile = "lenient"
	// RateLimitPublic covers metadata and health endpoints.
	RateLimitPublic RateLimitProfile = "public"
)

// RateLimitConfig holds the per-profile budgets. Zero values for a profile
// fall back to the defaults.
type RateLimitConfig struct {
	StrictRPS     float64
	StrictBurst   int
	ModerateRPS   float64
	ModerateBurst int
	LenientRPS    float64
	LenientBurst  int
	PublicRPS     float64
	PublicBurst   int
}

// DefaultRateLimitConfig returns the built-in budgets.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		StrictRPS: 2, StrictBurst: 5,
		ModerateRPS: 5, ModerateBurst: 10,
		LenientRPS: 25, LenientBurst: 50,
		PublicRPS: 50, PublicBurst: 100,
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies per-client-IP token buckets, one bucket per
// (IP, profile) pair. Idle buckets are evicted in the background.
type RateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	entries map[string]*limiterEntry

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a limiter and starts its eviction loop.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.StrictRPS <= 0 {
		cfg.StrictRPS, cfg.StrictBurst = def.StrictRPS, def.StrictBurst
	}
	if cfg.ModerateRPS <= 0 {
		cfg.ModerateRPS, cfg.ModerateBurst = def.ModerateRPS, def.ModerateBurst
	}
	if cfg.LenientRPS <= 0 {
		cfg.LenientRPS, cfg.LenientBurst = def.LenientRPS, def.LenientBurst
	}
	if cfg.PublicRPS <= 0 {
		cfg.PublicRPS, cfg.PublicBurst = def.PublicRPS, def.PublicBurst
	}

	rl := &RateLimiter{
		cfg:     cfg,
		entries: make(map[string]*limiterEntry),
		stop:    make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Stop terminates the eviction loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) budget(p RateLimitProfile) (float64, int) {
	switch p {
	case RateLimitStrict:
		return rl.cfg.StrictRPS, rl.cfg.StrictBurst
	case RateLimitModerate:
		return rl.cfg.ModerateRPS, rl.cfg.ModerateBurst
	case RateLimitLenient:
		return rl.cfg.LenientRPS, rl.cfg.LenientBurst
	default:
		return rl.cfg.PublicRPS, rl.cfg.PublicBurst
	}
}

func (rl *RateLimiter) allow(key string, p RateLimitProfile) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[key]
	if !ok {
		rps, burst := rl.budget(p)
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for key, entry := range rl.entries {
				if entry.lastSeen.Before(cutoff) {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Limit returns a middleware enforcing the given profile, keyed by the
// client IP.
func (rl *RateLimiter) Limit(p RateLimitProfile) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := string(p) + ":" + GetRemoteIP(r)
			if !rl.allow(key, p) {
				w.Header().Set("Retry-After", "1")
				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":             "slow_down",
					"error_description": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
