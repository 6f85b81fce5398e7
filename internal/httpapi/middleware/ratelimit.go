package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kissvdb/kissvdb/internal/httpapi"
)

// RateLimitConfig configures per-client token-bucket limiting (spec §6
// ambient concern, adapted from fluxor's pkg/web/middleware/security).
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	EntryTTL          time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit enforces a per-source-IP request rate, evicting idle client
// entries lazily on access.
func RateLimit(cfg RateLimitConfig) httpapi.Middleware {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	ttl := cfg.EntryTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)
	lastCleanup := time.Now()

	return func(next httpapi.Handler) httpapi.Handler {
		return func(ctx *httpapi.RequestContext) error {
			key := ctx.RemoteIP().String()

			mu.Lock()
			now := time.Now()
			if now.Sub(lastCleanup) >= time.Minute {
				lastCleanup = now
				for k, v := range clients {
					if now.Sub(v.lastSeen) >= ttl {
						delete(clients, k)
					}
				}
			}
			cl, ok := clients[key]
			if !ok {
				cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
				clients[key] = cl
			}
			cl.lastSeen = now
			mu.Unlock()

			if !cl.limiter.Allow() {
				return ctx.JSON(429, map[string]string{"error": "unavailable", "message": "rate limit exceeded"})
			}
			return next(ctx)
		}
	}
}
