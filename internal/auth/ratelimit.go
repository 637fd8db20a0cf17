package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wisbric/corpreg/internal/apperr"
)

// RateLimiter limits incoming requests per caller (API key prefix, or
// remote address when unauthenticated) using a fixed window of INCR+EXPIRE
// against Redis when configured, falling back to an in-process counter
// otherwise — single-instance deployments don't need Redis to get rate
// limiting, matching the corpus's own "absent config disables/degrades
// the integration" convention.
type RateLimiter struct {
	redis  *redis.Client
	local  *localCounters
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiter creates a RateLimiter. limit is the max requests allowed per
// caller within window. If rdb is nil, counting happens in-process.
func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  rdb,
		local:  newLocalCounters(),
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow reports whether the caller identified by key may proceed.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if rl.limit <= 0 {
		return true, nil
	}

	if rl.redis == nil {
		return rl.local.allow(key, rl.limit, rl.window), nil
	}

	bucketKey := fmt.Sprintf("corpreg:ratelimit:%s", key)
	count, err := rl.redis.Incr(ctx, bucketKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("checking rate limit: %w", err)
	}
	if count == 1 {
		rl.redis.Expire(ctx, bucketKey, rl.window)
	}
	return count <= int64(rl.limit), nil
}

// Middleware enforces the rate limit, keying on the first 12 characters of
// the caller's bearer token (or the remote address when no bearer token is
// sent).
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callerKey(r)

		allowed, err := rl.Allow(r.Context(), key)
		if err != nil {
			rl.logger.Error("rate limit check failed, failing open", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			apperr.WriteResponse(w, apperr.RateLimitExceeded(), apperr.CorrelationIDFromRequest(r))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		if len(token) > 12 {
			token = token[:12]
		}
		return "key:" + token
	}
	return "addr:" + r.RemoteAddr
}

// localCounters is the in-process fallback bucket store, used when Redis is
// not configured.
type localCounters struct {
	mu      sync.Mutex
	buckets map[string]*counterBucket
}

type counterBucket struct {
	count     int
	expiresAt time.Time
}

func newLocalCounters() *localCounters {
	return &localCounters{buckets: make(map[string]*counterBucket)}
}

func (c *localCounters) allow(key string, limit int, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	b, ok := c.buckets[key]
	if !ok || now.After(b.expiresAt) {
		b = &counterBucket{count: 0, expiresAt: now.Add(window)}
		c.buckets[key] = b
	}
	b.count++
	return b.count <= limit
}
