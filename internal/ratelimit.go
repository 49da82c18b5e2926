package internal

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ralph-api/internal/auth"
	"ralph-api/internal/config"
)

const (
	rateLimitPrefix  = "ralph:ratelimit:"
	rateLimitWindow  = time.Minute
	rateLimitTimeout = 250 * time.Millisecond
)

// RateLimiter caps writes per caller with a fixed window counter in redis.
// Redis failures let the request through.
type RateLimiter struct {
	client *redis.Client
	limit  int
	log    logrus.FieldLogger
}

// NewRateLimiter connects to the configured redis. It returns nil when no
// address is configured.
func NewRateLimiter(cfg config.RateLimitConfig, log logrus.FieldLogger) (*RateLimiter, error) {
	if cfg.RedisAddr == "" || cfg.WritesPerMinute <= 0 {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connect redis %s", cfg.RedisAddr)
	}
	return newRateLimiter(client, cfg.WritesPerMinute, log), nil
}

func newRateLimiter(client *redis.Client, limit int, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, log: log}
}

// Allow counts one request for key and reports whether it fits the window
// along with the time left in it
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, rateLimitTimeout)
	defer cancel()

	redisKey := rateLimitPrefix + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rl.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		ttl = p.TTL(ctx, redisKey)
		return nil
	}); err != nil {
		rl.log.WithError(err).WithField("op", "incr").Error("rate limiter unavailable")
		return true, 0
	}

	// A counter without an expiry never resets; set it whenever it is missing.
	left := ttl.Val()
	if left < 0 {
		if err := rl.client.Expire(ctx, redisKey, rateLimitWindow).Err(); err != nil {
			rl.log.WithError(err).WithField("op", "expire").Error("rate limiter unavailable")
		}
		left = rateLimitWindow
	}
	return int(incr.Val()) <= rl.limit, left
}

func (rl *RateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

// rateLimit throttles writes of the authenticated user, or of the client
// address for anonymous calls
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := "user:" + auth.UsernameFromContext(r.Context())
		if auth.UsernameFromContext(r.Context()) == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			key = "addr:" + host
		}
		allowed, retry := s.Limiter.Allow(r.Context(), key)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds()+0.5)))
			sendError(w, http.StatusTooManyRequests, errorBody{Error: "Request was throttled.", Code: "RATE_LIMITED"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
