package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/config"
	"ralph-api/internal/logging"
)

func TestNewRateLimiter_DisabledWithoutAddr(t *testing.T) {
	rl, err := NewRateLimiter(config.RateLimitConfig{WritesPerMinute: 10}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, rl)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	rl := newRateLimiter(client, 1, logging.Discard())
	defer rl.Close()

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow(context.Background(), "user:alice")
		assert.True(t, allowed)
	}
}

func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	s := &Server{}
	h := s.rateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/domain", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

// counterHook answers INCR, TTL and EXPIRE from memory so the limiter can be
// driven without a redis server
type counterHook struct {
	counts     map[string]int64
	ttls       map[string]time.Duration
	failExpire bool
	expires    int
}

func newCounterHook() *counterHook {
	return &counterHook{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (h *counterHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *counterHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error { return h.apply(cmd) }
}

func (h *counterHook) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			if err := h.apply(cmd); err != nil {
				return err
			}
		}
		return nil
	}
}

func (h *counterHook) apply(cmd redis.Cmder) error {
	args := cmd.Args()
	if len(args) < 2 {
		return nil
	}
	key, _ := args[1].(string)
	switch c := cmd.(type) {
	case *redis.IntCmd:
		if cmd.Name() == "incr" {
			if _, ok := h.counts[key]; !ok {
				h.ttls[key] = -1
			}
			h.counts[key]++
			c.SetVal(h.counts[key])
		}
	case *redis.DurationCmd:
		if _, ok := h.counts[key]; !ok {
			c.SetVal(-2)
			return nil
		}
		c.SetVal(h.ttls[key])
	case *redis.BoolCmd:
		h.expires++
		if h.failExpire {
			err := errors.New("connection reset by peer")
			c.SetErr(err)
			return err
		}
		h.ttls[key] = rateLimitWindow
		c.SetVal(true)
	}
	return nil
}

func newHookedLimiter(t *testing.T, hook *counterHook, limit int) *RateLimiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	client.AddHook(hook)
	rl := newRateLimiter(client, limit, logging.Discard())
	t.Cleanup(rl.Close)
	return rl
}

func TestRateLimiter_Window(t *testing.T) {
	hook := newCounterHook()
	rl := newHookedLimiter(t, hook, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, retry := rl.Allow(ctx, "user:alice")
		assert.True(t, allowed)
		assert.Equal(t, rateLimitWindow, retry)
	}
	allowed, _ := rl.Allow(ctx, "user:alice")
	assert.False(t, allowed)
	assert.Equal(t, 1, hook.expires, "the window is set once per counter")

	allowed, _ = rl.Allow(ctx, "user:bob")
	assert.True(t, allowed)
}

func TestRateLimiter_RestoresLostExpiry(t *testing.T) {
	hook := newCounterHook()
	hook.failExpire = true
	rl := newHookedLimiter(t, hook, 1)
	ctx := context.Background()
	key := rateLimitPrefix + "user:alice"

	allowed, retry := rl.Allow(ctx, "user:alice")
	assert.True(t, allowed)
	assert.Equal(t, rateLimitWindow, retry)
	assert.Equal(t, time.Duration(-1), hook.ttls[key], "failed EXPIRE leaves the counter without a window")

	hook.failExpire = false
	allowed, retry = rl.Allow(ctx, "user:alice")
	assert.False(t, allowed)
	assert.Equal(t, rateLimitWindow, retry)
	assert.Equal(t, rateLimitWindow, hook.ttls[key])
	assert.Equal(t, 2, hook.expires)

	// the window expires and the counter starts over
	delete(hook.counts, key)
	delete(hook.ttls, key)
	allowed, _ = rl.Allow(ctx, "user:alice")
	assert.True(t, allowed)
}
