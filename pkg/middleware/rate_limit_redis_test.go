package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// newRedisLimited serves /r behind the Redis limiter with one request per
// minute. X-Test-User stands in for AuthMiddleware.
func newRedisLimited(t *testing.T) (*gin.Engine, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set(UserIDKey, u)
		}
		c.Next()
	})
	r.Use(RedisRateLimitMiddleware(client, 0, 1, time.Minute))
	r.GET("/r", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	return r, m
}

func redisGet(r *gin.Engine, user, addr string) int {
	rq := httptest.NewRequest("GET", "/r", nil)
	rq.RemoteAddr = addr
	if user != "" {
		rq.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, rq)
	return w.Code
}

func TestRedisRateLimitMiddleware_Basic(t *testing.T) {
	r, m := newRedisLimited(t)
	rejected := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis"))

	require.Equal(t, http.StatusOK, redisGet(r, "", "10.1.0.1:1000"))
	require.Equal(t, http.StatusTooManyRequests, redisGet(r, "", "10.1.0.1:1000"))
	require.Equal(t, rejected+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis")))

	// the window key expires and the client is admitted again
	m.FastForward(2 * time.Minute)
	require.Equal(t, http.StatusOK, redisGet(r, "", "10.1.0.1:1000"))
}

func TestRedisRateLimitMiddleware_SeparateBucketsPerUser(t *testing.T) {
	r, m := newRedisLimited(t)

	// both users share one client address but not a bucket
	require.Equal(t, http.StatusOK, redisGet(r, "alice", "10.1.0.2:1000"))
	require.Equal(t, http.StatusOK, redisGet(r, "bob", "10.1.0.2:1000"))
	require.Equal(t, http.StatusTooManyRequests, redisGet(r, "alice", "10.1.0.2:1000"))

	var alice, bob, ip bool
	for _, k := range m.Keys() {
		alice = alice || strings.HasPrefix(k, "rl:user:alice:")
		bob = bob || strings.HasPrefix(k, "rl:user:bob:")
		ip = ip || strings.HasPrefix(k, "rl:ip:")
	}
	require.True(t, alice, "keys: %v", m.Keys())
	require.True(t, bob, "keys: %v", m.Keys())
	require.False(t, ip, "authenticated requests must not use the address bucket")
}
