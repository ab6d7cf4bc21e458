package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-ledger/internal/adapter/http/middleware"
	redisStore "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(limiter ports.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	log := zerolog.Nop()

	r.POST("/test", middleware.RateLimiter(limiter, "mutations", rule, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newRedisLimiter(t *testing.T) ports.RateLimiter {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func postFrom(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "/test", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisLimiter(t))

	for i := 0; i < 3; i++ {
		w := postFrom(router, "10.0.0.1:5000")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisLimiter(t))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, postFrom(router, "10.0.0.1:5000").Code)
	}

	w := postFrom(router, "10.0.0.1:5000")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_CountsPerClientIP(t *testing.T) {
	router := setupRateLimitRouter(newRedisLimiter(t))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, postFrom(router, "10.0.0.1:5000").Code)
	}
	assert.Equal(t, 200, postFrom(router, "10.0.0.2:5000").Code)
}

func TestRateLimiter_DegradedModeAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Allow(gomock.Any(), "10.0.0.1:mutations", int64(3), time.Minute).
		Return(nil, errors.New("redis down"))

	router := setupRateLimitRouter(limiter)
	assert.Equal(t, 200, postFrom(router, "10.0.0.1:5000").Code)
}
