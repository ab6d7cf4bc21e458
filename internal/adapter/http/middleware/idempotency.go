package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// cachedResponse is the replayable form of a completed request.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// captureWriter tees the response body so it can be stored after the handler returns.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to the actor, method and path. A concurrent duplicate gets
// 409. Responses with a 5xx status or a retryable error are not stored, so the
// client may resend with the same key.
func Idempotency(cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if raw == "" {
			c.Next()
			return
		}
		if len(raw) > 255 {
			response.Abort(c, apperror.Validation("Idempotency-Key must be at most 255 characters"))
			return
		}

		ctx := c.Request.Context()
		key := ActorFrom(c).ID + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + raw

		stored, err := cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency lookup failed, processing request (degraded mode)")
			c.Next()
			return
		}
		if stored != nil {
			var cached cachedResponse
			if err := json.Unmarshal(stored, &cached); err == nil {
				c.Header(HeaderReplayed, "true")
				c.Data(cached.Status, cached.ContentType, cached.Body)
				c.Abort()
				return
			}
			log.Warn().Str("key", raw).Msg("discarding unreadable idempotency entry")
		}

		reserved, err := cache.Reserve(ctx, key, ttl)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency reserve failed, processing request (degraded mode)")
			c.Next()
			return
		}
		if !reserved {
			response.Abort(c, apperror.ErrIdempotencyInProgress())
			return
		}

		cw := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = cw
		c.Next()

		status := cw.Status()
		if status >= http.StatusInternalServerError || c.GetBool(response.CtxRetryable) {
			if err := cache.Release(ctx, key); err != nil {
				log.Warn().Err(err).Str("key", raw).Msg("failed to release idempotency key")
			}
			return
		}
		payload, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: cw.Header().Get("Content-Type"),
			Body:        cw.buf.Bytes(),
		})
		if err == nil {
			err = cache.Set(ctx, key, payload, ttl)
		}
		if err != nil {
			log.Warn().Err(err).Str("key", raw).Msg("failed to store idempotent response")
		}
	}
}
