package middleware

import (
	"net/http"
	"strings"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxRequestID = "request_id"
	CtxActor     = "actor"

	// Query parameter naming the acting administrator when no token is sent.
	actorQueryParam = "adminId"
)

// RequestID propagates or assigns X-Request-ID and stores it for the response envelope.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// ActorOptions controls how requests without a token are attributed.
type ActorOptions struct {
	Required bool
	Default  string
}

// Actor resolves who is performing the request. A bearer token wins, then the
// adminId query parameter, then the configured default. With Required set,
// requests lacking a token are rejected.
func Actor(tokenSvc ports.TokenService, opts ActorOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := domain.Actor{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}

		authHeader := c.GetHeader("Authorization")
		switch {
		case authHeader != "":
			if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
				response.Abort(c, apperror.ErrInvalidToken())
				return
			}
			claims, err := tokenSvc.Validate(authHeader[7:])
			if err != nil {
				response.Abort(c, apperror.ErrInvalidToken())
				return
			}
			actor.ID = claims.ActorID
		case opts.Required:
			response.Abort(c, apperror.ErrActorRequired())
			return
		default:
			actor.ID = strings.TrimSpace(c.Query(actorQueryParam))
			if actor.ID == "" {
				actor.ID = opts.Default
			}
		}

		c.Set(CtxActor, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by Actor, or an anonymous actor carrying the client address.
func ActorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(CtxActor); ok {
		if a, ok := v.(domain.Actor); ok {
			return a
		}
	}
	return domain.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("actor", ActorFrom(c).ID).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(CtxRequestID)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				response.Abort(c, apperror.InternalError(nil))
			}
		}()
		c.Next()
	}
}
