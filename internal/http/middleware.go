package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chefmate/auth-service/internal/domain"
	"github.com/chefmate/auth-service/internal/helper"
	"github.com/chefmate/auth-service/internal/identity"
	"github.com/chefmate/auth-service/internal/log"
	"github.com/chefmate/auth-service/internal/metrics"
	"github.com/chefmate/auth-service/internal/repo"
	"github.com/chefmate/auth-service/internal/security"
)

const (
	authUserKey  = "auth.user"
	requestIDKey = "X-Request-ID"
)

// CurrentUser returns the identity the auth gate attached to the request.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(authUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDKey, id)
		c.Next()
	}
}

// AuthGate verifies a Bearer token and attaches the resolved user to the
// request. It never produces an error response: a missing header, a bad
// token or an unknown user all just leave the request unauthenticated, and
// route-level policy decides on 401/403. An identity already attached by an
// earlier middleware is never overwritten.
func AuthGate(tokens *security.TokenService, users identity.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(authUserKey); ok {
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if h == "" || !strings.HasPrefix(h, prefix) {
			c.Next()
			return
		}

		uid, sub, err := tokens.Verify(strings.TrimPrefix(h, prefix))
		if err != nil {
			log.L.Debug("bearer token rejected", zap.Error(err))
			c.Next()
			return
		}

		u, err := users.FindUserByID(c.Request.Context(), uid)
		if err != nil || u == nil {
			log.L.Debug("token user not found", zap.String("uid", uid), zap.Error(err))
			c.Next()
			return
		}
		if u.Username != sub {
			log.L.Debug("bearer token rejected", zap.Error(security.ErrTokenSubjectMismatch),
				zap.String("uid", uid))
			c.Next()
			return
		}

		c.Set(authUserKey, u)
		c.Next()
	}
}

// RateLimit is a redis fixed-window limiter keyed by hashed client address.
// Fails open when redis is down; losing the limiter should not take logins
// down with it.
func RateLimit(rds *repo.Redis, perMin int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rds == nil || perMin <= 0 {
			c.Next()
			return
		}
		key := "login:" + helper.Hash8(c.ClientIP())
		allowed, err := rds.Allow(c.Request.Context(), key, perMin)
		if err != nil {
			log.L.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
			return
		}
		c.Next()
	}
}

// Metrics records request counts and latency per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
