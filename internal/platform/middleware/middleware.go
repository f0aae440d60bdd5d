// Package middleware provides the gin middleware chain: request ids,
// structured request logging, panic recovery, CORS, and the identity
// propagation used behind the API gateway.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID carries the correlation id through the call chain.
	HeaderRequestID = "X-Request-ID"
	// HeaderUserID and HeaderUserRole are set by the API gateway after it
	// validates the caller's token. This service trusts them; it is never
	// exposed directly to the internet.
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	ctxUserIDKey   = "user_id"
	ctxUserRoleKey = "user_role"

	RoleAdmin = "admin"
)

// RequestID assigns a request id when the gateway did not send one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(HeaderRequestID, id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs one line per request with latency and status.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(HeaderRequestID)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// Recovery converts panics into 500 responses with a logged stack.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"code":    "internal_error",
					"message": "an internal error occurred",
				})
			}
		}()
		c.Next()
	}
}

// CORS allows cross-origin calls from the web frontends.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Identity extracts the gateway-authenticated user from headers and rejects
// requests without one.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetHeader(HeaderUserID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "unauthorized",
				"message": "missing or invalid user identity",
			})
			return
		}
		c.Set(ctxUserIDKey, userID)
		c.Set(ctxUserRoleKey, c.GetHeader(HeaderUserRole))
		c.Next()
	}
}

// RequireRole rejects callers whose gateway role does not match.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserRoleKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"code":    "forbidden",
				"message": "insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user id set by Identity.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
