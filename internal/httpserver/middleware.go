package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey string

const sessionCtxKey ctxKey = "sessionID"

// requestLogger emits one access log line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	access := logger.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			access.Warn("request", fields...)
		default:
			access.Info("request", fields...)
		}
	}
}

// sessionMiddleware resolves the bearer token to a session id.
func sessionMiddleware(sessions SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := sessions.Lookup(c.Request.Context(), token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(c.Request.Context(), sessionCtxKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionCtxKey).(string)
	return id, ok && id != ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"statusCode": status, "message": message})
}
