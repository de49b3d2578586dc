package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ctxSessionID    = "session_id"
	headerRequestID = "X-Request-ID"
)

// GinZapLogger логирует запросы через zap. /health и /metrics не логируются.
func GinZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		c.Next()

		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.String("request_id", requestID),
		}
		if sessionID := c.GetString(ctxSessionID); sessionID != "" {
			fields = append(fields, zap.String("sessionID", sessionID))
		}

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
				log.Error("Request error", append(fields, zap.Error(ginErr.Err))...)
			}
			return
		}
		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

// SessionMiddleware находит сессию по cookie или создает новую и выдает cookie.
// Неподписанные, просроченные и неизвестные cookie заменяются новой сессией.
func (h *WizardHandler) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessionID string
		if raw, err := c.Cookie(h.cookies.Name); err == nil && raw != "" {
			id, parseErr := h.cookies.Parse(raw)
			if parseErr != nil {
				h.logger.Debug("Session cookie rejected", zap.Error(parseErr))
			} else {
				sessionID = id
			}
		}

		sess, created, err := h.svc.EnsureSession(c.Request.Context(), sessionID)
		if err != nil {
			h.logger.Error("Failed to resolve session", zap.Error(err))
			handleServiceError(c, err)
			return
		}

		if created || sess.ID != sessionID {
			value, err := h.cookies.Issue(sess.ID)
			if err != nil {
				h.logger.Error("Failed to issue session cookie", zap.Error(err))
				handleServiceError(c, err)
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(h.cookies.Name, value, int(h.cookies.TTL.Seconds()), "/", "", h.cookies.Secure, true)
		}

		c.Set(ctxSessionID, sess.ID)
		c.Next()
	}
}
