package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestID propagates X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// AccessLog writes one structured line per request once it has been handled.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("client_ip", c.ClientIP()),
		}
		if u := currentUser(c); u != nil {
			fields = append(fields, zap.Uint("tenant_id", u.TenantID), zap.Uint("user_id", u.ID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Authenticate resolves the bearer token to a user and stores it on the context.
func (h *Handler) Authenticate(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Set(ctxUser, user)
	c.Set(ctxToken, token)
	c.Next()
}

// Require rejects the request unless the user's role grants action on module.
// The resolved grant carries the owner scope the handler applies.
func (h *Handler) Require(module, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		grant, err := h.rbac.Resolve(c.Request.Context(), currentUser(c), module, action)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(ctxGrant, grant)
		c.Next()
	}
}

// Feature rejects the request when the tenant's plan does not include feature.
func (h *Handler) Feature(feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.entitlements.Check(c.Request.Context(), tenantID(c), feature); err != nil {
			respondError(c, err)
			return
		}
		c.Next()
	}
}
