package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/logging"
	"github.com/dmitrijs2005/fitauth/internal/server/auth"
	"github.com/gin-gonic/gin"
)

// requireAuth verifies the bearer session token and attaches the caller's
// identity to the request context. Failures stop the chain with 401.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.ParseBearer(c.GetHeader(common.AuthorizationHeaderName))
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		id, err := h.issuer.VerifySessionToken(raw)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				abortWith(c, http.StatusUnauthorized, "Session expired, please log in again")
				return
			}
			abortWith(c, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// identity returns the caller set by requireAuth.
func identity(c *gin.Context) (auth.Identity, bool) {
	return auth.IdentityFromContext(c.Request.Context())
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		logger.Error(c.Request.Context(), "panic", "path", c.Request.URL.Path, "panic", rec)
		abortWith(c, http.StatusInternalServerError, "Internal server error")
	})
}
