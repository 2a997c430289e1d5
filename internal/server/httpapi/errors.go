package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/gin-gonic/gin"
)

// writeError maps a service error to a status code and a client-safe body.
// Unclassified errors are logged and answered with a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Message: "Validation failed", Errors: ve.Fields})
	case errors.Is(err, common.ErrDuplicateEmail):
		abortWith(c, http.StatusBadRequest, "User with this email already exists")
	case errors.Is(err, common.ErrInvalidCredentials):
		abortWith(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, common.ErrTokenExpired):
		abortWith(c, http.StatusBadRequest, "Token has expired")
	case errors.Is(err, common.ErrInvalidToken):
		abortWith(c, http.StatusBadRequest, "Invalid or already used token")
	case errors.Is(err, common.ErrUnauthenticated):
		abortWith(c, http.StatusUnauthorized, "Not authorized")
	case errors.Is(err, common.ErrFeatureDisabled):
		abortWith(c, http.StatusNotImplemented, "Feature is not enabled on this server")
	case errors.Is(err, common.ErrorNotFound):
		abortWith(c, http.StatusNotFound, "Not found")
	default:
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		abortWith(c, http.StatusInternalServerError, "Internal server error")
	}
}
