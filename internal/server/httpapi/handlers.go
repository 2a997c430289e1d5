package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/fitauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (h *Handler) register(c *gin.Context) {
	var in services.RegisterInput
	if !h.bind(c, &in) {
		return
	}

	res, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{
		Success: true,
		Message: "Registration successful! Please check your email for verification.",
		Token:   res.Token,
		User:    res.User,
	})
}

func (h *Handler) login(c *gin.Context) {
	var in services.LoginInput
	if !h.bind(c, &in) {
		return
	}

	res, err := h.svc.Login(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{
		Success: true,
		Message: "Login successful",
		Token:   res.Token,
		User:    res.User,
	})
}

func (h *Handler) verifyEmail(c *gin.Context) {
	var in verifyEmailRequest
	if !h.bind(c, &in) {
		return
	}

	if err := h.svc.VerifyEmail(c.Request.Context(), in.Token); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Email verified successfully"})
}

func (h *Handler) me(c *gin.Context) {
	id, _ := identity(c)

	user, err := h.svc.GetCurrentUser(c.Request.Context(), id.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Success: true, User: *user})
}

func (h *Handler) updateProfile(c *gin.Context) {
	id, _ := identity(c)

	var in services.ProfilePatch
	if !h.bind(c, &in) {
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), id.UserID, in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Success: true, Message: "Profile updated successfully", User: *user})
}

func (h *Handler) logout(c *gin.Context) {
	id, _ := identity(c)

	if err := h.svc.Logout(c.Request.Context(), id.UserID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var in services.ForgotPasswordInput
	if !h.bind(c, &in) {
		return
	}

	if err := h.svc.RequestPasswordReset(c.Request.Context(), in); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "If an account with that email exists, a password reset token has been sent",
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var in services.ResetPasswordInput
	if !h.bind(c, &in) {
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), in); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Password has been reset successfully"})
}

func (h *Handler) uploadPicture(c *gin.Context) {
	id, _ := identity(c)

	up, err := h.svc.ProfilePictureUploadURL(c.Request.Context(), id.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{Success: true, Key: up.Key, UploadURL: up.URL})
}

func (h *Handler) getPicture(c *gin.Context) {
	id, _ := identity(c)

	url, err := h.svc.ProfilePictureURL(c.Request.Context(), id.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pictureResponse{Success: true, URL: url})
}

func (h *Handler) health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		h.logger.Warn(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, messageResponse{Success: false, Message: "credential store unavailable"})
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true})
}

// bind decodes the JSON body into dst. Unknown fields are rejected.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Debug(c.Request.Context(), "bad request body", "error", err)
		abortWith(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
