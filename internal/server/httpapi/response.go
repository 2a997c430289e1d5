package httpapi

import (
	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/server/models"
	"github.com/gin-gonic/gin"
)

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  []common.FieldError `json:"errors,omitempty"`
}

type authResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    models.PublicUser `json:"user"`
}

type userResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	User    models.PublicUser `json:"user"`
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

type pictureResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func abortWith(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Message: message})
}
