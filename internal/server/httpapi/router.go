// Package httpapi exposes the authentication service as a JSON API over
// HTTP, built on gin.
package httpapi

import (
	"time"

	"github.com/dmitrijs2005/fitauth/internal/logging"
	"github.com/dmitrijs2005/fitauth/internal/server/auth"
	"github.com/dmitrijs2005/fitauth/internal/server/services"
	"github.com/dmitrijs2005/fitauth/internal/timex"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

type Handler struct {
	svc     *services.AuthService
	issuer  *auth.Issuer
	logger  logging.Logger
	limiter *rateLimiter
}

// NewHandler builds the handler set. ratePerMinute <= 0 disables rate limiting.
func NewHandler(svc *services.AuthService, issuer *auth.Issuer, logger logging.Logger, ratePerMinute int, clock timex.Clock) *Handler {
	if clock == nil {
		clock = timex.RealClock{}
	}
	h := &Handler{svc: svc, issuer: issuer, logger: logger.With("module", "http")}
	if ratePerMinute > 0 {
		h.limiter = newRateLimiter(ratePerMinute, time.Minute, clock)
	}
	return h
}

// Router returns the gin engine serving all routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(recovery(h.logger), requestLogger(h.logger))

	r.GET("/healthz", h.health)

	api := r.Group("/api/auth")

	public := api.Group("")
	if h.limiter != nil {
		public.Use(h.limiter.limitIP())
	}
	public.POST("/register", h.register)
	public.POST("/login", h.login)
	public.POST("/forgot-password", h.forgotPassword)
	public.POST("/reset-password", h.resetPassword)

	api.POST("/verify-email", h.verifyEmail)

	private := api.Group("", h.requireAuth())
	private.GET("/me", h.me)
	private.PUT("/profile", h.updateProfile)
	private.POST("/profile/picture", h.uploadPicture)
	private.GET("/profile/picture", h.getPicture)
	private.POST("/logout", h.logout)

	return r
}
