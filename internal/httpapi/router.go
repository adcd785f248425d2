// Package httpapi serves the account and session endpoints over gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/internal/logging"
	"github.com/MrEthical07/feedbackAuth/metrics"
	"github.com/MrEthical07/feedbackAuth/middleware"
)

type Options struct {
	Engine *feedbackAuth.Engine
	Logger logrus.FieldLogger
	// Metrics adds HTTP collectors and GET /metrics when set.
	Metrics *metrics.Registry
}

// NewRouter wires every route under /api/auth plus /healthz and /metrics.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Logger != nil {
		r.Use(logging.Middleware(opts.Logger))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.HTTPMiddleware())
		r.GET("/metrics", opts.Metrics.GinHandler())
	}
	r.Use(clientIP())

	h := &handler{engine: opts.Engine}
	r.GET("/healthz", h.health)

	api := r.Group("/api/auth")
	api.POST("/register/", handle(h.register))
	api.POST("/login/", handle(h.login))
	api.POST("/refresh/", handle(h.refresh))
	api.POST("/logout/", handle(h.logout))

	authed := api.Group("", middleware.RequireAuth(opts.Engine))
	authed.GET("/me/", handle(h.me))
	authed.GET("/profile/", handle(h.me))
	authed.PUT("/profile/", handle(h.updateProfile))
	authed.PATCH("/profile/", handle(h.updateProfile))
	authed.POST("/change-password/", handle(h.changePassword))
	authed.GET("/users/", handle(h.listUsers))
	authed.GET("/users/:id/", handle(h.getUser))
	authed.PUT("/users/:id/", handle(h.updateUser))
	authed.PATCH("/users/:id/", handle(h.updateUser))
	authed.PATCH("/users/:id/role/", handle(h.updateRole))
	authed.PATCH("/users/:id/deactivate/", handle(h.deactivate))
	authed.PATCH("/users/:id/activate/", handle(h.activate))
	authed.GET("/stats/", handle(h.stats))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, problem{Detail: "not found"})
	})
	return r
}

// clientIP exposes the caller address to the engine's throttling and audit.
func clientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := feedbackAuth.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
