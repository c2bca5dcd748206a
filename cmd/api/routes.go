package main

import (
	"dialout-picker/internal/httpapi"
	"dialout-picker/internal/rbac"

	"github.com/gin-gonic/gin"
)

type routeOptions struct {
	// AllowTokenIssue mounts the unauthenticated token endpoints (local/dev).
	AllowTokenIssue bool
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, opts routeOptions) {
	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")

	if opts.AllowTokenIssue {
		authGroup := v1.Group("/auth")
		authGroup.POST("/token", h.IssueToken)
		authGroup.POST("/refresh", h.RefreshToken)
	}

	protected := v1.Group("")
	protected.Use(authMW, rbac.RequireConference(h.Conference), httpapi.ClientIP())

	browse := rbac.RequireAnyRole(rbac.RoleChair, rbac.RoleGuest)
	dial := rbac.RequireAnyRole(rbac.RoleChair)

	protected.GET("/options", browse, h.Protocols)

	sessions := protected.Group("/sessions")
	{
		sessions.POST("", browse, h.CreateSession)
		sessions.DELETE("/:id", browse, h.CloseSession)
		sessions.GET("/:id/targets", browse, h.SearchTargets)
		sessions.POST("/:id/selection", browse, h.UpdateSelection)
		sessions.GET("/:id/view", browse, h.View)
		sessions.GET("/:id/widget", browse, h.Widget)

		sessions.POST("/:id/dial", dial, h.Dial)
		sessions.POST("/:id/dial-one", dial, h.DialOne)
	}
}
