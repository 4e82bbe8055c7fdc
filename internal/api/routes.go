package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	infragin "github.com/jonesrussell/setlist/infrastructure/gin"
	infrajwt "github.com/jonesrussell/setlist/infrastructure/jwt"
	"github.com/jonesrussell/setlist/internal/auth"
)

// RouteOptions configures route registration.
type RouteOptions struct {
	JWTSecret   string
	SubmitRPS   float64
	SubmitBurst int
}

// RegisterRoutes mounts the public and admin endpoints under /api/v1.
func RegisterRoutes(router *gin.Engine, h *Handler, opts RouteOptions) {
	public, protected := infragin.SetupAPIRoutesWithPublic(router, opts.JWTSecret)

	public.POST("/requests", SubmitThrottle(opts.SubmitRPS, opts.SubmitBurst, h.logger), h.SubmitRequest)
	public.GET("/queue", h.PublicQueue)
	public.GET("/feed", h.Feed)
	public.POST("/admin/login", h.Login)

	admin := protected.Group("/admin", h.requireAdmin)
	admin.GET("/session", h.Session)
	admin.GET("/queue", h.ListQueue)
	admin.PATCH("/queue/:id", h.UpdateEntry)
	admin.POST("/bulk", h.Bulk)
	admin.POST("/reorder", h.Reorder)
	admin.POST("/control", h.Control)
	admin.GET("/analytics", h.Analytics)
}

// requireAdmin runs after token validation and insists on the admin role.
func (h *Handler) requireAdmin(c *gin.Context) {
	if !h.adminEnabled() {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgAdminDisabled})
		return
	}

	claims, ok := infrajwt.GetClaims(c)
	if !ok || claims.Role != auth.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": msgAdminRequired,
			"hint":  "Use admin login first and send Authorization header.",
		})
		return
	}

	c.Next()
}
