// internal/app/router.go
package app

import (
	authHandler "crm-service/internal/handlers/auth"
	healthHandler "crm-service/internal/handlers/health"
	opportunityHandler "crm-service/internal/handlers/opportunity"
	wsHandler "crm-service/internal/handlers/websocket"
	"crm-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler        *authHandler.AuthHandler
	OpportunityHandler *opportunityHandler.OpportunityHandler
	HealthHandler      *healthHandler.HealthHandler
	WSHandler          *wsHandler.WebSocketHandler
	AuthMiddleware     *middleware.AuthMiddleware
	// IntakeLimit throttles public submissions; nil disables it.
	IntakeLimit gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", h.HealthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	r.GET("/ws", append(h.AuthMiddleware.AdminOnly(), h.WSHandler.HandleConnection)...)
	api.GET("/ws/stats", append(h.AuthMiddleware.AdminOnly(), h.WSHandler.GetStats)...)

	// ==================== Auth Routes ====================
	r.GET("/login", h.AuthHandler.LoginPage)

	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/me", h.AuthHandler.GetMe)
	}

	// ==================== Public Intake ====================
	sales := r.Group("/sales/opportunity")
	{
		intake := []gin.HandlerFunc{h.AuthMiddleware.OptionalAuth()}
		if h.IntakeLimit != nil {
			intake = append(intake, h.IntakeLimit)
		}
		intake = append(intake, h.OpportunityHandler.SubmitLead)

		sales.GET("/new", h.OpportunityHandler.NewLeadForm)
		sales.POST("/new", intake...)
		sales.GET("/thanks", h.OpportunityHandler.Thanks)
	}

	// ==================== Sales Admin ====================
	admin := sales.Group("", h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/home", h.OpportunityHandler.Home)
		admin.GET("/leads", h.OpportunityHandler.Leads)
		admin.GET("/lead/:id", h.OpportunityHandler.LeadDetail)
		admin.GET("/lead/:id/revenue", h.OpportunityHandler.Revenue)
		admin.POST("/lead/:id/revenue", h.OpportunityHandler.Revenue)
		admin.POST("/lead/:id/assign", h.OpportunityHandler.Assign)
		admin.POST("/comment", h.OpportunityHandler.AddComment)

		admin.POST("/lead/:id/opportunity", h.OpportunityHandler.MarkOpportunity)
		admin.POST("/lead/:id/lost", h.OpportunityHandler.MarkLost)
		admin.POST("/lead/:id/lead", h.OpportunityHandler.MarkLead)
		admin.POST("/lead/:id/converted", h.OpportunityHandler.MarkConverted)
		admin.POST("/lead/:id/cancelled", h.OpportunityHandler.MarkCancelled)
	}

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
