package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/multivault/ledger/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Read endpoints (public)
		v1.GET("/tokens/:token_id", handler.GetToken)
		v1.GET("/tokens/:token_id/balances", handler.ListBalances)
		v1.GET("/tokens/:token_id/balances/:owner_id", handler.GetBalance)
		v1.GET("/tokens/:token_id/events", handler.ListEvents)
		v1.GET("/sagas/:saga_id", handler.GetSaga)

		// Mutating endpoints (require authentication)
		v1.POST("/tokens", middleware.Auth(authCfg), handler.Mint)
		v1.POST("/transfers", middleware.Auth(authCfg), handler.Transfer)
		v1.POST("/transfers/batch", middleware.Auth(authCfg), handler.TransferBatch)
		v1.POST("/transfers/call", middleware.Auth(authCfg), handler.TransferCall)
		v1.POST("/approvals", middleware.Auth(authCfg), handler.Approve)
		v1.POST("/balances/register", middleware.Auth(authCfg), handler.Register)
		v1.DELETE("/tokens/:token_id/balances/:owner_id", middleware.Auth(authCfg), handler.Unregister)

		// Hook registration (requires API key authentication only)
		v1.POST("/hooks", middleware.APIKeyAuth(authCfg), handler.RegisterHook)
	}
}
