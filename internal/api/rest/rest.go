package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/givechain/charity-ledger/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	auth := middleware.Auth(authCfg)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Charity endpoints (public read access)
		v1.GET("/charities", handler.ListCharities)
		v1.GET("/charities/:id", handler.GetCharity)
		v1.GET("/charities/:id/donations", handler.GetCharityDonations)
		v1.GET("/charities/:id/withdrawals", handler.GetCharityWithdrawals)

		// Charity management (owner identity enforced by the ledger)
		v1.POST("/charities", auth, handler.RegisterCharity)
		v1.PATCH("/charities/:id/status", auth, handler.SetCharityStatus)

		// Withdrawals (charity wallet identity enforced by the ledger)
		v1.POST("/charities/:id/withdrawals", auth, handler.Withdraw)

		// Campaign endpoints
		v1.GET("/campaigns", handler.ListCampaigns)
		v1.GET("/campaigns/:id", handler.GetCampaign)
		v1.POST("/campaigns", auth, handler.CreateCampaign)

		// Donations (the donor is the authenticated wallet)
		v1.POST("/donations", auth, handler.Donate)

		// Donor endpoints (public read access)
		v1.GET("/donors/top", handler.GetTopDonors)
		v1.GET("/donors/:address/charities", handler.GetDonorHistory)

		// Platform endpoints
		v1.GET("/platform", handler.GetPlatform)
		v1.PATCH("/platform/fee", auth, handler.UpdateFee)
		v1.POST("/platform/emergency-withdrawal", auth, handler.EmergencyWithdraw)

		// Statistics (public read access)
		v1.GET("/statistics", handler.GetStatistics)
	}
}
