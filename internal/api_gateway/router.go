package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wallet-ledger/internal/api_gateway/handler"
	"github.com/wallet-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the gateway
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	walletHandler *handler.WalletHandler,
	transactionHandler *handler.TransactionHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.RequestID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", walletHandler.Create)
			wallets.GET("/:id", walletHandler.GetByID)
			wallets.GET("/:id/balance", walletHandler.GetBalance)
			wallets.GET("/:id/balance/historical", walletHandler.GetHistoricalBalance)

			wallets.POST("/:id/deposit", transactionHandler.Deposit)
			wallets.POST("/:id/withdraw", transactionHandler.Withdraw)
			wallets.POST("/:id/transfer", transactionHandler.Transfer)
		}

		operations := v1.Group("/operations")
		{
			operations.GET("/:correlation_id", transactionHandler.GetOperation)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
