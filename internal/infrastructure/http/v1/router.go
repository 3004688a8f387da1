// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/infrastructure/http/v1/handlers"
	"stockcore/internal/infrastructure/http/v1/middleware"
	"stockcore/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Kitting   handlers.KittingService
	Receiving handlers.ReceivingService

	// Idempotency stores replayable responses for kit operations; nil disables it
	Idempotency middleware.IdempotencyStore

	// HealthChecks gate GET /health
	HealthChecks map[string]handlers.Pinger
	Version      string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Recovery sits inside ErrorHandler so panics are rendered as 500 JSON.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	health := handlers.NewHealthHandler(cfg.Version, cfg.HealthChecks)
	router.GET("/health", health.Ready)
	router.GET("/health/live", health.Live)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))

	base := handlers.NewBaseHandler()
	registerKitRoutes(v1, base, cfg)
	registerReceiptRoutes(v1, base, cfg)

	return router
}

// registerKitRoutes registers BOM, assembly and disassembly endpoints. The
// engines carry no idempotency key, so retries are deduplicated here.
func registerKitRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewKitHandler(base, cfg.Kitting)
	idem := middleware.Idempotency(cfg.Idempotency)

	rg.PUT("/kits/:id/bom", idem, h.SetBOM)
	rg.POST("/kits/:id/assemble", idem, h.Assemble)
	rg.POST("/kit-stock/:id/disassemble", idem, h.Disassemble)
}

// registerReceiptRoutes registers goods receipt endpoints.
func registerReceiptRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewReceiptHandler(base, cfg.Receiving)

	rg.POST("/purchase-orders/:id/receipts", h.Receive)
	rg.POST("/goods-receipts/:id/void", h.Void)
}
