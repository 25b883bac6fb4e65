package http

import (
	"github.com/EternisAI/silo-license/internal/api/http/handler"
	"github.com/EternisAI/silo-license/internal/api/http/middleware"
	"github.com/EternisAI/silo-license/internal/license"
	"github.com/EternisAI/silo-license/internal/metrics"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Registry *license.Registry
	Metrics  *metrics.Recorder
	Version  string
}

func SetupRoute(engine *gin.Engine, config Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.Version)
	engine.GET("/health", healthHandler.Check)

	if srvs.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(srvs.Metrics.Handler()))
	}

	if srvs.Registry == nil {
		return
	}

	licenseHandler := handler.NewLicenseHandler(srvs.Registry, srvs.Metrics)

	api := engine.Group("/api")
	api.POST("/validate",
		middleware.RateLimit(config.ValidateRateLimit, config.ValidateRateBurst),
		licenseHandler.Validate)

	admin := api.Group("/licenses", middleware.APIKeyAuth(config.AdminAPIKey))
	admin.POST("", licenseHandler.CreateLicense)
	admin.GET("", licenseHandler.ListLicenses)
	admin.GET("/:id", licenseHandler.GetLicense)
	admin.POST("/:id/deactivate", licenseHandler.DeactivateLicense)
}
