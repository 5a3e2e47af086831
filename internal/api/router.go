package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kvbxss/RouteAnomalyDetection/internal/config"
	"github.com/kvbxss/RouteAnomalyDetection/internal/handler"
	"github.com/kvbxss/RouteAnomalyDetection/internal/middleware"
)

// Handlers bundles the HTTP handlers wired into the router
type Handlers struct {
	Auth      *handler.AuthHandler
	Flights   *handler.FlightHandler
	Detection *handler.DetectionHandler
}

// SetupRouter builds the Gin engine with all routes and middleware
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Route Anomaly Detection API is running",
		})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", h.Auth.Login)

		flights := api.Group("/flights")
		{
			flights.GET("", h.Flights.List)
			flights.GET("/:id", h.Flights.Get)
			flights.GET("/:id/anomalies", h.Detection.FlightAnomalies)
			flights.POST("/upload", middleware.Auth(cfg.JWTSecret), h.Flights.Upload)
		}

		// Training and detection are CPU-bound batch runs; keep them
		// authenticated and rate limited
		ml := api.Group("/ml")
		ml.Use(middleware.Auth(cfg.JWTSecret))
		ml.Use(middleware.RateLimit(10, time.Minute))
		{
			ml.POST("/train", h.Detection.Train)
			ml.POST("/detect", h.Detection.Detect)
			ml.GET("/models/:id", h.Detection.GetModel)
		}

		api.GET("/anomalies", h.Detection.ListAnomalies)
	}

	return r
}
