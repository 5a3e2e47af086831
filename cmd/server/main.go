package main

import (
	"log"

	"github.com/kvbxss/RouteAnomalyDetection/internal/api"
	"github.com/kvbxss/RouteAnomalyDetection/internal/config"
	"github.com/kvbxss/RouteAnomalyDetection/internal/database"
	"github.com/kvbxss/RouteAnomalyDetection/internal/engine"
	"github.com/kvbxss/RouteAnomalyDetection/internal/handler"
	"github.com/kvbxss/RouteAnomalyDetection/internal/repository"
	"github.com/kvbxss/RouteAnomalyDetection/internal/service"
)

func main() {
	cfg := config.Load()

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()
	db := database.GetDB()

	flightRepo := repository.NewFlightRepository(db)
	modelRepo := repository.NewModelRepository(db)
	anomalyRepo := repository.NewAnomalyRepository(db)

	eng := engine.New(flightRepo, modelRepo,
		engine.WithTrees(cfg.Trees),
		engine.WithSampleSize(cfg.SampleSize),
		engine.WithSeed(cfg.Seed),
	)

	handlers := api.Handlers{
		Auth:      handler.NewAuthHandler(cfg),
		Flights:   handler.NewFlightHandler(service.NewFlightService(flightRepo)),
		Detection: handler.NewDetectionHandler(service.NewDetectionService(eng, anomalyRepo, modelRepo)),
	}

	router := api.SetupRouter(cfg, handlers)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
