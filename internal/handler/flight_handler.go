package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kvbxss/RouteAnomalyDetection/internal/models"
	"github.com/kvbxss/RouteAnomalyDetection/internal/service"
	"github.com/kvbxss/RouteAnomalyDetection/pkg/response"
)

// FlightHandler handles HTTP requests for flight data
type FlightHandler struct {
	flightService *service.FlightService
}

// NewFlightHandler creates a new flight handler
func NewFlightHandler(flightService *service.FlightService) *FlightHandler {
	return &FlightHandler{flightService: flightService}
}

// Upload handles POST /api/v1/flights/upload (multipart CSV)
func (h *FlightHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "CSV file is required (multipart field \"file\")")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.BadRequest(c, "Failed to open uploaded file")
		return
	}
	defer f.Close()

	result, err := h.flightService.IngestCSV(c.Request.Context(), f)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, result)
}

// List handles GET /api/v1/flights
func (h *FlightHandler) List(c *gin.Context) {
	var filter models.FlightFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	flights, total, err := h.flightService.ListFlights(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"data":  flights,
		"total": total,
	})
}

// Get handles GET /api/v1/flights/:id
func (h *FlightHandler) Get(c *gin.Context) {
	flight, err := h.flightService.GetFlight(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	if flight == nil {
		response.NotFound(c, "Flight not found")
		return
	}

	response.Success(c, flight)
}
