package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/service"
)

type RaceHandler struct {
	raceService service.RaceService
	logger      *slog.Logger
}

func NewRaceHandler(raceService service.RaceService, logger *slog.Logger) *RaceHandler {
	return &RaceHandler{raceService: raceService, logger: logger}
}

type RegisterRaceRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
	Date string `json:"date" binding:"required"` // YYYY-MM-DD
}

// RegisterRace godoc
// @Summary Look up or register a race by name and date
// @Tags Races
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param race body RegisterRaceRequest true "Race"
// @Success 200 {object} domain.Race
// @Router /races [post]
func (h *RaceHandler) RegisterRace(c *gin.Context) {
	var req RegisterRaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	date, err := coach.ParseDate(req.Date)
	if err != nil {
		respondError(c, h.logger, err, "Invalid race date.")
		return
	}
	race, err := h.raceService.Register(c.Request.Context(), service.RaceInput{Name: req.Name, Type: req.Type, Date: date})
	if err != nil {
		respondError(c, h.logger, err, "Failed to register race.")
		return
	}
	c.JSON(http.StatusOK, race)
}

// GetRace godoc
// @Summary Get a race from the registry
// @Tags Races
// @Produce json
// @Security BearerAuth
// @Param raceId path string true "Race's ObjectID Hex"
// @Success 200 {object} domain.Race
// @Failure 404 {object} gin.H "Race not found"
// @Router /races/{raceId} [get]
func (h *RaceHandler) GetRace(c *gin.Context) {
	raceID, err := primitive.ObjectIDFromHex(c.Param("raceId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid race ID format.")
		return
	}
	race, err := h.raceService.GetRace(c.Request.Context(), raceID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve race.")
		return
	}
	c.JSON(http.StatusOK, race)
}
