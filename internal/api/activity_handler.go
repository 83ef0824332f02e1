package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/service"
)

type ActivityHandler struct {
	activityService service.ActivityService
	scoreService    service.ScoreService
	logger          *slog.Logger
}

func NewActivityHandler(activityService service.ActivityService, scoreService service.ScoreService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, scoreService: scoreService, logger: logger}
}

// --- DTOs ---

type UploadURLRequest struct {
	ContentType string `json:"contentType"`
}

type ImportFITRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type ManualActivityRequest struct {
	StartTime        time.Time `json:"startTime" binding:"required"`
	DurationSeconds  float64   `json:"durationSeconds" binding:"required,gt=0"`
	DistanceMeters   float64   `json:"distanceMeters" binding:"required,gt=0"`
	AverageHeartRate float64   `json:"averageHeartRate" binding:"gte=0"`
	MaxHeartRate     float64   `json:"maxHeartRate" binding:"gte=0"`
}

type RecordExecutionRequest struct {
	ActivityID string `json:"activityId" binding:"required"`
}

// --- Handlers ---

// RequestUploadURL godoc
// @Summary Get a presigned URL to upload a FIT file
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UploadURLRequest false "Content type of the upload"
// @Success 200 {object} service.UploadURL
// @Router /activities/uploads [post]
func (h *ActivityHandler) RequestUploadURL(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	var req UploadURLRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}
	}
	up, err := h.activityService.RequestUploadURL(c.Request.Context(), athleteID, req.ContentType)
	if err != nil {
		respondError(c, h.logger, err, "Could not prepare upload.")
		return
	}
	c.JSON(http.StatusOK, up)
}

// ImportFIT godoc
// @Summary Import an uploaded FIT file as an activity
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ImportFITRequest true "Object key returned by the upload URL request"
// @Success 201 {object} domain.Activity
// @Failure 400 {object} gin.H "File is not a readable FIT activity"
// @Failure 404 {object} gin.H "Upload not found"
// @Router /activities/import [post]
func (h *ActivityHandler) ImportFIT(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	var req ImportFITRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	a, err := h.activityService.ImportFIT(c.Request.Context(), athleteID, req.ObjectKey)
	if err != nil {
		respondError(c, h.logger, err, "Failed to import activity.")
		return
	}
	c.JSON(http.StatusCreated, a)
}

// RecordActivity godoc
// @Summary Record an activity by hand
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ManualActivityRequest true "Activity summary"
// @Success 201 {object} domain.Activity
// @Router /activities [post]
func (h *ActivityHandler) RecordActivity(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	var req ManualActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	a, err := h.activityService.RecordActivity(c.Request.Context(), athleteID, service.ManualActivityInput{
		StartTime:        req.StartTime,
		DurationSeconds:  req.DurationSeconds,
		DistanceMeters:   req.DistanceMeters,
		AverageHeartRate: req.AverageHeartRate,
		MaxHeartRate:     req.MaxHeartRate,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to record activity.")
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ListActivities godoc
// @Summary List my activities
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Activity
// @Router /activities [get]
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	list, err := h.activityService.ListActivities(c.Request.Context(), athleteID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve activities.")
		return
	}
	if list == nil {
		list = []domain.Activity{}
	}
	c.JSON(http.StatusOK, list)
}

// GetActivity godoc
// @Summary Get one of my activities
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param activityId path string true "Activity's ObjectID Hex"
// @Success 200 {object} domain.Activity
// @Router /activities/{activityId} [get]
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	activityID, err := primitive.ObjectIDFromHex(c.Param("activityId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid activity ID format.")
		return
	}
	a, err := h.activityService.GetActivity(c.Request.Context(), athleteID, activityID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve activity.")
		return
	}
	c.JSON(http.StatusOK, a)
}

// RecordExecution godoc
// @Summary Link an activity to a planned day and score it
// @Tags Executions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param dayId path string true "Day's ObjectID Hex"
// @Param request body RecordExecutionRequest true "Activity to link"
// @Success 201 {object} service.ExecutionResult "Newly scored"
// @Success 200 {object} service.ExecutionResult "Already recorded"
// @Router /days/{dayId}/executions [post]
func (h *ActivityHandler) RecordExecution(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	dayID, err := primitive.ObjectIDFromHex(c.Param("dayId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid day ID format.")
		return
	}
	var req RecordExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	activityID, err := primitive.ObjectIDFromHex(req.ActivityID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid activity ID format.")
		return
	}

	res, err := h.scoreService.RecordExecution(c.Request.Context(), athleteID, dayID, activityID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to record execution.")
		return
	}
	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	c.JSON(code, res)
}

func (h *ActivityHandler) athlete(c *gin.Context) (primitive.ObjectID, bool) {
	athleteID, err := getAthleteIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify athlete.")
		return primitive.NilObjectID, false
	}
	return athleteID, true
}
