package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/service"
)

type PlanHandler struct {
	planService  service.PlanService
	scoreService service.ScoreService
	logger       *slog.Logger
}

func NewPlanHandler(planService service.PlanService, scoreService service.ScoreService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{planService: planService, scoreService: scoreService, logger: logger}
}

// --- DTOs ---

type AttachRaceRequest struct {
	RaceName  string `json:"raceName" binding:"required"`
	RaceType  string `json:"raceType" binding:"required"`
	RaceDate  string `json:"raceDate" binding:"required"` // YYYY-MM-DD
	GoalTime  string `json:"goalTime" binding:"required"`
	StartDate string `json:"startDate" binding:"required"` // YYYY-MM-DD
}

type AttachBaselineRequest struct {
	CurrentPace   string  `json:"currentPace" binding:"required"` // M:SS per mile
	WeeklyMileage float64 `json:"weeklyMileage" binding:"required,gt=0"`
	PreferredDays []int   `json:"preferredDays" binding:"required,dive,min=1,max=7"`
}

type UpdatePlanStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=completed abandoned"`
}

// PlanResponse renders paces as M:SS next to the raw seconds.
type PlanResponse struct {
	ID              string                `json:"id"`
	Status          domain.PlanStatus     `json:"status"`
	RaceID          string                `json:"raceId,omitempty"`
	GoalTime        string                `json:"goalTime,omitempty"`
	StartDate       string                `json:"startDate,omitempty"`
	TotalWeeks      int                   `json:"totalWeeks,omitempty"`
	GoalPace        *PaceResponse         `json:"goalPace,omitempty"`
	CurrentPace     *PaceResponse         `json:"currentPace,omitempty"`
	PredictedPace   *PaceResponse         `json:"predictedPace,omitempty"`
	BaselineMileage float64               `json:"baselineMileage,omitempty"`
	PreferredDays   []int                 `json:"preferredDays,omitempty"`
	Missing         []string              `json:"missingForGeneration,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	Phases          []domain.Phase        `json:"phases,omitempty"`
	Week            *service.WeekSchedule `json:"week,omitempty"`
}

type PaceResponse struct {
	SecondsPerMile int    `json:"secondsPerMile"`
	Display        string `json:"display"`
}

func paceResponse(seconds int) *PaceResponse {
	if seconds <= 0 {
		return nil
	}
	return &PaceResponse{SecondsPerMile: seconds, Display: coach.FormatPace(seconds)}
}

func MapPlanToResponse(p *domain.Plan) PlanResponse {
	resp := PlanResponse{
		ID:              p.ID.Hex(),
		Status:          p.Status,
		GoalTime:        p.GoalTime,
		TotalWeeks:      p.TotalWeeks,
		GoalPace:        paceResponse(p.GoalPace),
		CurrentPace:     paceResponse(p.CurrentPace),
		PredictedPace:   paceResponse(p.PredictedPace),
		BaselineMileage: p.BaselineMileage,
		PreferredDays:   p.PreferredDays,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.RaceID != nil {
		resp.RaceID = p.RaceID.Hex()
	}
	if p.StartDate != nil {
		resp.StartDate = p.StartDate.Format(coach.DateLayout)
	}
	if p.Status == domain.PlanDraft {
		resp.Missing = p.MissingForGeneration()
	}
	return resp
}

func MapScheduleToResponse(s *service.PlanSchedule) PlanResponse {
	resp := MapPlanToResponse(&s.Plan)
	resp.Phases = s.Phases
	if len(s.Week.Days) > 0 {
		week := s.Week
		resp.Week = &week
	}
	return resp
}

// --- Handlers ---

// CreatePlan godoc
// @Summary Start a new draft plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 201 {object} PlanResponse
// @Router /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	plan, err := h.planService.CreatePlan(c.Request.Context(), athleteID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create plan.")
		return
	}
	c.JSON(http.StatusCreated, MapPlanToResponse(plan))
}

// ListPlans godoc
// @Summary List my plans
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PlanResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return
	}
	plans, err := h.planService.ListPlans(c.Request.Context(), athleteID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve plans.")
		return
	}
	resp := make([]PlanResponse, 0, len(plans))
	for i := range plans {
		resp = append(resp, MapPlanToResponse(&plans[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetPlan godoc
// @Summary Get a plan with its phases and first week
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Success 200 {object} PlanResponse
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 404 {object} gin.H "Plan not found"
// @Router /plans/{planId} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	sched, err := h.planService.GetSchedule(c.Request.Context(), athleteID, planID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve plan.")
		return
	}
	c.JSON(http.StatusOK, MapScheduleToResponse(sched))
}

// AttachRace godoc
// @Summary Attach the target race, goal time and start date
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Param race body AttachRaceRequest true "Race details"
// @Success 200 {object} PlanResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 409 {object} gin.H "Plan is no longer a draft"
// @Router /plans/{planId}/race [put]
func (h *PlanHandler) AttachRace(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	var req AttachRaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	raceDate, err := coach.ParseDate(req.RaceDate)
	if err != nil {
		respondError(c, h.logger, err, "Invalid race date.")
		return
	}
	startDate, err := coach.ParseDate(req.StartDate)
	if err != nil {
		respondError(c, h.logger, err, "Invalid start date.")
		return
	}

	plan, err := h.planService.AttachRace(c.Request.Context(), athleteID, planID, service.AttachRaceInput{
		Race:      service.RaceInput{Name: req.RaceName, Type: req.RaceType, Date: raceDate},
		GoalTime:  req.GoalTime,
		StartDate: startDate,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to attach race.")
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// AttachBaseline godoc
// @Summary Attach current fitness and preferred training days
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Param baseline body AttachBaselineRequest true "Baseline"
// @Success 200 {object} PlanResponse
// @Router /plans/{planId}/baseline [put]
func (h *PlanHandler) AttachBaseline(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	var req AttachBaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	plan, err := h.planService.AttachBaseline(c.Request.Context(), athleteID, planID, service.BaselineInput{
		CurrentPace:   req.CurrentPace,
		WeeklyMileage: req.WeeklyMileage,
		PreferredDays: req.PreferredDays,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to attach baseline.")
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// PreviewPlan godoc
// @Summary Generate (or reuse) the plan preview without saving it
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Success 200 {object} coach.PlanStructure
// @Failure 412 {object} gin.H "Missing prerequisites"
// @Failure 502 {object} gin.H "Generated plan failed validation"
// @Failure 504 {object} gin.H "Generator timed out"
// @Router /plans/{planId}/preview [post]
func (h *PlanHandler) PreviewPlan(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	structure, err := h.planService.PreviewPlan(c.Request.Context(), athleteID, planID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to preview plan.")
		return
	}
	c.JSON(http.StatusOK, structure)
}

// ConfirmPlan godoc
// @Summary Save the previewed plan and activate it
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Success 201 {object} PlanResponse
// @Router /plans/{planId}/confirm [post]
func (h *PlanHandler) ConfirmPlan(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	sched, err := h.planService.ConfirmPlan(c.Request.Context(), athleteID, planID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to confirm plan.")
		return
	}
	c.JSON(http.StatusCreated, MapScheduleToResponse(sched))
}

// UpdatePlanStatus godoc
// @Summary Complete or abandon a plan
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Param status body UpdatePlanStatusRequest true "New status"
// @Success 200 {object} PlanResponse
// @Failure 409 {object} gin.H "Invalid transition"
// @Router /plans/{planId}/status [patch]
func (h *PlanHandler) UpdatePlanStatus(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	var req UpdatePlanStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	plan, err := h.planService.UpdateStatus(c.Request.Context(), athleteID, planID, domain.PlanStatus(req.Status))
	if err != nil {
		respondError(c, h.logger, err, "Failed to update plan status.")
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// GenerateWeek godoc
// @Summary Generate the next week of an active plan
// @Tags Weeks
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Param weekNumber path int true "Global week number"
// @Success 201 {object} service.WeekSchedule
// @Failure 412 {object} gin.H "Previous week not generated yet"
// @Router /plans/{planId}/weeks/{weekNumber} [post]
func (h *PlanHandler) GenerateWeek(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	weekNumber, ok := weekParam(c)
	if !ok {
		return
	}
	week, err := h.planService.GenerateWeek(c.Request.Context(), athleteID, planID, weekNumber)
	if err != nil {
		respondError(c, h.logger, err, "Failed to generate week.")
		return
	}
	c.JSON(http.StatusCreated, week)
}

// GetWeek godoc
// @Summary Get a generated week with its days
// @Tags Weeks
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Param weekNumber path int true "Global week number"
// @Success 200 {object} service.WeekSchedule
// @Failure 404 {object} gin.H "Week not generated"
// @Router /plans/{planId}/weeks/{weekNumber} [get]
func (h *PlanHandler) GetWeek(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	weekNumber, ok := weekParam(c)
	if !ok {
		return
	}
	week, err := h.planService.GetWeek(c.Request.Context(), athleteID, planID, weekNumber)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve week.")
		return
	}
	c.JSON(http.StatusOK, week)
}

// GetWeekExecutions godoc
// @Summary List scored workouts of a week
// @Tags Weeks
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan's ObjectID Hex"
// @Param weekNumber path int true "Global week number"
// @Success 200 {array} domain.ExecutedDay
// @Router /plans/{planId}/weeks/{weekNumber}/executions [get]
func (h *PlanHandler) GetWeekExecutions(c *gin.Context) {
	athleteID, planID, ok := h.planParams(c)
	if !ok {
		return
	}
	weekNumber, ok := weekParam(c)
	if !ok {
		return
	}
	executed, err := h.scoreService.ListWeekExecutions(c.Request.Context(), athleteID, planID, weekNumber)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve executions.")
		return
	}
	if executed == nil {
		executed = []domain.ExecutedDay{}
	}
	c.JSON(http.StatusOK, executed)
}

func (h *PlanHandler) athlete(c *gin.Context) (primitive.ObjectID, bool) {
	athleteID, err := getAthleteIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify athlete.")
		return primitive.NilObjectID, false
	}
	return athleteID, true
}

func (h *PlanHandler) planParams(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	athleteID, ok := h.athlete(c)
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	planID, err := primitive.ObjectIDFromHex(c.Param("planId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format.")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return athleteID, planID, true
}

func weekParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("weekNumber"))
	if err != nil || n < 1 {
		abortWithError(c, http.StatusBadRequest, "Invalid week number.")
		return 0, false
	}
	return n, true
}
