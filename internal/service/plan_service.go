package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/generator"
	"alcyxob/run-coach/internal/repository"
)

// PreviewStore holds generated but unconfirmed plans. A miss is normal.
type PreviewStore interface {
	Get(ctx context.Context, planID string) ([]byte, bool, error)
	Put(ctx context.Context, planID string, raw []byte) error
	Delete(ctx context.Context, planID string) error
}

// PlanOptions are the coaching knobs that come from configuration.
type PlanOptions struct {
	Templates             coach.Templates
	PaceOffsets           coach.PaceOffsets
	AllowPartialFirstWeek bool
}

type AttachRaceInput struct {
	Race      RaceInput
	GoalTime  string
	StartDate time.Time
}

type BaselineInput struct {
	CurrentPace   string // M:SS per mile
	WeeklyMileage float64
	PreferredDays []int
}

// WeekSchedule is a persisted week with its days in date order.
type WeekSchedule struct {
	Week domain.Week  `json:"week"`
	Days []domain.Day `json:"days"`
}

// PlanSchedule is an active plan with its phases and first week.
type PlanSchedule struct {
	Plan   domain.Plan    `json:"plan"`
	Phases []domain.Phase `json:"phases"`
	Week   WeekSchedule   `json:"week"`
}

type PlanService interface {
	CreatePlan(ctx context.Context, athleteID primitive.ObjectID) (*domain.Plan, error)
	GetPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*domain.Plan, error)
	ListPlans(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Plan, error)
	AttachRace(ctx context.Context, athleteID, planID primitive.ObjectID, in AttachRaceInput) (*domain.Plan, error)
	AttachBaseline(ctx context.Context, athleteID, planID primitive.ObjectID, in BaselineInput) (*domain.Plan, error)
	PreviewPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*coach.PlanStructure, error)
	ConfirmPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*PlanSchedule, error)
	GenerateWeek(ctx context.Context, athleteID, planID primitive.ObjectID, weekNumber int) (*WeekSchedule, error)
	GetSchedule(ctx context.Context, athleteID, planID primitive.ObjectID) (*PlanSchedule, error)
	GetWeek(ctx context.Context, athleteID, planID primitive.ObjectID, weekNumber int) (*WeekSchedule, error)
	UpdateStatus(ctx context.Context, athleteID, planID primitive.ObjectID, status domain.PlanStatus) (*domain.Plan, error)
}

type planService struct {
	planRepo     repository.PlanRepository
	scheduleRepo repository.ScheduleRepository
	athleteRepo  repository.AthleteRepository
	races        RaceService
	generator    generator.Generator
	previews     PreviewStore
	opts         PlanOptions
	logger       *slog.Logger
}

func NewPlanService(
	planRepo repository.PlanRepository,
	scheduleRepo repository.ScheduleRepository,
	athleteRepo repository.AthleteRepository,
	races RaceService,
	gen generator.Generator,
	previews PreviewStore,
	opts PlanOptions,
	logger *slog.Logger,
) PlanService {
	if opts.PaceOffsets == nil {
		opts.PaceOffsets = coach.DefaultPaceOffsets()
	}
	return &planService{
		planRepo:     planRepo,
		scheduleRepo: scheduleRepo,
		athleteRepo:  athleteRepo,
		races:        races,
		generator:    gen,
		previews:     previews,
		opts:         opts,
		logger:       logger,
	}
}

func (s *planService) CreatePlan(ctx context.Context, athleteID primitive.ObjectID) (*domain.Plan, error) {
	if athleteID == primitive.NilObjectID {
		return nil, errors.New("athlete ID is required")
	}
	plan := &domain.Plan{AthleteID: athleteID, Status: domain.PlanDraft}
	id, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = id
	s.logger.InfoContext(ctx, "plan created", "plan_id", id.Hex())
	return plan, nil
}

func (s *planService) GetPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*domain.Plan, error) {
	return s.ownedPlan(ctx, athleteID, planID)
}

func (s *planService) ListPlans(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Plan, error) {
	return s.planRepo.GetByAthleteID(ctx, athleteID)
}

// AttachRace registers the race, derives the week count from the start date
// and converts the goal time to a pace per mile.
func (s *planService) AttachRace(ctx context.Context, athleteID, planID primitive.ObjectID, in AttachRaceInput) (*domain.Plan, error) {
	plan, err := s.draftPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() {
		return nil, &coach.FormatError{Field: "startDate", Reason: "is required"}
	}

	race, err := s.races.Register(ctx, in.Race)
	if err != nil {
		return nil, err
	}
	start := coach.DateOnly(in.StartDate)
	if !race.Date.After(start) {
		return nil, &coach.FormatError{
			Field:  "startDate",
			Value:  start.Format(coach.DateLayout),
			Reason: "must be before the race date " + race.Date.Format(coach.DateLayout),
		}
	}
	goalPace, err := coach.GoalPacePerMile(in.GoalTime, race.Type)
	if err != nil {
		return nil, err
	}

	plan.RaceID = &race.ID
	plan.GoalTime = in.GoalTime
	plan.GoalPace = goalPace
	plan.StartDate = &start
	plan.TotalWeeks = coach.TotalWeeks(start, race.Date)
	if plan.CurrentPace > 0 {
		plan.PredictedPace = coach.PredictedPace(plan.CurrentPace, race.Type, s.opts.PaceOffsets)
	}

	if err = s.planRepo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	s.dropPreview(ctx, plan.ID)
	s.logger.InfoContext(ctx, "race attached",
		"plan_id", plan.ID.Hex(), "race_id", race.ID.Hex(),
		"total_weeks", plan.TotalWeeks, "goal_pace", coach.FormatPace(goalPace))
	return plan, nil
}

// AttachBaseline stores current fitness and weekly habits. The current pace
// also becomes the athlete's reference pace.
func (s *planService) AttachBaseline(ctx context.Context, athleteID, planID primitive.ObjectID, in BaselineInput) (*domain.Plan, error) {
	plan, err := s.draftPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	pace, err := coach.ParsePace(in.CurrentPace)
	if err != nil {
		return nil, err
	}
	if pace <= 0 {
		return nil, &coach.FormatError{Field: "currentPace", Value: in.CurrentPace, Reason: "must be positive"}
	}
	if in.WeeklyMileage <= 0 || math.IsNaN(in.WeeklyMileage) || math.IsInf(in.WeeklyMileage, 0) {
		return nil, &coach.FormatError{
			Field:  "weeklyMileage",
			Value:  strconv.FormatFloat(in.WeeklyMileage, 'f', -1, 64),
			Reason: "must be a positive number",
		}
	}
	days, err := normalizeDays(in.PreferredDays)
	if err != nil {
		return nil, err
	}

	plan.CurrentPace = pace
	plan.BaselineMileage = in.WeeklyMileage
	plan.PreferredDays = days
	if plan.RaceID != nil {
		race, err := s.races.GetRace(ctx, *plan.RaceID)
		if err != nil {
			return nil, err
		}
		plan.PredictedPace = coach.PredictedPace(pace, race.Type, s.opts.PaceOffsets)
	}

	if err = s.athleteRepo.Upsert(ctx, &domain.Athlete{ID: athleteID, ReferencePace: float64(pace)}); err != nil {
		return nil, fmt.Errorf("store reference pace: %w", err)
	}
	if err = s.planRepo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	s.dropPreview(ctx, plan.ID)
	s.logger.InfoContext(ctx, "baseline attached",
		"plan_id", plan.ID.Hex(), "current_pace", coach.FormatPace(pace), "preferred_days", days)
	return plan, nil
}

// PreviewPlan returns the generated structure without persisting it. A
// cached preview is reused until it expires.
func (s *planService) PreviewPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*coach.PlanStructure, error) {
	plan, err := s.draftPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	return s.preview(ctx, plan)
}

// ConfirmPlan persists the previewed phases and week 1 in one transaction
// and activates the plan. Confirming an active plan returns its schedule.
func (s *planService) ConfirmPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*PlanSchedule, error) {
	plan, err := s.ownedPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	switch plan.Status {
	case domain.PlanActive:
		return s.schedule(ctx, plan)
	case domain.PlanDraft:
	default:
		return nil, ErrPlanNotEditable
	}

	structure, err := s.preview(ctx, plan)
	if err != nil {
		return nil, err
	}

	start := s.effectiveStart(plan)
	spans := coach.PhaseDateSpans(start, structure.Phases)
	phases := make([]domain.Phase, len(spans))
	for i, sp := range spans {
		phases[i] = domain.Phase{
			PlanID:    plan.ID,
			Name:      sp.Name,
			Order:     i + 1,
			WeekCount: sp.WeekCount,
			StartDate: sp.StartDate,
			EndDate:   sp.EndDate,
		}
	}

	week, days, err := s.buildWeek(plan, start, structure.Week)
	if err != nil {
		return nil, err
	}

	err = s.scheduleRepo.SaveInitialSchedule(ctx, plan.ID, phases, week, days)
	if errors.Is(err, repository.ErrUpdateFailed) {
		// Another request confirmed or closed the plan first.
		current, getErr := s.ownedPlan(ctx, athleteID, planID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == domain.PlanActive {
			return s.schedule(ctx, current)
		}
		return nil, ErrPlanNotEditable
	}
	if err != nil {
		return nil, fmt.Errorf("save initial schedule: %w", err)
	}

	s.dropPreview(ctx, plan.ID)
	plan.Status = domain.PlanActive
	s.logger.InfoContext(ctx, "plan confirmed",
		"plan_id", plan.ID.Hex(), "phases", len(phases), "week1_days", len(days), "week1_miles", *week.TotalMileage)
	return &PlanSchedule{Plan: *plan, Phases: phases, Week: WeekSchedule{Week: *week, Days: days}}, nil
}

// GenerateWeek generates and stores week weekNumber. Weeks are generated
// strictly in order; an existing week is returned unchanged.
func (s *planService) GenerateWeek(ctx context.Context, athleteID, planID primitive.ObjectID, weekNumber int) (*WeekSchedule, error) {
	plan, err := s.ownedPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("generate week %d", weekNumber)
	switch plan.Status {
	case domain.PlanActive:
	case domain.PlanDraft:
		return nil, &coach.PrerequisiteError{Operation: op, Missing: []string{"confirmed plan"}}
	default:
		return nil, ErrPlanNotEditable
	}
	if weekNumber < 1 || weekNumber > plan.TotalWeeks {
		return nil, &coach.FormatError{
			Field:  "weekNumber",
			Value:  strconv.Itoa(weekNumber),
			Reason: fmt.Sprintf("must be between 1 and %d", plan.TotalWeeks),
		}
	}

	if existing, err := s.weekSchedule(ctx, plan.ID, weekNumber); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrWeekNotFound) {
		return nil, err
	}

	prevExists, err := s.scheduleRepo.WeekExists(ctx, plan.ID, weekNumber-1)
	if err != nil {
		return nil, err
	}
	if !prevExists {
		return nil, &coach.PrerequisiteError{Operation: op, Missing: []string{fmt.Sprintf("week %d", weekNumber-1)}}
	}
	prev, err := s.scheduleRepo.GetWeek(ctx, plan.ID, weekNumber-1)
	if err != nil {
		return nil, err
	}

	phases, err := s.scheduleRepo.GetPhases(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	phaseWeeks := make([]coach.PhaseWeeks, len(phases))
	for i, p := range phases {
		phaseWeeks[i] = coach.PhaseWeeks{Name: p.Name, WeekCount: p.WeekCount}
	}
	phase, ok := coach.PhaseForWeek(phaseWeeks, weekNumber)
	if !ok {
		return nil, fmt.Errorf("plan %s has no phase for week %d", plan.ID.Hex(), weekNumber)
	}
	var phaseID primitive.ObjectID
	for _, p := range phases {
		if p.Name == phase.Name {
			phaseID = p.ID
		}
	}

	in, err := s.requestInputs(ctx, plan)
	if err != nil {
		return nil, err
	}
	start := s.effectiveStart(plan)
	in.WeekNumber = weekNumber
	in.Phase = phase.Name
	if in.WeekStart, in.WeekEnd, err = coach.WeekSpan(start, weekNumber); err != nil {
		return nil, err
	}
	if prev.TotalMileage != nil {
		in.PreviousWeekMileage = *prev.TotalMileage
	}

	// No transaction is open across the generator call.
	raw, err := s.generator.Generate(ctx, coach.Assemble(s.opts.Templates.Week, in))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	weekPlan, err := coach.ValidateWeekStructure(raw, weekNumber)
	if err != nil {
		s.logger.WarnContext(ctx, "generated week rejected", "plan_id", plan.ID.Hex(), "week", weekNumber, "error", err)
		return nil, err
	}

	week, days, err := s.buildWeek(plan, start, *weekPlan)
	if err != nil {
		return nil, err
	}
	week.PhaseID = phaseID

	err = s.scheduleRepo.SaveWeek(ctx, week, days)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		s.logger.InfoContext(ctx, "week generated concurrently, returning stored copy", "plan_id", plan.ID.Hex(), "week", weekNumber)
		return s.weekSchedule(ctx, plan.ID, weekNumber)
	case errors.Is(err, repository.ErrNotFound):
		return nil, &coach.PrerequisiteError{Operation: op, Missing: []string{fmt.Sprintf("week %d", weekNumber-1)}}
	case err != nil:
		return nil, fmt.Errorf("save week %d: %w", weekNumber, err)
	}

	s.logger.InfoContext(ctx, "week generated",
		"plan_id", plan.ID.Hex(), "week", weekNumber, "phase", phase.Name, "miles", *week.TotalMileage)
	return &WeekSchedule{Week: *week, Days: days}, nil
}

func (s *planService) GetSchedule(ctx context.Context, athleteID, planID primitive.ObjectID) (*PlanSchedule, error) {
	plan, err := s.ownedPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	return s.schedule(ctx, plan)
}

func (s *planService) GetWeek(ctx context.Context, athleteID, planID primitive.ObjectID, weekNumber int) (*WeekSchedule, error) {
	if _, err := s.ownedPlan(ctx, athleteID, planID); err != nil {
		return nil, err
	}
	return s.weekSchedule(ctx, planID, weekNumber)
}

// UpdateStatus closes an active plan as completed or abandoned, or abandons
// a draft. Other transitions are rejected.
func (s *planService) UpdateStatus(ctx context.Context, athleteID, planID primitive.ObjectID, status domain.PlanStatus) (*domain.Plan, error) {
	plan, err := s.ownedPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == status {
		return plan, nil
	}
	allowed := (plan.Status == domain.PlanActive && status.Terminal()) ||
		(plan.Status == domain.PlanDraft && status == domain.PlanAbandoned)
	if !allowed {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, plan.Status, status)
	}

	plan.Status = status
	if err = s.planRepo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	s.dropPreview(ctx, plan.ID)
	s.logger.InfoContext(ctx, "plan status changed", "plan_id", plan.ID.Hex(), "status", status)
	return plan, nil
}

// preview checks prerequisites, then serves the cached preview or generates
// and validates a new one. Invalid output is reported, never retried.
func (s *planService) preview(ctx context.Context, plan *domain.Plan) (*coach.PlanStructure, error) {
	if missing := plan.MissingForGeneration(); len(missing) > 0 {
		return nil, &coach.PrerequisiteError{Operation: "generate plan", Missing: missing}
	}
	start := s.effectiveStart(plan)
	key := plan.ID.Hex()

	raw, ok, err := s.previews.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "preview cache read failed", "plan_id", key, "error", err)
	}
	if ok {
		structure, err := coach.ValidatePlanStructure(raw, start, plan.TotalWeeks)
		if err == nil {
			return structure, nil
		}
		s.logger.WarnContext(ctx, "discarding stale preview", "plan_id", key, "error", err)
	}

	in, err := s.requestInputs(ctx, plan)
	if err != nil {
		return nil, err
	}
	raw, err = s.generator.Generate(ctx, coach.Assemble(s.opts.Templates.Plan, in))
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	structure, err := coach.ValidatePlanStructure(raw, start, plan.TotalWeeks)
	if err != nil {
		s.logger.WarnContext(ctx, "generated plan rejected", "plan_id", key, "error", err)
		return nil, err
	}

	if err = s.previews.Put(ctx, key, raw); err != nil {
		s.logger.WarnContext(ctx, "preview cache write failed", "plan_id", key, "error", err)
	}
	return structure, nil
}

// requestInputs gathers the values interpolated into generation requests.
// When scoring has moved the athlete's reference pace, that pace replaces
// the baseline so later weeks follow current fitness.
func (s *planService) requestInputs(ctx context.Context, plan *domain.Plan) (coach.RequestInputs, error) {
	race, err := s.races.GetRace(ctx, *plan.RaceID)
	if err != nil {
		return coach.RequestInputs{}, err
	}

	current := plan.CurrentPace
	athlete, err := s.athleteRepo.GetByID(ctx, plan.AthleteID)
	switch {
	case err == nil && athlete.ReferencePace > 0:
		current = int(math.Round(athlete.ReferencePace))
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return coach.RequestInputs{}, err
	}

	start := s.effectiveStart(plan)
	phases, err := coach.SplitWeeks(plan.TotalWeeks)
	if err != nil {
		return coach.RequestInputs{}, err
	}
	return coach.RequestInputs{
		RaceName:         race.Name,
		RaceType:         race.Type,
		RaceDate:         race.Date,
		GoalTime:         plan.GoalTime,
		CurrentPace:      current,
		PredictedPace:    coach.PredictedPace(current, race.Type, s.opts.PaceOffsets),
		GoalPace:         plan.GoalPace,
		BaselineMileage:  plan.BaselineMileage,
		TotalWeeks:       plan.TotalWeeks,
		StartDate:        start,
		PreferredDays:    plan.PreferredDays,
		Phases:           phases,
		FirstWeekDays:    coach.DaysRemainingInFirstWeek(start),
		FirstWeekMileage: coach.FirstWeekMileage(plan.BaselineMileage, start),
	}, nil
}

// buildWeek maps a validated week onto calendar dates. Day-of-week values
// from the generator only pick the coordinate; each Day's weekday is then
// derived from its date.
func (s *planService) buildWeek(plan *domain.Plan, start time.Time, wp coach.WeekPlan) (*domain.Week, []domain.Day, error) {
	first, last, err := coach.WeekSpan(start, wp.WeekNumber)
	if err != nil {
		return nil, nil, err
	}
	miles := wp.Miles()
	week := &domain.Week{
		ID:           primitive.NewObjectID(),
		PlanID:       plan.ID,
		WeekNumber:   wp.WeekNumber,
		StartDate:    first,
		EndDate:      last,
		TotalMileage: &miles,
	}

	days := make([]domain.Day, 0, len(wp.Days))
	for _, dp := range wp.Days {
		date, err := coach.DateForCoordinate(start, wp.WeekNumber, dp.DayOfWeek, true)
		if err != nil {
			return nil, nil, err
		}
		days = append(days, domain.NewDay(plan.ID, week.ID, wp.WeekNumber, date, dp))
	}
	return week, days, nil
}

// effectiveStart is the date week 1 begins. Without partial first weeks the
// plan starts on the Monday on or after the requested date.
func (s *planService) effectiveStart(plan *domain.Plan) time.Time {
	start := coach.DateOnly(*plan.StartDate)
	if s.opts.AllowPartialFirstWeek {
		return start
	}
	return coach.NextMonday(start)
}

func (s *planService) schedule(ctx context.Context, plan *domain.Plan) (*PlanSchedule, error) {
	phases, err := s.scheduleRepo.GetPhases(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	out := &PlanSchedule{Plan: *plan, Phases: phases}
	if plan.Status == domain.PlanDraft {
		return out, nil
	}
	week, err := s.weekSchedule(ctx, plan.ID, 1)
	if err != nil {
		return nil, err
	}
	out.Week = *week
	return out, nil
}

func (s *planService) weekSchedule(ctx context.Context, planID primitive.ObjectID, weekNumber int) (*WeekSchedule, error) {
	week, err := s.scheduleRepo.GetWeek(ctx, planID, weekNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWeekNotFound
		}
		return nil, err
	}
	days, err := s.scheduleRepo.GetDays(ctx, week.ID)
	if err != nil {
		return nil, err
	}
	return &WeekSchedule{Week: *week, Days: days}, nil
}

func (s *planService) ownedPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*domain.Plan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.AthleteID != athleteID {
		return nil, ErrPlanAccessDenied
	}
	return plan, nil
}

func (s *planService) draftPlan(ctx context.Context, athleteID, planID primitive.ObjectID) (*domain.Plan, error) {
	plan, err := s.ownedPlan(ctx, athleteID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanDraft {
		return nil, ErrPlanNotEditable
	}
	return plan, nil
}

func (s *planService) dropPreview(ctx context.Context, planID primitive.ObjectID) {
	if err := s.previews.Delete(ctx, planID.Hex()); err != nil {
		s.logger.WarnContext(ctx, "preview cache delete failed", "plan_id", planID.Hex(), "error", err)
	}
}

// normalizeDays validates 1..7 values and returns them sorted without
// duplicates.
func normalizeDays(days []int) ([]int, error) {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 1 || d > 7 {
			return nil, &coach.FormatError{Field: "preferredDays", Value: strconv.Itoa(d), Reason: "day of week must be 1 (Monday) to 7 (Sunday)"}
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}
