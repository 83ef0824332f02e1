package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
)

// ExecutionResult is the stored link plus the athlete's reference pace after
// adaptation.
type ExecutionResult struct {
	Executed      domain.ExecutedDay `json:"executedDay"`
	ReferencePace float64            `json:"referencePace"`
	Created       bool               `json:"created"`
}

type ScoreService interface {
	// RecordExecution links an activity to a planned day and scores it.
	// Recording the same pair again returns the stored result.
	RecordExecution(ctx context.Context, athleteID, dayID, activityID primitive.ObjectID) (*ExecutionResult, error)
	ListWeekExecutions(ctx context.Context, athleteID, planID primitive.ObjectID, weekNumber int) ([]domain.ExecutedDay, error)
}

type scoreService struct {
	planRepo     repository.PlanRepository
	scheduleRepo repository.ScheduleRepository
	activityRepo repository.ActivityRepository
	executedRepo repository.ExecutedDayRepository
	athleteRepo  repository.AthleteRepository
	logger       *slog.Logger
}

func NewScoreService(
	planRepo repository.PlanRepository,
	scheduleRepo repository.ScheduleRepository,
	activityRepo repository.ActivityRepository,
	executedRepo repository.ExecutedDayRepository,
	athleteRepo repository.AthleteRepository,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		planRepo:     planRepo,
		scheduleRepo: scheduleRepo,
		activityRepo: activityRepo,
		executedRepo: executedRepo,
		athleteRepo:  athleteRepo,
		logger:       logger,
	}
}

func (s *scoreService) RecordExecution(ctx context.Context, athleteID, dayID, activityID primitive.ObjectID) (*ExecutionResult, error) {
	day, err := s.scheduleRepo.GetDay(ctx, dayID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDayNotFound
		}
		return nil, err
	}
	plan, err := s.planRepo.GetByID(ctx, day.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.AthleteID != athleteID {
		return nil, ErrPlanAccessDenied
	}
	act, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	if act.AthleteID != athleteID {
		return nil, ErrActivityAccessDenied
	}

	if existing, err := s.executedRepo.GetByDayAndActivity(ctx, dayID, activityID); err == nil {
		return s.existing(ctx, athleteID, existing)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	reference := float64(plan.CurrentPace)
	athlete, err := s.athleteRepo.GetByID(ctx, athleteID)
	switch {
	case err == nil && athlete.ReferencePace > 0:
		reference = athlete.ReferencePace
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	weekDone, err := s.executedRepo.GetByPlanWeek(ctx, plan.ID, day.WeekNumber)
	if err != nil {
		return nil, err
	}
	previous := make([]float64, 0, len(weekDone))
	for _, e := range weekDone {
		previous = append(previous, e.Score.QualityScore)
	}

	targets := coach.PlannedTargetsFor(day.Plan())
	score := coach.ScoreWorkout(targets, act.Metrics(), previous)

	executed := &domain.ExecutedDay{
		AthleteID:  athleteID,
		PlanID:     plan.ID,
		DayID:      dayID,
		ActivityID: activityID,
		WeekNumber: day.WeekNumber,
		Date:       day.Date,
		Snapshot: domain.PlanSnapshot{
			Status:        plan.Status,
			GoalPace:      plan.GoalPace,
			PredictedPace: plan.PredictedPace,
			ReferencePace: reference,
			Targets:       targets,
		},
		Score:       score,
		AdaptedPace: coach.AdaptReferencePace(reference, score.QualityScore),
	}
	id, err := s.executedRepo.Create(ctx, executed)
	if errors.Is(err, repository.ErrDuplicate) {
		stored, getErr := s.executedRepo.GetByDayAndActivity(ctx, dayID, activityID)
		if errors.Is(getErr, repository.ErrNotFound) {
			return nil, &coach.ConflictError{Resource: "executed day", Key: dayID.Hex() + " " + activityID.Hex()}
		}
		if getErr != nil {
			return nil, getErr
		}
		return s.existing(ctx, athleteID, stored)
	}
	if err != nil {
		return nil, fmt.Errorf("store executed day: %w", err)
	}
	executed.ID = id

	if err = s.adapt(ctx, executed); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "workout scored",
		"day_id", dayID.Hex(), "activity_id", activityID.Hex(),
		"quality", score.QualityScore, "overall", score.OverallScore,
		"reference_pace", coach.FormatPaceFloat(executed.AdaptedPace))
	return &ExecutionResult{Executed: *executed, ReferencePace: executed.AdaptedPace, Created: true}, nil
}

func (s *scoreService) ListWeekExecutions(ctx context.Context, athleteID, planID primitive.ObjectID, weekNumber int) ([]domain.ExecutedDay, error) {
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
	return s.executedRepo.GetByPlanWeek(ctx, planID, weekNumber)
}

// adapt writes the execution's adapted pace to the athlete and then marks
// the execution. An execution left unmarked is adapted again when the same
// pair is recorded.
func (s *scoreService) adapt(ctx context.Context, e *domain.ExecutedDay) error {
	if err := s.athleteRepo.Upsert(ctx, &domain.Athlete{ID: e.AthleteID, ReferencePace: e.AdaptedPace}); err != nil {
		return fmt.Errorf("update reference pace: %w", err)
	}
	if err := s.executedRepo.MarkAdapted(ctx, e.ID); err != nil {
		return fmt.Errorf("mark executed day adapted: %w", err)
	}
	e.Adapted = true
	return nil
}

func (s *scoreService) existing(ctx context.Context, athleteID primitive.ObjectID, e *domain.ExecutedDay) (*ExecutionResult, error) {
	var current float64
	athlete, err := s.athleteRepo.GetByID(ctx, athleteID)
	switch {
	case err == nil:
		current = athlete.ReferencePace
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	ref := e.Snapshot.ReferencePace
	if current > 0 {
		ref = current
	}
	// Rows without an adapted pace have nothing to apply.
	if e.Adapted || e.AdaptedPace <= 0 {
		return &ExecutionResult{Executed: *e, ReferencePace: ref}, nil
	}

	// A pace that moved past both values was adapted by a later execution
	// and is not rolled back.
	if current > 0 && current != e.Snapshot.ReferencePace && current != e.AdaptedPace {
		if err := s.executedRepo.MarkAdapted(ctx, e.ID); err != nil {
			return nil, fmt.Errorf("mark executed day adapted: %w", err)
		}
		e.Adapted = true
		return &ExecutionResult{Executed: *e, ReferencePace: ref}, nil
	}
	s.logger.WarnContext(ctx, "re-applying reference pace adaptation",
		"executed_day_id", e.ID.Hex(), "reference_pace", coach.FormatPaceFloat(e.AdaptedPace))
	if err := s.adapt(ctx, e); err != nil {
		return nil, err
	}
	return &ExecutionResult{Executed: *e, ReferencePace: e.AdaptedPace}, nil
}
