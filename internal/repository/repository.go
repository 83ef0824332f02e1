package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/domain"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// AthleteRepository stores coaching profiles.
type AthleteRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Athlete, error)
	// Upsert creates the athlete or overwrites its reference pace.
	Upsert(ctx context.Context, athlete *domain.Athlete) error
	UpdateReferencePace(ctx context.Context, id primitive.ObjectID, pace float64) error
}

// RaceRepository is the race registry. Create returns ErrDuplicate when a race
// with the same (name, date) already exists.
type RaceRepository interface {
	Create(ctx context.Context, race *domain.Race) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Race, error)
	FindByKey(ctx context.Context, name string, date time.Time) (*domain.Race, error)
}

type PlanRepository interface {
	Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error)
	GetByAthleteID(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Plan, error)
	Update(ctx context.Context, plan *domain.Plan) error
}

// ScheduleRepository persists the Phase→Week→Day cascade. Both Save methods
// are all-or-nothing.
type ScheduleRepository interface {
	// SaveInitialSchedule writes the phases, week 1 and its days and flips
	// the plan from draft to active. It fails with ErrUpdateFailed if the
	// plan is no longer a draft.
	SaveInitialSchedule(ctx context.Context, planID primitive.ObjectID, phases []domain.Phase, week *domain.Week, days []domain.Day) error
	// SaveWeek writes a later week and its days. It fails with ErrNotFound if
	// the previous week is missing and ErrDuplicate if the week exists.
	SaveWeek(ctx context.Context, week *domain.Week, days []domain.Day) error
	GetPhases(ctx context.Context, planID primitive.ObjectID) ([]domain.Phase, error)
	GetWeek(ctx context.Context, planID primitive.ObjectID, weekNumber int) (*domain.Week, error)
	GetDays(ctx context.Context, weekID primitive.ObjectID) ([]domain.Day, error)
	GetDay(ctx context.Context, dayID primitive.ObjectID) (*domain.Day, error)
	WeekExists(ctx context.Context, planID primitive.ObjectID, weekNumber int) (bool, error)
}

// ActivityRepository stores activity summaries. Create returns ErrDuplicate
// when the upload's object key was already imported.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.Activity) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Activity, error)
	FindByObjectKey(ctx context.Context, objectKey string) (*domain.Activity, error)
	GetByAthleteID(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Activity, error)
}

// ExecutedDayRepository links days to activities. Create returns ErrDuplicate
// when the (day, activity) pair is already linked.
type ExecutedDayRepository interface {
	Create(ctx context.Context, executed *domain.ExecutedDay) (primitive.ObjectID, error)
	GetByDayAndActivity(ctx context.Context, dayID, activityID primitive.ObjectID) (*domain.ExecutedDay, error)
	GetByPlanWeek(ctx context.Context, planID primitive.ObjectID, weekNumber int) ([]domain.ExecutedDay, error)
	// MarkAdapted records that the execution's reference pace reached the athlete.
	MarkAdapted(ctx context.Context, id primitive.ObjectID) error
}
