package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanStatus tracks the plan lifecycle.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanAbandoned PlanStatus = "abandoned"
)

// MinPreferredDays is how many training days must be chosen before a plan can
// be generated.
const MinPreferredDays = 5

// Terminal reports whether no further transitions are allowed.
func (s PlanStatus) Terminal() bool {
	return s == PlanCompleted || s == PlanAbandoned
}

// Plan is one athlete's training block toward one race.
type Plan struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AthleteID primitive.ObjectID  `bson:"athleteId" json:"athleteId"`
	RaceID    *primitive.ObjectID `bson:"raceId,omitempty" json:"raceId,omitempty"`
	Status    PlanStatus          `bson:"status" json:"status"`

	GoalTime   string     `bson:"goalTime,omitempty" json:"goalTime,omitempty"`
	StartDate  *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
	TotalWeeks int        `bson:"totalWeeks,omitempty" json:"totalWeeks,omitempty"`

	// Paces are seconds per mile.
	GoalPace      int `bson:"goalPace,omitempty" json:"goalPace,omitempty"`
	CurrentPace   int `bson:"currentPace,omitempty" json:"currentPace,omitempty"`
	PredictedPace int `bson:"predictedPace,omitempty" json:"predictedPace,omitempty"`

	BaselineMileage float64 `bson:"baselineMileage,omitempty" json:"baselineMileage,omitempty"`
	PreferredDays   []int   `bson:"preferredDays,omitempty" json:"preferredDays,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// MissingForGeneration lists every input that must be attached before a plan
// can be generated, in a stable order. Empty means the plan is ready.
func (p *Plan) MissingForGeneration() []string {
	var missing []string
	if p.RaceID == nil {
		missing = append(missing, "race")
	}
	if p.GoalTime == "" || p.GoalPace == 0 {
		missing = append(missing, "goalTime")
	}
	if p.StartDate == nil || p.TotalWeeks == 0 {
		missing = append(missing, "startDate")
	}
	if p.CurrentPace == 0 {
		missing = append(missing, "currentPace")
	}
	if p.BaselineMileage <= 0 {
		missing = append(missing, "baselineMileage")
	}
	if len(p.PreferredDays) < MinPreferredDays {
		missing = append(missing, "preferredDays")
	}
	return missing
}
