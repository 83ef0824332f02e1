package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
)

// PlanSnapshot freezes the plan values a workout was scored against, so later
// plan edits do not rewrite history.
type PlanSnapshot struct {
	Status        PlanStatus           `bson:"status" json:"status"`
	GoalPace      int                  `bson:"goalPace" json:"goalPace"`
	PredictedPace int                  `bson:"predictedPace" json:"predictedPace"`
	ReferencePace float64              `bson:"referencePace" json:"referencePace"`
	Targets       coach.PlannedTargets `bson:"targets" json:"targets"`
}

// ExecutedDay links a planned Day to the Activity that fulfilled it. The
// (DayID, ActivityID) pair is unique.
type ExecutedDay struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AthleteID   primitive.ObjectID `bson:"athleteId" json:"athleteId"`
	PlanID      primitive.ObjectID `bson:"planId" json:"planId"`
	DayID       primitive.ObjectID `bson:"dayId" json:"dayId"`
	ActivityID  primitive.ObjectID `bson:"activityId" json:"activityId"`
	WeekNumber  int                `bson:"weekNumber" json:"weekNumber"`
	Date        time.Time          `bson:"date" json:"date"`
	Snapshot    PlanSnapshot       `bson:"snapshot" json:"snapshot"`
	Score       coach.Score        `bson:"score" json:"score"`
	// AdaptedPace is the reference pace this execution moves the athlete to.
	// Adapted stays false until it has been written to the athlete.
	AdaptedPace float64            `bson:"adaptedPace" json:"adaptedPace"`
	Adapted     bool               `bson:"adapted" json:"adapted"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
