package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
)

type ActivitySource string

const (
	SourceFIT    ActivitySource = "fit"
	SourceManual ActivitySource = "manual"
)

// Activity is an executed run, either decoded from an uploaded FIT file or
// entered by hand. For FIT imports the file stays in object storage under
// ObjectKey.
type Activity struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AthleteID        primitive.ObjectID `bson:"athleteId" json:"athleteId"`
	Source           ActivitySource     `bson:"source" json:"source"`
	ObjectKey        string             `bson:"objectKey,omitempty" json:"-"`
	StartTime        time.Time          `bson:"startTime" json:"startTime"`
	DurationSeconds  float64            `bson:"durationSeconds" json:"durationSeconds"`
	DistanceMeters   float64            `bson:"distanceMeters" json:"distanceMeters"`
	AverageSpeed     float64            `bson:"averageSpeed" json:"averageSpeed"` // m/s
	AverageHeartRate float64            `bson:"averageHeartRate,omitempty" json:"averageHeartRate,omitempty"`
	MaxHeartRate     float64            `bson:"maxHeartRate,omitempty" json:"maxHeartRate,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}

// Metrics returns the values the scoring code compares against a plan.
func (a *Activity) Metrics() coach.ExecutedMetrics {
	return coach.ExecutedMetrics{
		AverageSpeed:     a.AverageSpeed,
		AverageHeartRate: a.AverageHeartRate,
		DistanceMeters:   a.DistanceMeters,
	}
}
