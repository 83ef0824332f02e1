package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
)

// Race is a registry entry. (Name, Date) is the natural key; the store keeps
// at most one row per key.
type Race struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Type          coach.RaceType     `bson:"type" json:"type"`
	DistanceMiles float64            `bson:"distanceMiles" json:"distanceMiles"`
	Date          time.Time          `bson:"date" json:"date"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
