package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Athlete is the coaching profile behind an authenticated identity. The ID is
// the identity's own id; accounts themselves live elsewhere.
type Athlete struct {
	ID primitive.ObjectID `bson:"_id" json:"id"`
	// ReferencePace is the 5k-equivalent pace in seconds per mile. It is
	// fractional because execution scoring nudges it by sub-second steps.
	ReferencePace float64   `bson:"referencePace" json:"referencePace"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}
