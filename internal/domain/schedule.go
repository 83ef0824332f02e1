package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
)

// Phase is one of the four ordered training blocks of a plan.
type Phase struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID        primitive.ObjectID `bson:"planId" json:"planId"`
	Name          coach.PhaseName    `bson:"name" json:"name"`
	Order         int                `bson:"order" json:"order"` // 1-based
	WeekCount     int                `bson:"weekCount" json:"weekCount"`
	StartDate     time.Time          `bson:"startDate" json:"startDate"`
	EndDate       time.Time          `bson:"endDate" json:"endDate"`
	TargetMileage *float64           `bson:"targetMileage,omitempty" json:"targetMileage,omitempty"`
	ActualMileage *float64           `bson:"actualMileage,omitempty" json:"actualMileage,omitempty"`
}

// Week carries a global, 1-based week number.
type Week struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID       primitive.ObjectID `bson:"planId" json:"planId"`
	PhaseID      primitive.ObjectID `bson:"phaseId" json:"phaseId"`
	WeekNumber   int                `bson:"weekNumber" json:"weekNumber"`
	StartDate    time.Time          `bson:"startDate" json:"startDate"`
	EndDate      time.Time          `bson:"endDate" json:"endDate"`
	TotalMileage *float64           `bson:"totalMileage,omitempty" json:"totalMileage,omitempty"`
}

// Lap is one segment of a day's warm-up, workout or cool-down. Laps are
// stored inside their Day document.
type Lap struct {
	Index     int     `bson:"lapIndex" json:"lapIndex"`
	Distance  float64 `bson:"distance" json:"distance"`
	Pace      string  `bson:"pace,omitempty" json:"pace,omitempty"`
	HeartRate string  `bson:"heartRate,omitempty" json:"heartRate,omitempty"`
}

// Day is one scheduled workout. Date is authoritative; DayOfWeek is always
// derived from it.
type Day struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID     primitive.ObjectID `bson:"planId" json:"planId"`
	WeekID     primitive.ObjectID `bson:"weekId" json:"weekId"`
	WeekNumber int                `bson:"weekNumber" json:"weekNumber"`
	Date       time.Time          `bson:"date" json:"date"`
	DayOfWeek  int                `bson:"dayOfWeek" json:"dayOfWeek"`
	Title      string             `bson:"title,omitempty" json:"title,omitempty"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	WarmUp     []Lap              `bson:"warmUp" json:"warmUp"`
	Workout    []Lap              `bson:"workout" json:"workout"`
	CoolDown   []Lap              `bson:"coolDown" json:"coolDown"`
}

// SetDate sets the calendar date and recomputes DayOfWeek from it.
func (d *Day) SetDate(date time.Time) {
	d.Date = coach.DateOnly(date)
	d.DayOfWeek = coach.Weekday(d.Date)
}

// Plan converts the persisted day back to the validated plan shape the
// scoring code works with.
func (d *Day) Plan() coach.DayPlan {
	return coach.DayPlan{
		DayOfWeek: d.DayOfWeek,
		Title:     d.Title,
		Notes:     d.Notes,
		WarmUp:    toCoachLaps(d.WarmUp),
		Workout:   toCoachLaps(d.Workout),
		CoolDown:  toCoachLaps(d.CoolDown),
	}
}

// NewDay builds a Day from a validated day plan. The date comes from the
// calendar coordinate; the plan's own dayOfWeek is not copied.
func NewDay(planID, weekID primitive.ObjectID, weekNumber int, date time.Time, p coach.DayPlan) Day {
	d := Day{
		PlanID:     planID,
		WeekID:     weekID,
		WeekNumber: weekNumber,
		Title:      p.Title,
		Notes:      p.Notes,
		WarmUp:     fromCoachLaps(p.WarmUp),
		Workout:    fromCoachLaps(p.Workout),
		CoolDown:   fromCoachLaps(p.CoolDown),
	}
	d.SetDate(date)
	return d
}

func fromCoachLaps(in []coach.Lap) []Lap {
	out := make([]Lap, len(in))
	for i, l := range in {
		out[i] = Lap{Index: l.Index, Distance: l.Distance, Pace: l.Pace, HeartRate: l.HeartRate}
	}
	return out
}

func toCoachLaps(in []Lap) []coach.Lap {
	out := make([]coach.Lap, len(in))
	for i, l := range in {
		out[i] = coach.Lap{Index: l.Index, Distance: l.Distance, Pace: l.Pace, HeartRate: l.HeartRate}
	}
	return out
}
