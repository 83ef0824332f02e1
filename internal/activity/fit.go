// Package activity decodes uploaded activity files into the summary values
// that scoring needs.
package activity

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tormoder/fit"
)

var ErrNoSession = errors.New("fit file has no session")

// Summary is the whole-activity view of a FIT file.
type Summary struct {
	StartTime        time.Time
	DurationSeconds  float64
	DistanceMeters   float64
	AverageSpeed     float64 // m/s
	AverageHeartRate float64
	MaxHeartRate     float64
}

// DecodeFIT reads a FIT activity file and summarizes its first session.
func DecodeFIT(r io.Reader) (*Summary, error) {
	file, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	act, err := file.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit activity: %w", err)
	}
	if len(act.Sessions) == 0 {
		return nil, ErrNoSession
	}
	return summarize(act.Sessions[0])
}

func summarize(s *fit.SessionMsg) (*Summary, error) {
	sum := &Summary{
		StartTime:       s.StartTime.UTC(),
		DurationSeconds: valid(s.GetTotalTimerTimeScaled()),
		DistanceMeters:  valid(s.GetTotalDistanceScaled()),
	}
	if sum.DurationSeconds == 0 {
		sum.DurationSeconds = valid(s.GetTotalElapsedTimeScaled())
	}

	// Newer devices only fill the enhanced field.
	sum.AverageSpeed = valid(s.GetEnhancedAvgSpeedScaled())
	if sum.AverageSpeed == 0 {
		sum.AverageSpeed = valid(s.GetAvgSpeedScaled())
	}
	if sum.AverageSpeed == 0 && sum.DurationSeconds > 0 {
		sum.AverageSpeed = sum.DistanceMeters / sum.DurationSeconds
	}

	if s.AvgHeartRate != 0xFF {
		sum.AverageHeartRate = float64(s.AvgHeartRate)
	}
	if s.MaxHeartRate != 0xFF {
		sum.MaxHeartRate = float64(s.MaxHeartRate)
	}

	if sum.DistanceMeters <= 0 {
		return nil, errors.New("fit session has no distance")
	}
	return sum, nil
}

// valid maps the NaN that marks an unset FIT field to zero.
func valid(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
