// Package coach holds the deterministic training-plan engine: pace math,
// calendar mapping, phase scheduling, validation of generated plans, request
// assembly for the generative collaborator, and workout scoring.
package coach

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MetersPerMile = 1609.344

	minGoalSeconds = 60
	maxGoalSeconds = 86400

	maxComponentDigits = 5

	// Races at or above this distance read two-part goal times as H:MM.
	hourBasedMinMiles = 13.0
)

// RaceType is the fixed set of race distance classes.
type RaceType string

const (
	Race5K       RaceType = "5k"
	Race10K      RaceType = "10k"
	Race10Mile   RaceType = "10-mile"
	RaceHalf     RaceType = "half"
	RaceMarathon RaceType = "marathon"
)

var raceMiles = map[RaceType]float64{
	Race5K:       3.10686,
	Race10K:      6.21371,
	Race10Mile:   10.0,
	RaceHalf:     13.1094,
	RaceMarathon: 26.2188,
}

// RaceTypes lists the supported classes from shortest to longest.
func RaceTypes() []RaceType {
	return []RaceType{Race5K, Race10K, Race10Mile, RaceHalf, RaceMarathon}
}

// Valid reports whether t is one of the supported classes.
func (t RaceType) Valid() bool {
	_, ok := raceMiles[t]
	return ok
}

// DistanceMiles returns the canonical distance, or 0 for an unknown class.
func (t RaceType) DistanceMiles() float64 {
	return raceMiles[t]
}

// HourBased reports whether two-part goal times for this class mean H:MM.
func (t RaceType) HourBased() bool {
	return t.DistanceMiles() >= hourBasedMinMiles
}

// ParseRaceType accepts the canonical names and a few common spellings.
func ParseRaceType(s string) (RaceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "5k", "5km":
		return Race5K, nil
	case "10k", "10km":
		return Race10K, nil
	case "10-mile", "10mile", "10 mile", "10mi":
		return Race10Mile, nil
	case "half", "half-marathon", "half marathon", "hm":
		return RaceHalf, nil
	case "marathon", "full", "full-marathon":
		return RaceMarathon, nil
	}
	return "", &FormatError{Field: "race type", Value: s, Reason: "must be one of 5k, 10k, 10-mile, half, marathon"}
}

// PaceOffsets maps a race class to the seconds per mile added to a
// 5k-equivalent reference pace.
type PaceOffsets map[RaceType]int

// DefaultPaceOffsets is a coarse heuristic, not a physiological model.
func DefaultPaceOffsets() PaceOffsets {
	return PaceOffsets{
		Race5K:       0,
		Race10K:      10,
		Race10Mile:   15,
		RaceHalf:     20,
		RaceMarathon: 30,
	}
}

// FormatPace renders whole seconds as M:SS. Negative input renders as 0:00.
func FormatPace(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatPaceFloat rounds to the nearest second before formatting.
func FormatPaceFloat(seconds float64) string {
	return FormatPace(int(math.Round(seconds)))
}

// ParsePace converts an M:SS pace string to seconds.
func ParsePace(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, &FormatError{Field: "pace", Value: s, Reason: "expected M:SS"}
	}
	minutes, err := parseComponent(parts[0])
	if err != nil {
		return 0, &FormatError{Field: "pace", Value: s, Reason: "minutes are not a number"}
	}
	seconds, err := parseComponent(parts[1])
	if err != nil {
		return 0, &FormatError{Field: "pace", Value: s, Reason: "seconds are not a number"}
	}
	if seconds >= 60 {
		return 0, &FormatError{Field: "pace", Value: s, Reason: "seconds must be below 60"}
	}
	return minutes*60 + seconds, nil
}

// PredictedPace applies the class offset to a 5k-equivalent reference pace.
func PredictedPace(referencePace int, race RaceType, offsets PaceOffsets) int {
	if offsets == nil {
		offsets = DefaultPaceOffsets()
	}
	return referencePace + offsets[race]
}

// ParseGoalTime reads a finish time whose two-part form depends on the race
// class: H:MM for hour-based races, MM:SS otherwise. H:MM:SS is always accepted.
func ParseGoalTime(s string, race RaceType) (int, error) {
	if !race.Valid() {
		return 0, &FormatError{Field: "race type", Value: string(race), Reason: "unknown race type"}
	}
	parts := strings.Split(strings.TrimSpace(s), ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := parseComponent(p)
		if errors.Is(err, strconv.ErrRange) {
			return 0, &FormatError{Field: "goal time", Value: s, Reason: "component out of range"}
		}
		if err != nil {
			return 0, &FormatError{Field: "goal time", Value: s, Reason: "components must be numbers"}
		}
		nums[i] = n
	}

	var total int
	switch len(nums) {
	case 3:
		if nums[1] >= 60 || nums[2] >= 60 {
			return 0, &FormatError{Field: "goal time", Value: s, Reason: "minutes and seconds must be below 60"}
		}
		total = nums[0]*3600 + nums[1]*60 + nums[2]
	case 2:
		if nums[1] >= 60 {
			return 0, &FormatError{Field: "goal time", Value: s, Reason: "second component must be below 60"}
		}
		if race.HourBased() {
			total = nums[0]*3600 + nums[1]*60
		} else {
			total = nums[0]*60 + nums[1]
		}
	default:
		return 0, &FormatError{Field: "goal time", Value: s, Reason: "expected MM:SS, H:MM or H:MM:SS"}
	}

	if total < minGoalSeconds || total > maxGoalSeconds {
		return 0, &FormatError{Field: "goal time", Value: s, Reason: "duration must be between 1 minute and 24 hours"}
	}
	return total, nil
}

// GoalPacePerMile returns the goal pace in whole seconds per mile.
func GoalPacePerMile(goalTime string, race RaceType) (int, error) {
	total, err := ParseGoalTime(goalTime, race)
	if err != nil {
		return 0, err
	}
	return int(math.Round(float64(total) / race.DistanceMiles())), nil
}

// MetersToMiles converts a distance in meters.
func MetersToMiles(m float64) float64 {
	return m / MetersPerMile
}

// SpeedToPace converts meters per second to seconds per mile; 0 for no movement.
func SpeedToPace(mps float64) float64 {
	if mps <= 0 {
		return 0
	}
	return MetersPerMile / mps
}

// parseComponent reads one unsigned time component. Components are bounded
// so that hours*3600 cannot overflow.
func parseComponent(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	if len(s) > maxComponentDigits {
		return 0, strconv.ErrRange
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
