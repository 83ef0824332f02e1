package coach

import (
	"math"
	"strconv"
	"strings"
)

const (
	qualityWeight   = 0.8
	weekTrendWeight = 0.2

	// Seconds per mile the reference pace improves at a perfect quality score.
	adaptationStep = 0.8
	// No single update may improve the reference pace by more than this share.
	maxAdaptationShare = 0.10
)

// PlannedTargets are the targets of a planned day. Zero values mean no target.
type PlannedTargets struct {
	PacePerMile float64 `json:"pacePerMile" bson:"pacePerMile"`
	HRLow       int     `json:"hrLow" bson:"hrLow"`
	HRHigh      int     `json:"hrHigh" bson:"hrHigh"`
	Miles       float64 `json:"miles" bson:"miles"`
}

// ExecutedMetrics are the summary values of an executed activity.
type ExecutedMetrics struct {
	AverageSpeed     float64 `json:"averageSpeed"` // m/s
	AverageHeartRate float64 `json:"averageHeartRate"`
	DistanceMeters   float64 `json:"distanceMeters"`
}

// PacePerMile converts the average speed to seconds per mile.
func (m ExecutedMetrics) PacePerMile() float64 {
	return SpeedToPace(m.AverageSpeed)
}

// Miles converts the distance to miles.
func (m ExecutedMetrics) Miles() float64 {
	return MetersToMiles(m.DistanceMeters)
}

// Score is the scoring payload stored with an executed day.
type Score struct {
	PaceVariance    float64 `json:"paceVariance" bson:"paceVariance"`
	HRHitPercent    float64 `json:"hrHitPercent" bson:"hrHitPercent"`
	MileageVariance float64 `json:"mileageVariance" bson:"mileageVariance"`
	QualityScore    float64 `json:"qualityScore" bson:"qualityScore"`
	WeekTrendScore  float64 `json:"weekTrendScore" bson:"weekTrendScore"`
	OverallScore    float64 `json:"overallScore" bson:"overallScore"`
}

// PaceVariance is |actual - planned| / planned, or 0 without a planned pace.
func PaceVariance(actual, planned float64) float64 {
	if planned <= 0 {
		return 0
	}
	return math.Abs(actual-planned) / planned
}

// MileageVariance is |actual - planned| / planned, or 0 without a planned mileage.
func MileageVariance(actual, planned float64) float64 {
	if planned <= 0 {
		return 0
	}
	return math.Abs(actual-planned) / planned
}

// HeartRateHitPercent is 100 inside [low, high] and falls linearly to 0 as the
// distance from the nearest bound reaches half the range width. Without a
// target range the day counts as a hit; without heart-rate data it does not.
func HeartRateHitPercent(avg float64, low, high int) float64 {
	if low <= 0 && high <= 0 {
		return 100
	}
	if avg <= 0 {
		return 0
	}
	lo, hi := float64(low), float64(high)
	if lo > hi {
		lo, hi = hi, lo
	}
	if avg >= lo && avg <= hi {
		return 100
	}
	dist := lo - avg
	if avg > hi {
		dist = avg - hi
	}
	half := (hi - lo) / 2
	if half <= 0 {
		return 0
	}
	return math.Max(0, 100*(1-dist/half))
}

// QualityScore averages the pace, heart-rate and mileage terms, each floored at 0.
func QualityScore(paceVariance, hrHitPercent, mileageVariance float64) float64 {
	pace := math.Max(0, 100-100*paceVariance)
	hr := math.Max(0, hrHitPercent)
	miles := math.Max(0, 100-100*mileageVariance)
	return (pace + hr + miles) / 3
}

// OverallScore blends the quality score with the slower week trend.
func OverallScore(quality, weekTrend float64) float64 {
	return qualityWeight*quality + weekTrendWeight*weekTrend
}

// WeekTrend is the mean of the quality scores recorded this week, or
// fallback when none have been recorded yet.
func WeekTrend(scores []float64, fallback float64) float64 {
	if len(scores) == 0 {
		return fallback
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// ScoreWorkout compares an executed activity with its planned day.
// previousQuality holds quality scores of other executed days in the same week.
func ScoreWorkout(planned PlannedTargets, executed ExecutedMetrics, previousQuality []float64) Score {
	s := Score{
		PaceVariance:    PaceVariance(executed.PacePerMile(), planned.PacePerMile),
		HRHitPercent:    HeartRateHitPercent(executed.AverageHeartRate, planned.HRLow, planned.HRHigh),
		MileageVariance: MileageVariance(executed.Miles(), planned.Miles),
	}
	s.QualityScore = QualityScore(s.PaceVariance, s.HRHitPercent, s.MileageVariance)
	s.WeekTrendScore = WeekTrend(append(append([]float64(nil), previousQuality...), s.QualityScore), s.QualityScore)
	s.OverallScore = OverallScore(s.QualityScore, s.WeekTrendScore)
	return s
}

// AdaptReferencePace nudges the reference pace faster by quality/100 × 0.8
// seconds per mile, never by more than 10% of the current reference.
func AdaptReferencePace(reference, quality float64) float64 {
	if reference <= 0 {
		return reference
	}
	step := math.Max(0, quality) / 100 * adaptationStep
	return reference - math.Min(step, reference*maxAdaptationShare)
}

// PlannedTargetsFor derives targets from a day: the distance-weighted pace of
// the main workout laps, the first heart-rate range found there, and the
// distance of every lap.
func PlannedTargetsFor(d DayPlan) PlannedTargets {
	t := PlannedTargets{Miles: d.Miles()}

	var weighted, dist float64
	for _, l := range d.Workout {
		if p, err := ParsePace(l.Pace); err == nil {
			weighted += float64(p) * l.Distance
			dist += l.Distance
		}
		if t.HRLow == 0 {
			if lo, hi, ok := ParseHeartRateRange(l.HeartRate); ok {
				t.HRLow, t.HRHigh = lo, hi
			}
		}
	}
	if dist > 0 {
		t.PacePerMile = weighted / dist
	}
	return t
}

// ParseHeartRateRange reads ranges such as "140-150" or "140 – 150 bpm".
// Zone labels like "Z2" carry no numeric range and report false.
func ParseHeartRateRange(s string) (int, int, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "bpm"))
	s = strings.ReplaceAll(s, "–", "-")
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, false
	}
	low, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, false
	}
	high, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || low <= 0 || high < low {
		return 0, 0, false
	}
	return low, high, true
}
