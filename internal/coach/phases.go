package coach

import (
	"fmt"
	"time"
)

// PhaseName is one of the four fixed training blocks.
type PhaseName string

const (
	PhaseBase  PhaseName = "base"
	PhaseBuild PhaseName = "build"
	PhasePeak  PhaseName = "peak"
	PhaseTaper PhaseName = "taper"
)

// PhaseOrder is the only valid sequence of phases.
var PhaseOrder = []PhaseName{PhaseBase, PhaseBuild, PhasePeak, PhaseTaper}

// Valid reports whether n is one of the fixed phase names.
func (n PhaseName) Valid() bool {
	for _, p := range PhaseOrder {
		if p == n {
			return true
		}
	}
	return false
}

// PhaseWeeks is a phase and the number of weeks it spans.
type PhaseWeeks struct {
	Name      PhaseName `json:"name"`
	WeekCount int       `json:"weekCount"`
}

// PhaseSpan is a phase with its absolute calendar dates.
type PhaseSpan struct {
	Name      PhaseName `json:"name"`
	WeekCount int       `json:"weekCount"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Phase shares of the total in percent; taper takes what is left.
const (
	basePercent  = 25
	buildPercent = 35
	peakPercent  = 20
)

// SplitWeeks partitions total weeks into base, build, peak and taper.
func SplitWeeks(total int) ([]PhaseWeeks, error) {
	if total < len(PhaseOrder) {
		return nil, fmt.Errorf("cannot split %d weeks into %d phases", total, len(PhaseOrder))
	}
	base := total * basePercent / 100
	build := total * buildPercent / 100
	peak := total * peakPercent / 100
	return []PhaseWeeks{
		{Name: PhaseBase, WeekCount: base},
		{Name: PhaseBuild, WeekCount: build},
		{Name: PhasePeak, WeekCount: peak},
		{Name: PhaseTaper, WeekCount: total - base - build - peak},
	}, nil
}

// PhaseDateSpans lays phases end to end over the plan's week calendar. The
// first phase starts the Monday on or after start; each phase ends on the
// Sunday closing its last week as WeekSpan numbers them, so a partial week 1
// counts toward the first phase.
func PhaseDateSpans(start time.Time, phases []PhaseWeeks) []PhaseSpan {
	spans := make([]PhaseSpan, 0, len(phases))
	phaseStart := NextMonday(start)
	lastWeek := 0
	for _, p := range phases {
		lastWeek += p.WeekCount
		end := phaseStart.AddDate(0, 0, -1)
		if _, last, err := WeekSpan(start, lastWeek); err == nil {
			end = last
		}
		if lastWeek == 1 && end.Before(phaseStart) {
			// The phase is only the partial week 1.
			phaseStart = DateOnly(start)
		}
		spans = append(spans, PhaseSpan{
			Name:      p.Name,
			WeekCount: p.WeekCount,
			StartDate: phaseStart,
			EndDate:   end,
		})
		phaseStart = NextMonday(end.AddDate(0, 0, 1))
	}
	return spans
}

// ValidateOrder fails with *OrderError unless phases are exactly base, build, peak, taper.
func ValidateOrder(phases []PhaseWeeks) error {
	got := make([]string, len(phases))
	for i, p := range phases {
		got[i] = string(p.Name)
	}
	if len(phases) != len(PhaseOrder) {
		return &OrderError{Got: got}
	}
	for i, p := range phases {
		if p.Name != PhaseOrder[i] {
			return &OrderError{Got: got}
		}
	}
	return nil
}

// PhaseForWeek returns the phase owning a 1-based global week number.
func PhaseForWeek(phases []PhaseWeeks, week int) (PhaseWeeks, bool) {
	last := 0
	for _, p := range phases {
		last += p.WeekCount
		if week >= 1 && week <= last {
			return p, true
		}
	}
	return PhaseWeeks{}, false
}

func phaseNames() []string {
	names := make([]string, len(PhaseOrder))
	for i, p := range PhaseOrder {
		names[i] = string(p)
	}
	return names
}
