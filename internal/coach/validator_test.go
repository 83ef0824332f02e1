package coach

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lap(i int, dist float64, pace string) map[string]any {
	l := map[string]any{"lapIndex": i, "distance": dist}
	if pace != "" {
		l["pace"] = pace
	}
	return l
}

func day(dow int) map[string]any {
	return map[string]any{
		"dayOfWeek": dow,
		"title":     "Easy run",
		"warmUp":    []any{lap(1, 0.5, "10:00")},
		"workout":   []any{lap(1, 3, "9:00"), lap(2, 1, "8:30")},
		"coolDown":  []any{},
	}
}

func week(number int, days ...int) map[string]any {
	ds := make([]any, len(days))
	for i, d := range days {
		ds[i] = day(d)
	}
	return map[string]any{"weekNumber": number, "days": ds}
}

func phasesFor(counts ...int) []any {
	names := []string{"base", "build", "peak", "taper"}
	out := make([]any, len(counts))
	for i, c := range counts {
		out[i] = map[string]any{"name": names[i], "weekCount": c}
	}
	return out
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func requireViolation(t *testing.T, err error, field string) *SchemaViolation {
	t.Helper()
	var sv *SchemaViolation
	require.True(t, errors.As(err, &sv), "want SchemaViolation, got %v", err)
	assert.Equal(t, field, sv.Field)
	return sv
}

func TestValidatePlanStructureAccepts(t *testing.T) {
	start := date(t, "2026-10-21")
	raw := mustJSON(t, map[string]any{
		"phases": phasesFor(5, 7, 4, 4),
		"week":   week(1, 7, 3, 4, 5, 6),
	})

	plan, err := ValidatePlanStructure(raw, start, 20)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 4)
	assert.Equal(t, 1, plan.Week.WeekNumber)
	require.Len(t, plan.Week.Days, 5)
	assert.Equal(t, 3, plan.Week.Days[0].DayOfWeek)
	assert.Equal(t, 7, plan.Week.Days[4].DayOfWeek)
	assert.Equal(t, "8:30", plan.Week.Days[0].Workout[1].Pace)
	assert.InDelta(t, 4.5, plan.Week.Days[0].Miles(), 1e-9)
	assert.InDelta(t, 22.5, plan.Week.Miles(), 1e-9)
}

func TestValidatePlanStructureDayCountMismatch(t *testing.T) {
	start := date(t, "2026-10-21")
	raw := mustJSON(t, map[string]any{
		"phases": phasesFor(5, 7, 4, 4),
		"week":   week(1, 1, 2, 3, 4, 5, 6, 7),
	})
	_, err := ValidatePlanStructure(raw, start, 20)
	sv := requireViolation(t, err, "week.days")
	assert.Equal(t, "5 days", sv.Expected)
	assert.Equal(t, "7 days", sv.Actual)
}

func TestValidatePlanStructureMissingWeek(t *testing.T) {
	raw := mustJSON(t, map[string]any{"phases": phasesFor(5, 7, 4, 4)})
	_, err := ValidatePlanStructure(raw, date(t, "2026-10-19"), 20)
	requireViolation(t, err, "week")
}

func TestValidatePlanStructureSalvagesEmbeddedWeek(t *testing.T) {
	phases := phasesFor(5, 7, 4, 4)
	phases[0].(map[string]any)["weeks"] = []any{week(1, 1, 2, 3, 4, 5, 6, 7)}
	raw := mustJSON(t, map[string]any{"phases": phases})

	plan, err := ValidatePlanStructure(raw, date(t, "2026-10-19"), 20)
	require.NoError(t, err)
	assert.Len(t, plan.Week.Days, 7)
}

func TestValidatePlanStructureFailures(t *testing.T) {
	monday := date(t, "2026-10-19")
	tests := []struct {
		name   string
		mutate func(root map[string]any)
		field  string
	}{
		{
			name:   "extraneous phase field",
			mutate: func(r map[string]any) { r["phases"].([]any)[1].(map[string]any)["days"] = []any{} },
			field:  "phases[1].days",
		},
		{
			name:   "unknown phase name",
			mutate: func(r map[string]any) { r["phases"].([]any)[2].(map[string]any)["name"] = "race" },
			field:  "phases[2].name",
		},
		{
			name:   "zero week count",
			mutate: func(r map[string]any) { r["phases"].([]any)[0].(map[string]any)["weekCount"] = 0 },
			field:  "phases[0].weekCount",
		},
		{
			name:   "fractional week count",
			mutate: func(r map[string]any) { r["phases"].([]any)[0].(map[string]any)["weekCount"] = 2.5 },
			field:  "phases[0].weekCount",
		},
		{
			name:   "week counts do not sum",
			mutate: func(r map[string]any) { r["phases"] = phasesFor(5, 7, 4, 5) },
			field:  "phases.weekCount",
		},
		{
			name:   "wrong week number",
			mutate: func(r map[string]any) { r["week"].(map[string]any)["weekNumber"] = 2 },
			field:  "week.weekNumber",
		},
		{
			name:   "two weeks",
			mutate: func(r map[string]any) { delete(r, "week"); r["weeks"] = []any{week(1, 1), week(2, 1)} },
			field:  "weeks",
		},
		{
			name:   "weeks array alongside week",
			mutate: func(r map[string]any) { r["weeks"] = []any{week(1, 1), week(2, 1)} },
			field:  "weeks",
		},
		{
			name:   "single-entry weeks array alongside week",
			mutate: func(r map[string]any) { r["weeks"] = []any{week(1, 1, 2, 3, 4, 5, 6, 7)} },
			field:  "weeks",
		},
		{
			name:   "duplicate weekday",
			mutate: func(r map[string]any) { r["week"] = week(1, 1, 2, 3, 4, 5, 6, 6) },
			field:  "week.days.dayOfWeek",
		},
		{
			name: "missing cool-down array",
			mutate: func(r map[string]any) {
				delete(r["week"].(map[string]any)["days"].([]any)[3].(map[string]any), "coolDown")
			},
			field: "week.days[3].coolDown",
		},
		{
			name: "lap index gap",
			mutate: func(r map[string]any) {
				d := r["week"].(map[string]any)["days"].([]any)[0].(map[string]any)
				d["workout"] = []any{lap(1, 3, ""), lap(3, 1, "")}
			},
			field: "week.days[0].workout[1].lapIndex",
		},
		{
			name: "non-positive distance",
			mutate: func(r map[string]any) {
				d := r["week"].(map[string]any)["days"].([]any)[2].(map[string]any)
				d["warmUp"] = []any{lap(1, 0, "")}
			},
			field: "week.days[2].warmUp[0].distance",
		},
		{
			name: "invalid pace",
			mutate: func(r map[string]any) {
				d := r["week"].(map[string]any)["days"].([]any)[1].(map[string]any)
				d["workout"] = []any{lap(1, 2, "fast")}
			},
			field: "week.days[1].workout[0].pace",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := map[string]any{
				"phases": phasesFor(5, 7, 4, 4),
				"week":   week(1, 1, 2, 3, 4, 5, 6, 7),
			}
			tt.mutate(root)
			_, err := ValidatePlanStructure(mustJSON(t, root), monday, 20)
			requireViolation(t, err, tt.field)
		})
	}
}

func TestValidatePlanStructureOrderError(t *testing.T) {
	phases := phasesFor(5, 7, 4, 4)
	phases[0], phases[1] = phases[1], phases[0]
	raw := mustJSON(t, map[string]any{"phases": phases, "week": week(1, 1, 2, 3, 4, 5, 6, 7)})

	_, err := ValidatePlanStructure(raw, date(t, "2026-10-19"), 20)
	var oe *OrderError
	assert.True(t, errors.As(err, &oe))
}

func TestValidatePlanStructureNotJSON(t *testing.T) {
	_, err := ValidatePlanStructure([]byte("Here is your plan!"), date(t, "2026-10-19"), 20)
	requireViolation(t, err, "$")
}

func TestValidateWeekStructure(t *testing.T) {
	raw := mustJSON(t, map[string]any{"week": week(3, 7, 6, 5, 4, 3, 2, 1)})
	w, err := ValidateWeekStructure(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, w.WeekNumber)
	assert.Equal(t, 1, w.Days[0].DayOfWeek)

	bare := mustJSON(t, week(3, 1, 2, 3, 4, 5, 6, 7))
	_, err = ValidateWeekStructure(bare, 3)
	require.NoError(t, err)

	_, err = ValidateWeekStructure(raw, 4)
	requireViolation(t, err, "week.weekNumber")

	partial := mustJSON(t, map[string]any{"week": week(3, 3, 4, 5, 6, 7)})
	_, err = ValidateWeekStructure(partial, 3)
	requireViolation(t, err, "week.days")
}
