package coach

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Lap is one validated workout segment. Empty Pace or HeartRate means no target.
type Lap struct {
	Index     int     `json:"lapIndex"`
	Distance  float64 `json:"distance"`
	Pace      string  `json:"pace,omitempty"`
	HeartRate string  `json:"heartRate,omitempty"`
}

// DayPlan is one validated day coordinate. It carries no date: dates come
// from DateForCoordinate when the plan is persisted.
type DayPlan struct {
	DayOfWeek int    `json:"dayOfWeek"`
	Title     string `json:"title,omitempty"`
	Notes     string `json:"notes,omitempty"`
	WarmUp    []Lap  `json:"warmUp"`
	Workout   []Lap  `json:"workout"`
	CoolDown  []Lap  `json:"coolDown"`
}

// Miles sums the distance of every lap in the day.
func (d DayPlan) Miles() float64 {
	var total float64
	for _, laps := range [][]Lap{d.WarmUp, d.Workout, d.CoolDown} {
		for _, l := range laps {
			total += l.Distance
		}
	}
	return total
}

// WeekPlan is a validated week with days ordered Monday first.
type WeekPlan struct {
	WeekNumber int       `json:"weekNumber"`
	Days       []DayPlan `json:"days"`
}

// Miles sums the distance of every day in the week.
func (w WeekPlan) Miles() float64 {
	var total float64
	for _, d := range w.Days {
		total += d.Miles()
	}
	return total
}

// PlanStructure is a generated plan that passed validation.
type PlanStructure struct {
	Phases []PhaseWeeks `json:"phases"`
	Week   WeekPlan     `json:"week"`
}

var allowedPhaseKeys = map[string]bool{"name": true, "weekCount": true}

// ValidatePlanStructure checks a generated plan in a fixed order and fails on
// the first violation: phase shape, phase order, a single week 1, the week 1
// day set for start's weekday, then day and lap detail. Phase-embedded weeks
// arrays are dropped; week 1 found there is used when the top level lacks one.
func ValidatePlanStructure(raw []byte, start time.Time, totalWeeks int) (*PlanStructure, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	phasesRaw, ok := root["phases"].([]any)
	if !ok {
		return nil, violation("phases", "array of phases", typeName(root["phases"]))
	}
	if len(phasesRaw) == 0 {
		return nil, violation("phases", "4 phases", 0)
	}

	var salvaged map[string]any
	phases := make([]PhaseWeeks, 0, len(phasesRaw))
	sum := 0
	for i, pr := range phasesRaw {
		field := fmt.Sprintf("phases[%d]", i)
		obj, ok := pr.(map[string]any)
		if !ok {
			return nil, violation(field, "object", typeName(pr))
		}
		if embedded, ok := obj["weeks"]; ok {
			if salvaged == nil {
				salvaged = findWeekOne(embedded)
			}
			delete(obj, "weeks")
		}
		for _, k := range sortedKeys(obj) {
			if !allowedPhaseKeys[k] {
				return nil, violation(field+"."+k, "no extraneous fields", "present")
			}
		}
		name, _ := obj["name"].(string)
		if !PhaseName(name).Valid() {
			return nil, violation(field+".name", "one of "+strings.Join(phaseNames(), ", "), obj["name"])
		}
		count, ok := positiveInt(obj["weekCount"])
		if !ok {
			return nil, violation(field+".weekCount", "positive integer", obj["weekCount"])
		}
		phases = append(phases, PhaseWeeks{Name: PhaseName(name), WeekCount: count})
		sum += count
	}

	if err := ValidateOrder(phases); err != nil {
		return nil, err
	}
	if totalWeeks > 0 && sum != totalWeeks {
		return nil, violation("phases.weekCount", fmt.Sprintf("sum of %d weeks", totalWeeks), sum)
	}

	weekObj, err := selectWeek(root, salvaged)
	if err != nil {
		return nil, err
	}
	if n, ok := positiveInt(weekObj["weekNumber"]); !ok || n != 1 {
		return nil, violation("week.weekNumber", "1", weekObj["weekNumber"])
	}

	week, err := validateWeek(weekObj, "week", FirstWeekDays(start))
	if err != nil {
		return nil, err
	}
	week.WeekNumber = 1
	return &PlanStructure{Phases: phases, Week: week}, nil
}

// ValidateWeekStructure checks a generated full week (Monday to Sunday). The
// payload may be the week object itself or wrapped as {"week": {...}}.
func ValidateWeekStructure(raw []byte, weekNumber int) (*WeekPlan, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	weekObj := root
	if inner, ok := root["week"]; ok {
		if weekObj, ok = inner.(map[string]any); !ok {
			return nil, violation("week", "object", typeName(inner))
		}
	}
	if n, ok := positiveInt(weekObj["weekNumber"]); !ok || n != weekNumber {
		return nil, violation("week.weekNumber", strconv.Itoa(weekNumber), weekObj["weekNumber"])
	}
	week, err := validateWeek(weekObj, "week", []int{1, 2, 3, 4, 5, 6, 7})
	if err != nil {
		return nil, err
	}
	week.WeekNumber = weekNumber
	return &week, nil
}

// selectWeek finds the single week 1: a top-level week object, or a
// one-entry weeks array, never both.
func selectWeek(root map[string]any, salvaged map[string]any) (map[string]any, error) {
	ws, hasWeeks := root["weeks"]
	hasWeeks = hasWeeks && ws != nil
	if w, ok := root["week"]; ok && w != nil {
		if hasWeeks {
			return nil, violation("weeks", "no weeks array alongside week", lenOf(ws))
		}
		obj, ok := w.(map[string]any)
		if !ok {
			return nil, violation("week", "object", typeName(w))
		}
		return obj, nil
	}
	if hasWeeks {
		arr, ok := ws.([]any)
		if !ok || len(arr) != 1 {
			return nil, violation("weeks", "exactly one week", lenOf(ws))
		}
		obj, ok := arr[0].(map[string]any)
		if !ok {
			return nil, violation("weeks[0]", "object", typeName(arr[0]))
		}
		return obj, nil
	}
	if salvaged != nil {
		return salvaged, nil
	}
	return nil, violation("week", "week 1 with its days", "missing")
}

func validateWeek(obj map[string]any, field string, expected []int) (WeekPlan, error) {
	daysRaw, ok := obj["days"].([]any)
	if !ok {
		return WeekPlan{}, violation(field+".days", "array of days", typeName(obj["days"]))
	}
	if len(daysRaw) != len(expected) {
		return WeekPlan{}, violation(field+".days",
			fmt.Sprintf("%d days", len(expected)), fmt.Sprintf("%d days", len(daysRaw)))
	}

	dayObjs := make([]map[string]any, len(daysRaw))
	got := make([]int, len(daysRaw))
	for i, dr := range daysRaw {
		dayObj, ok := dr.(map[string]any)
		if !ok {
			return WeekPlan{}, violation(fmt.Sprintf("%s.days[%d]", field, i), "object", typeName(dr))
		}
		dow, ok := positiveInt(dayObj["dayOfWeek"])
		if !ok || dow > 7 {
			return WeekPlan{}, violation(fmt.Sprintf("%s.days[%d].dayOfWeek", field, i), "integer 1-7", dayObj["dayOfWeek"])
		}
		dayObjs[i] = dayObj
		got[i] = dow
	}
	sorted := append([]int(nil), got...)
	sort.Ints(sorted)
	if !equalInts(sorted, expected) {
		return WeekPlan{}, violation(field+".days.dayOfWeek", "days "+joinInts(expected), joinInts(sorted))
	}

	days := make([]DayPlan, len(dayObjs))
	for i, dayObj := range dayObjs {
		dayField := fmt.Sprintf("%s.days[%d]", field, i)
		day := DayPlan{DayOfWeek: got[i]}
		day.Title, _ = dayObj["title"].(string)
		day.Notes, _ = dayObj["notes"].(string)
		var err error
		if day.WarmUp, err = validateLaps(dayObj, dayField, "warmUp"); err != nil {
			return WeekPlan{}, err
		}
		if day.Workout, err = validateLaps(dayObj, dayField, "workout"); err != nil {
			return WeekPlan{}, err
		}
		if day.CoolDown, err = validateLaps(dayObj, dayField, "coolDown"); err != nil {
			return WeekPlan{}, err
		}
		days[i] = day
	}
	sort.Slice(days, func(a, b int) bool { return days[a].DayOfWeek < days[b].DayOfWeek })
	return WeekPlan{Days: days}, nil
}

func validateLaps(day map[string]any, dayField, key string) ([]Lap, error) {
	field := dayField + "." + key
	raw, ok := day[key].([]any)
	if !ok {
		return nil, violation(field, "array of laps", typeName(day[key]))
	}
	laps := make([]Lap, 0, len(raw))
	for i, lr := range raw {
		lapField := fmt.Sprintf("%s[%d]", field, i)
		obj, ok := lr.(map[string]any)
		if !ok {
			return nil, violation(lapField, "object", typeName(lr))
		}
		idx, ok := positiveInt(obj["lapIndex"])
		if !ok || idx != i+1 {
			return nil, violation(lapField+".lapIndex", strconv.Itoa(i+1), obj["lapIndex"])
		}
		dist, ok := number(obj["distance"])
		if !ok || dist <= 0 {
			return nil, violation(lapField+".distance", "positive number", obj["distance"])
		}
		lap := Lap{Index: idx, Distance: dist}

		switch p := obj["pace"].(type) {
		case nil:
		case string:
			if p != "" {
				if _, err := ParsePace(p); err != nil {
					return nil, violation(lapField+".pace", "M:SS pace or absent", p)
				}
				lap.Pace = p
			}
		default:
			return nil, violation(lapField+".pace", "M:SS pace or absent", p)
		}

		switch hr := obj["heartRate"].(type) {
		case nil:
		case string:
			lap.HeartRate = hr
		default:
			return nil, violation(lapField+".heartRate", "zone or range string", hr)
		}
		laps = append(laps, lap)
	}
	return laps, nil
}

func findWeekOne(v any) map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	for _, w := range arr {
		obj, ok := w.(map[string]any)
		if !ok {
			continue
		}
		if n, ok := positiveInt(obj["weekNumber"]); ok && n == 1 {
			return obj
		}
	}
	return nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, violation("$", "JSON object", err.Error())
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, violation("$", "JSON object", typeName(v))
	}
	return obj, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	}
	return 0, false
}

func positiveInt(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f <= 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "missing"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}

func lenOf(v any) string {
	if arr, ok := v.([]any); ok {
		return fmt.Sprintf("%d weeks", len(arr))
	}
	return typeName(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinInts(xs []int) string {
	s := make([]string, len(xs))
	for i, x := range xs {
		s[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(s, ",") + "]"
}
