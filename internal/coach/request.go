package coach

import (
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates/generation.yaml
var defaultTemplates []byte

// RuleGroup is a topic heading with its rule bullets.
type RuleGroup struct {
	Topic string   `yaml:"topic"`
	Rules []string `yaml:"rules"`
}

// OutputFormat is the contract the collaborator's answer must follow.
type OutputFormat struct {
	Schema  string `yaml:"schema"`
	Example string `yaml:"example"`
}

// RequestTemplate is the stored configuration for one kind of generation request.
type RequestTemplate struct {
	Role           string       `yaml:"role"`
	Instructions   []string     `yaml:"instructions"`
	RequiredFields []string     `yaml:"required_fields"`
	Rules          []RuleGroup  `yaml:"rules"`
	Output         OutputFormat `yaml:"output"`
}

// Templates holds the request templates for a full plan and for a single later week.
type Templates struct {
	Plan RequestTemplate `yaml:"plan"`
	Week RequestTemplate `yaml:"week"`
}

// LoadTemplates parses a YAML template document.
func LoadTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse generation templates: %w", err)
	}
	if t.Plan.Role == "" || t.Week.Role == "" {
		return nil, fmt.Errorf("generation templates need a role for both plan and week")
	}
	return &t, nil
}

// DefaultTemplates returns the embedded templates.
func DefaultTemplates() (*Templates, error) {
	return LoadTemplates(defaultTemplates)
}

// RequestInputs are the computed values interpolated into a template.
type RequestInputs struct {
	RaceName         string
	RaceType         RaceType
	RaceDate         time.Time
	GoalTime         string
	CurrentPace      int
	PredictedPace    int
	GoalPace         int
	BaselineMileage  float64
	TotalWeeks       int
	StartDate        time.Time
	PreferredDays    []int
	Phases           []PhaseWeeks
	FirstWeekDays    int
	FirstWeekMileage float64

	// Week requests only.
	WeekNumber          int
	Phase               PhaseName
	WeekStart           time.Time
	WeekEnd             time.Time
	PreviousWeekMileage float64
}

// FirstWeekMileage scales baseline mileage by the share of week 1 that remains.
func FirstWeekMileage(baseline float64, start time.Time) float64 {
	return round1(baseline * float64(DaysRemainingInFirstWeek(start)) / 7)
}

// Assemble renders role, instructions, required fields, rules and the output
// contract in that order, then substitutes {{placeholders}} from in.
func Assemble(t RequestTemplate, in RequestInputs) string {
	var b strings.Builder

	b.WriteString("# Role\n")
	b.WriteString(strings.TrimSpace(t.Role))
	b.WriteString("\n\n# Instructions\n")
	for _, ins := range t.Instructions {
		b.WriteString("- ")
		b.WriteString(ins)
		b.WriteString("\n")
	}
	b.WriteString("\n# Required fields\n")
	for _, f := range t.RequiredFields {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\n# Rules\n")
	for _, g := range t.Rules {
		b.WriteString("## ")
		b.WriteString(g.Topic)
		b.WriteString("\n")
		for _, r := range g.Rules {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n# Output format\nSchema:\n")
	b.WriteString(strings.TrimSpace(t.Output.Schema))
	b.WriteString("\n\nExample:\n")
	b.WriteString(strings.TrimSpace(t.Output.Example))
	b.WriteString("\n")

	return in.replacer().Replace(b.String())
}

func (in RequestInputs) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{{race_name}}", in.RaceName,
		"{{race_type}}", string(in.RaceType),
		"{{race_distance}}", strconv.FormatFloat(in.RaceType.DistanceMiles(), 'f', 1, 64),
		"{{race_date}}", formatDate(in.RaceDate),
		"{{goal_time}}", in.GoalTime,
		"{{current_pace}}", FormatPace(in.CurrentPace),
		"{{predicted_pace}}", FormatPace(in.PredictedPace),
		"{{goal_pace}}", FormatPace(in.GoalPace),
		"{{baseline_mileage}}", formatMiles(in.BaselineMileage),
		"{{total_weeks}}", strconv.Itoa(in.TotalWeeks),
		"{{start_date}}", formatDate(in.StartDate),
		"{{start_weekday}}", WeekdayName(Weekday(in.StartDate)),
		"{{start_weekday_number}}", strconv.Itoa(Weekday(in.StartDate)),
		"{{preferred_days}}", formatDays(in.PreferredDays),
		"{{phase_plan}}", formatPhases(in.Phases),
		"{{first_week_days}}", strconv.Itoa(in.FirstWeekDays),
		"{{first_week_day_list}}", formatDays(FirstWeekDays(in.StartDate)),
		"{{first_week_mileage}}", formatMiles(in.FirstWeekMileage),
		"{{week_number}}", strconv.Itoa(in.WeekNumber),
		"{{phase}}", string(in.Phase),
		"{{week_start}}", formatDate(in.WeekStart),
		"{{week_end}}", formatDate(in.WeekEnd),
		"{{previous_week_mileage}}", formatMiles(in.PreviousWeekMileage),
	)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func formatMiles(m float64) string {
	return strconv.FormatFloat(round1(m), 'f', 1, 64)
}

func formatDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d (%s)", d, WeekdayName(d))
	}
	return strings.Join(parts, ", ")
}

func formatPhases(phases []PhaseWeeks) string {
	parts := make([]string, len(phases))
	for i, p := range phases {
		parts[i] = fmt.Sprintf("%s %d weeks", p.Name, p.WeekCount)
	}
	return strings.Join(parts, ", ")
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
