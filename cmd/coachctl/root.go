package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"alcyxob/run-coach/internal/activity"
	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/config"
)

var (
	heading = color.New(color.Bold)
	faint   = color.New(color.Faint)
	good    = color.New(color.FgGreen)
	bad     = color.New(color.FgRed)
)

type options struct {
	configDir    string
	allowPartial bool
}

func (o *options) offsets() (coach.PaceOffsets, error) {
	if o.configDir == "" {
		return coach.DefaultPaceOffsets(), nil
	}
	cfg, err := config.LoadConfig(o.configDir)
	if err != nil {
		return nil, err
	}
	return cfg.Coach.Offsets()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "coachctl",
		Short: "Offline tools for race training plans",
		Long: `coachctl runs the plan engine's deterministic parts without a server.

EXAMPLES:

  coachctl split 20
  coachctl calendar 2026-10-21 2027-03-10
  coachctl pace goal marathon 3:30:00
  coachctl pace predict half 8:30
  coachctl validate plan.json --start 2026-10-21 --weeks 20
  coachctl score --planned-pace 8:00 --hr 140-150 --planned-miles 6 --pace 8:10 --avg-hr 145 --miles 6.3
  coachctl fit morning-run.fit`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config", "", "directory holding config.yaml (pace offsets)")
	root.PersistentFlags().BoolVar(&opts.allowPartial, "partial-first-week", true, "let week 1 start mid-week")

	root.AddCommand(
		newSplitCmd(),
		newCalendarCmd(opts),
		newPaceCmd(opts),
		newValidateCmd(opts),
		newScoreCmd(),
		newFITCmd(),
	)
	return root
}

func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <total-weeks>",
		Short: "Split a plan length into base, build, peak and taper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("total weeks must be a number: %w", err)
			}
			phases, err := coach.SplitWeeks(total)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range phases {
				fmt.Fprintf(out, "%s %d weeks\n", heading.Sprint(padRight(string(p.Name), 6)), p.WeekCount)
			}
			return nil
		},
	}
}

func newCalendarCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar <start-date> <race-date>",
		Short: "Show plan length, week 1 and phase dates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := coach.ParseDate(args[0])
			if err != nil {
				return err
			}
			race, err := coach.ParseDate(args[1])
			if err != nil {
				return err
			}
			if !race.After(start) {
				return fmt.Errorf("race date %s must be after start %s", args[1], args[0])
			}
			if !opts.allowPartial {
				start = coach.NextMonday(start)
			}

			total := coach.TotalWeeks(start, race)
			phases, err := coach.SplitWeeks(total)
			if err != nil {
				return err
			}
			first, last, err := coach.WeekSpan(start, 1)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d\n", heading.Sprint("total weeks"), total)
			fmt.Fprintf(out, "%s %s to %s (%d days: %s)\n", heading.Sprint("week 1"),
				first.Format(coach.DateLayout), last.Format(coach.DateLayout),
				coach.DaysRemainingInFirstWeek(start), dayNames(coach.FirstWeekDays(start)))
			for _, sp := range coach.PhaseDateSpans(start, phases) {
				fmt.Fprintf(out, "%s %s to %s %s\n", heading.Sprint(padRight(string(sp.Name), 6)),
					sp.StartDate.Format(coach.DateLayout), sp.EndDate.Format(coach.DateLayout),
					faint.Sprintf("(%d weeks)", sp.WeekCount))
			}
			return nil
		},
	}
}

func newPaceCmd(opts *options) *cobra.Command {
	pace := &cobra.Command{
		Use:   "pace",
		Short: "Pace conversions",
	}
	pace.AddCommand(&cobra.Command{
		Use:   "goal <race-type> <goal-time>",
		Short: "Convert a goal finish time to pace per mile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			race, err := coach.ParseRaceType(args[0])
			if err != nil {
				return err
			}
			p, err := coach.GoalPacePerMile(args[1], race)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s /mi %s\n", coach.FormatPace(p), faint.Sprintf("(%d s, %.4g mi)", p, race.DistanceMiles()))
			return nil
		},
	})
	pace.AddCommand(&cobra.Command{
		Use:   "predict <race-type> <reference-pace>",
		Short: "Predict race pace from a 5k-equivalent pace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			race, err := coach.ParseRaceType(args[0])
			if err != nil {
				return err
			}
			ref, err := coach.ParsePace(args[1])
			if err != nil {
				return err
			}
			offsets, err := opts.offsets()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s /mi\n", coach.FormatPace(coach.PredictedPace(ref, race, offsets)))
			return nil
		},
	})
	return pace
}

func newValidateCmd(opts *options) *cobra.Command {
	var (
		startDate string
		weeks     int
		week      int
	)
	cmd := &cobra.Command{
		Use:   "validate <file.json>",
		Short: "Validate a generated plan (or, with --week, a generated week)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if week > 0 {
				wp, err := coach.ValidateWeekStructure(raw, week)
				if err != nil {
					fmt.Fprintln(out, bad.Sprint("invalid: ")+err.Error())
					return err
				}
				fmt.Fprintf(out, "%s week %d, %d days, %.1f miles\n", good.Sprint("valid:"), wp.WeekNumber, len(wp.Days), wp.Miles())
				return nil
			}

			start, err := coach.ParseDate(startDate)
			if err != nil {
				return err
			}
			if !opts.allowPartial {
				start = coach.NextMonday(start)
			}
			plan, err := coach.ValidatePlanStructure(raw, start, weeks)
			if err != nil {
				fmt.Fprintln(out, bad.Sprint("invalid: ")+err.Error())
				return err
			}
			fmt.Fprintf(out, "%s %d phases, week 1 has %d days and %.1f miles\n",
				good.Sprint("valid:"), len(plan.Phases), len(plan.Week.Days), plan.Week.Miles())
			return nil
		},
	}
	cmd.Flags().StringVar(&startDate, "start", "", "plan start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&weeks, "weeks", 0, "expected total weeks (0 skips the sum check)")
	cmd.Flags().IntVar(&week, "week", 0, "validate a single generated week with this number")
	return cmd
}

func newScoreCmd() *cobra.Command {
	var (
		plannedPace  string
		hrRange      string
		plannedMiles float64
		actualPace   string
		avgHR        float64
		miles        float64
		reference    string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an executed workout against its targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			planned := coach.PlannedTargets{Miles: plannedMiles}
			if plannedPace != "" {
				p, err := coach.ParsePace(plannedPace)
				if err != nil {
					return err
				}
				planned.PacePerMile = float64(p)
			}
			if hrRange != "" {
				lo, hi, ok := coach.ParseHeartRateRange(hrRange)
				if !ok {
					return fmt.Errorf("heart rate range %q must look like 140-150", hrRange)
				}
				planned.HRLow, planned.HRHigh = lo, hi
			}
			if actualPace == "" || miles <= 0 {
				return fmt.Errorf("--pace and --miles are required")
			}
			p, err := coach.ParsePace(actualPace)
			if err != nil {
				return err
			}
			if p <= 0 {
				return &coach.FormatError{Field: "pace", Value: actualPace, Reason: "must be positive"}
			}
			meters := miles * coach.MetersPerMile
			executed := coach.ExecutedMetrics{
				AverageSpeed:     coach.MetersPerMile / float64(p),
				AverageHeartRate: avgHR,
				DistanceMeters:   meters,
			}

			s := coach.ScoreWorkout(planned, executed, nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %.1f%%\n", padRight("pace variance", 18), s.PaceVariance*100)
			fmt.Fprintf(out, "%s %.0f%%\n", padRight("hr in range", 18), s.HRHitPercent)
			fmt.Fprintf(out, "%s %.1f%%\n", padRight("mileage variance", 18), s.MileageVariance*100)
			fmt.Fprintf(out, "%s %s\n", padRight("quality", 18), scoreColor(s.QualityScore).Sprintf("%.1f", s.QualityScore))
			fmt.Fprintf(out, "%s %s\n", padRight("overall", 18), scoreColor(s.OverallScore).Sprintf("%.1f", s.OverallScore))

			if reference != "" {
				ref, err := coach.ParsePace(reference)
				if err != nil {
					return err
				}
				next := coach.AdaptReferencePace(float64(ref), s.QualityScore)
				fmt.Fprintf(out, "%s %s -> %s\n", padRight("reference pace", 18), coach.FormatPace(ref), coach.FormatPaceFloat(next))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plannedPace, "planned-pace", "", "planned pace M:SS per mile")
	cmd.Flags().StringVar(&hrRange, "hr", "", "planned heart-rate range, e.g. 140-150")
	cmd.Flags().Float64Var(&plannedMiles, "planned-miles", 0, "planned distance in miles")
	cmd.Flags().StringVar(&actualPace, "pace", "", "executed average pace M:SS per mile")
	cmd.Flags().Float64Var(&avgHR, "avg-hr", 0, "executed average heart rate")
	cmd.Flags().Float64Var(&miles, "miles", 0, "executed distance in miles")
	cmd.Flags().StringVar(&reference, "reference", "", "current reference pace M:SS, to show the adapted value")
	return cmd
}

func newFITCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fit <file.fit>",
		Short: "Summarize a FIT activity file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sum, err := activity.DecodeFIT(f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", padRight("start", 10), sum.StartTime.Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "%s %.2f mi\n", padRight("distance", 10), coach.MetersToMiles(sum.DistanceMeters))
			fmt.Fprintf(out, "%s %s\n", padRight("duration", 10), formatDuration(sum.DurationSeconds))
			fmt.Fprintf(out, "%s %s /mi\n", padRight("pace", 10), coach.FormatPaceFloat(coach.SpeedToPace(sum.AverageSpeed)))
			if sum.AverageHeartRate > 0 {
				fmt.Fprintf(out, "%s %.0f avg, %.0f max\n", padRight("heart", 10), sum.AverageHeartRate, sum.MaxHeartRate)
			}
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func scoreColor(v float64) *color.Color {
	switch {
	case v >= 85:
		return good
	case v >= 60:
		return color.New(color.FgYellow)
	}
	return bad
}

func dayNames(days []int) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = coach.WeekdayName(d)[:3]
	}
	return strings.Join(names, " ")
}

func formatDuration(seconds float64) string {
	s := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
