package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/generator"
	"alcyxob/run-coach/internal/testhelpers"
)

type planFixture struct {
	svc       PlanService
	plans     *memPlans
	schedule  *memSchedule
	athletes  *memAthletes
	races     *memRaces
	previews  *memPreviews
	gen       *scriptedGenerator
	athleteID primitive.ObjectID
}

func newPlanFixture(t *testing.T, allowPartial bool) *planFixture {
	t.Helper()
	tpl, err := coach.DefaultTemplates()
	require.NoError(t, err)

	logger := testhelpers.NewLogger(t)
	f := &planFixture{
		plans:     newMemPlans(),
		athletes:  newMemAthletes(),
		races:     &memRaces{},
		previews:  newMemPreviews(),
		gen:       &scriptedGenerator{},
		athleteID: primitive.NewObjectID(),
	}
	f.schedule = newMemSchedule(f.plans)
	f.svc = NewPlanService(
		f.plans, f.schedule, f.athletes,
		NewRaceService(f.races, logger),
		f.gen, f.previews,
		PlanOptions{Templates: *tpl, AllowPartialFirstWeek: allowPartial},
		logger,
	)
	return f
}

// readyPlan returns a draft plan for a 20-week block starting Wednesday
// 2026-10-21 with every prerequisite attached.
func (f *planFixture) readyPlan(t *testing.T) *domain.Plan {
	t.Helper()
	ctx := context.Background()
	plan, err := f.svc.CreatePlan(ctx, f.athleteID)
	require.NoError(t, err)

	_, err = f.svc.AttachRace(ctx, f.athleteID, plan.ID, AttachRaceInput{
		Race:      RaceInput{Name: "Spring Marathon", Type: "marathon", Date: mustDate(t, "2027-03-10")},
		GoalTime:  "3:30:00",
		StartDate: mustDate(t, "2026-10-21"),
	})
	require.NoError(t, err)

	plan, err = f.svc.AttachBaseline(ctx, f.athleteID, plan.ID, BaselineInput{
		CurrentPace:   "8:30",
		WeeklyMileage: 35,
		PreferredDays: []int{7, 2, 4, 6, 1, 2},
	})
	require.NoError(t, err)
	return plan
}

func (f *planFixture) confirmedPlan(t *testing.T) *domain.Plan {
	t.Helper()
	plan := f.readyPlan(t)
	f.gen.push(planJSON(t, [4]int{5, 7, 4, 4}, 3, 4, 5, 6, 7))
	_, err := f.svc.ConfirmPlan(context.Background(), f.athleteID, plan.ID)
	require.NoError(t, err)
	return plan
}

func TestPreviewReportsAllMissingInputs(t *testing.T) {
	f := newPlanFixture(t, true)
	plan, err := f.svc.CreatePlan(context.Background(), f.athleteID)
	require.NoError(t, err)

	_, err = f.svc.PreviewPlan(context.Background(), f.athleteID, plan.ID)
	var pe *coach.PrerequisiteError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, []string{"race", "goalTime", "startDate", "currentPace", "baselineMileage", "preferredDays"}, pe.Missing)
	assert.Zero(t, f.gen.calls())
}

func TestAttachDerivesPaces(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.readyPlan(t)

	assert.Equal(t, 20, plan.TotalWeeks)
	assert.Equal(t, 481, plan.GoalPace)
	assert.Equal(t, 510, plan.CurrentPace)
	assert.Equal(t, 540, plan.PredictedPace)
	assert.Equal(t, []int{1, 2, 4, 6, 7}, plan.PreferredDays)

	athlete, err := f.athletes.GetByID(context.Background(), f.athleteID)
	require.NoError(t, err)
	assert.InDelta(t, 510, athlete.ReferencePace, 1e-9)
}

func TestAttachBaselineRejectsBadInput(t *testing.T) {
	f := newPlanFixture(t, true)
	ctx := context.Background()
	plan, err := f.svc.CreatePlan(ctx, f.athleteID)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   BaselineInput
	}{
		{"bad pace", BaselineInput{CurrentPace: "8:75", WeeklyMileage: 30, PreferredDays: []int{1}}},
		{"no mileage", BaselineInput{CurrentPace: "8:30", WeeklyMileage: 0, PreferredDays: []int{1}}},
		{"day out of range", BaselineInput{CurrentPace: "8:30", WeeklyMileage: 30, PreferredDays: []int{0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AttachBaseline(ctx, f.athleteID, plan.ID, tt.in)
			var fe *coach.FormatError
			assert.True(t, errors.As(err, &fe), "got %v", err)
		})
	}
}

func TestAttachRaceRejectsStartAfterRace(t *testing.T) {
	f := newPlanFixture(t, true)
	ctx := context.Background()
	plan, err := f.svc.CreatePlan(ctx, f.athleteID)
	require.NoError(t, err)

	_, err = f.svc.AttachRace(ctx, f.athleteID, plan.ID, AttachRaceInput{
		Race:      RaceInput{Name: "Fall 10K", Type: "10k", Date: mustDate(t, "2026-10-01")},
		GoalTime:  "45:00",
		StartDate: mustDate(t, "2026-10-21"),
	})
	var fe *coach.FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, "startDate", fe.Field)
}

func TestPreviewIsCachedAndNotPersisted(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.readyPlan(t)
	f.gen.push(planJSON(t, [4]int{5, 7, 4, 4}, 3, 4, 5, 6, 7))

	first, err := f.svc.PreviewPlan(context.Background(), f.athleteID, plan.ID)
	require.NoError(t, err)
	second, err := f.svc.PreviewPlan(context.Background(), f.athleteID, plan.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.gen.calls())
	assert.Zero(t, f.schedule.weekCount())

	req := f.gen.requests[0]
	assert.Contains(t, req, "Spring Marathon")
	assert.Contains(t, req, "2026-10-21, a Wednesday")
	assert.Contains(t, req, "base 5 weeks, build 7 weeks, peak 4 weeks, taper 4 weeks")
}

func TestPreviewRejectsInvalidOutputWithoutRetry(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.readyPlan(t)
	// Week 1 must cover Wednesday through Sunday.
	f.gen.push(planJSON(t, [4]int{5, 7, 4, 4}, 1, 2, 3, 4, 5, 6, 7))

	_, err := f.svc.PreviewPlan(context.Background(), f.athleteID, plan.ID)
	var sv *coach.SchemaViolation
	require.True(t, errors.As(err, &sv), "got %v", err)
	assert.Equal(t, 1, f.gen.calls())
	_, cached, _ := f.previews.Get(context.Background(), plan.ID.Hex())
	assert.False(t, cached)
}

func TestPreviewPropagatesGeneratorTimeout(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.readyPlan(t)
	f.gen.err = generator.ErrTimeout

	_, err := f.svc.PreviewPlan(context.Background(), f.athleteID, plan.ID)
	assert.ErrorIs(t, err, generator.ErrTimeout)
}

func TestConfirmPlanPersistsPhasesAndFirstWeek(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.readyPlan(t)
	f.gen.push(planJSON(t, [4]int{5, 7, 4, 4}, 3, 4, 5, 6, 7))
	ctx := context.Background()

	_, err := f.svc.PreviewPlan(ctx, f.athleteID, plan.ID)
	require.NoError(t, err)
	sched, err := f.svc.ConfirmPlan(ctx, f.athleteID, plan.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.gen.calls(), "confirm must reuse the cached preview")
	assert.Equal(t, domain.PlanActive, sched.Plan.Status)

	require.Len(t, sched.Phases, 4)
	assert.Equal(t, coach.PhaseBase, sched.Phases[0].Name)
	assert.Equal(t, mustDate(t, "2026-10-26"), sched.Phases[0].StartDate)
	assert.Equal(t, mustDate(t, "2026-11-22"), sched.Phases[0].EndDate)
	assert.Equal(t, coach.PhaseTaper, sched.Phases[3].Name)
	assert.Equal(t, 4, sched.Phases[3].Order)

	week := sched.Week
	assert.Equal(t, 1, week.Week.WeekNumber)
	assert.Equal(t, sched.Phases[0].ID, week.Week.PhaseID)
	assert.Equal(t, mustDate(t, "2026-10-21"), week.Week.StartDate)
	assert.Equal(t, mustDate(t, "2026-10-25"), week.Week.EndDate)
	require.NotNil(t, week.Week.TotalMileage)
	assert.InDelta(t, 30, *week.Week.TotalMileage, 1e-9)

	require.Len(t, week.Days, 5)
	for i, d := range week.Days {
		assert.Equal(t, mustDate(t, "2026-10-21").AddDate(0, 0, i), d.Date)
		assert.Equal(t, coach.Weekday(d.Date), d.DayOfWeek)
	}

	_, cached, _ := f.previews.Get(ctx, plan.ID.Hex())
	assert.False(t, cached, "confirm drops the preview")

	stored, err := f.plans.GetByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanActive, stored.Status)
}

func TestConfirmPlanTwiceReturnsExistingSchedule(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.confirmedPlan(t)

	sched, err := f.svc.ConfirmPlan(context.Background(), f.athleteID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.gen.calls())
	assert.Equal(t, 1, f.schedule.weekCount())
	assert.Len(t, sched.Week.Days, 5)
}

func TestConfirmWithoutPartialFirstWeekStartsMonday(t *testing.T) {
	f := newPlanFixture(t, false)
	plan := f.readyPlan(t)
	f.gen.push(planJSON(t, [4]int{5, 7, 4, 4}, 1, 2, 3, 4, 5, 6, 7))

	sched, err := f.svc.ConfirmPlan(context.Background(), f.athleteID, plan.ID)
	require.NoError(t, err)
	require.Len(t, sched.Week.Days, 7)
	assert.Equal(t, mustDate(t, "2026-10-26"), sched.Week.Days[0].Date)
	assert.Equal(t, mustDate(t, "2026-11-01"), sched.Week.Week.EndDate)
}

func TestGenerateWeekRequiresPreviousWeek(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.confirmedPlan(t)

	_, err := f.svc.GenerateWeek(context.Background(), f.athleteID, plan.ID, 3)
	var pe *coach.PrerequisiteError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, []string{"week 2"}, pe.Missing)
	assert.Equal(t, 1, f.schedule.checks)
	assert.Equal(t, 1, f.gen.calls(), "no generation request for week 3")
	assert.Equal(t, 1, f.schedule.weekCount(), "nothing written")
}

func TestGenerateWeekInOrder(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.confirmedPlan(t)
	ctx := context.Background()

	f.gen.push(fullWeekJSON(t, 2))
	week, err := f.svc.GenerateWeek(ctx, f.athleteID, plan.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, week.Week.WeekNumber)
	assert.Equal(t, mustDate(t, "2026-10-26"), week.Week.StartDate)
	assert.Equal(t, mustDate(t, "2026-11-01"), week.Week.EndDate)
	require.Len(t, week.Days, 7)
	assert.Equal(t, mustDate(t, "2026-10-26"), week.Days[0].Date)
	assert.Equal(t, 1, week.Days[0].DayOfWeek)

	phases, err := f.schedule.GetPhases(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, phases[0].ID, week.Week.PhaseID)

	req := f.gen.requests[len(f.gen.requests)-1]
	assert.Contains(t, req, "week 2 of 20")
	assert.Contains(t, req, "base phase")
	assert.Contains(t, req, "planned at 30.0 miles")

	again, err := f.svc.GenerateWeek(ctx, f.athleteID, plan.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, week.Week.ID, again.Week.ID)
	assert.Equal(t, 2, f.gen.calls(), "existing week is not regenerated")
}

func TestGenerateWeekUsesAdaptedReferencePace(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.confirmedPlan(t)
	ctx := context.Background()
	require.NoError(t, f.athletes.Upsert(ctx, &domain.Athlete{ID: f.athleteID, ReferencePace: 499.6}))

	f.gen.push(fullWeekJSON(t, 2))
	_, err := f.svc.GenerateWeek(ctx, f.athleteID, plan.ID, 2)
	require.NoError(t, err)

	req := f.gen.requests[len(f.gen.requests)-1]
	assert.Contains(t, req, coach.FormatPace(500))
}

func TestGenerateWeekValidation(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.confirmedPlan(t)
	ctx := context.Background()

	_, err := f.svc.GenerateWeek(ctx, f.athleteID, plan.ID, 21)
	var fe *coach.FormatError
	assert.True(t, errors.As(err, &fe), "got %v", err)

	f.gen.push(fullWeekJSON(t, 5))
	_, err = f.svc.GenerateWeek(ctx, f.athleteID, plan.ID, 2)
	var sv *coach.SchemaViolation
	require.True(t, errors.As(err, &sv), "got %v", err)
	assert.Equal(t, "week.weekNumber", sv.Field)
	assert.Equal(t, 1, f.schedule.weekCount())
}

func TestGenerateWeekOnDraftPlan(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.readyPlan(t)

	_, err := f.svc.GenerateWeek(context.Background(), f.athleteID, plan.ID, 2)
	var pe *coach.PrerequisiteError
	assert.True(t, errors.As(err, &pe), "got %v", err)
}

func TestPlanAccessIsScopedToOwner(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.readyPlan(t)
	other := primitive.NewObjectID()

	_, err := f.svc.GetPlan(context.Background(), other, plan.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	_, err = f.svc.PreviewPlan(context.Background(), other, plan.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	_, err = f.svc.GetPlan(context.Background(), f.athleteID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		confirm bool
		to      domain.PlanStatus
		wantErr error
	}{
		{"complete active", true, domain.PlanCompleted, nil},
		{"abandon active", true, domain.PlanAbandoned, nil},
		{"abandon draft", false, domain.PlanAbandoned, nil},
		{"complete draft", false, domain.PlanCompleted, ErrInvalidTransition},
		{"back to draft", true, domain.PlanDraft, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPlanFixture(t, true)
			var plan *domain.Plan
			if tt.confirm {
				plan = f.confirmedPlan(t)
			} else {
				plan = f.readyPlan(t)
			}
			got, err := f.svc.UpdateStatus(context.Background(), f.athleteID, plan.ID, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
		})
	}
}

func TestClosedPlanRejectsChanges(t *testing.T) {
	f := newPlanFixture(t, true)
	plan := f.confirmedPlan(t)
	ctx := context.Background()
	_, err := f.svc.UpdateStatus(ctx, f.athleteID, plan.ID, domain.PlanCompleted)
	require.NoError(t, err)

	_, err = f.svc.GenerateWeek(ctx, f.athleteID, plan.ID, 2)
	assert.ErrorIs(t, err, ErrPlanNotEditable)
	_, err = f.svc.AttachBaseline(ctx, f.athleteID, plan.ID, BaselineInput{CurrentPace: "8:00", WeeklyMileage: 30})
	assert.ErrorIs(t, err, ErrPlanNotEditable)
}

func TestListPlans(t *testing.T) {
	f := newPlanFixture(t, true)
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreatePlan(context.Background(), f.athleteID)
		require.NoError(t, err)
	}
	_, err := f.svc.CreatePlan(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)

	plans, err := f.svc.ListPlans(context.Background(), f.athleteID)
	require.NoError(t, err)
	assert.Len(t, plans, 3)
	for _, p := range plans {
		assert.Equal(t, domain.PlanDraft, p.Status)
	}
}
