package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"alcyxob/run-coach/internal/storage"
)

type memAthletes struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]domain.Athlete
	// failUpserts makes the next n Upsert calls fail.
	failUpserts int
	upserts     int
}

func newMemAthletes() *memAthletes {
	return &memAthletes{byID: map[primitive.ObjectID]domain.Athlete{}}
}

func (m *memAthletes) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Athlete, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memAthletes) Upsert(_ context.Context, a *domain.Athlete) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpserts > 0 {
		m.failUpserts--
		return errors.New("athlete store unavailable")
	}
	m.upserts++
	m.byID[a.ID] = *a
	return nil
}

func (m *memAthletes) UpdateReferencePace(_ context.Context, id primitive.ObjectID, pace float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ReferencePace = pace
	m.byID[id] = a
	return nil
}

type memRaces struct {
	mu    sync.Mutex
	races []domain.Race
	// raceOnCreate simulates a concurrent registration landing first.
	raceOnCreate bool
	// phantomDuplicate reports a duplicate without storing the other row.
	phantomDuplicate bool
}

func (m *memRaces) Create(_ context.Context, r *domain.Race) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phantomDuplicate {
		m.phantomDuplicate = false
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	if m.raceOnCreate {
		m.raceOnCreate = false
		winner := *r
		winner.ID = primitive.NewObjectID()
		m.races = append(m.races, winner)
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	for _, existing := range m.races {
		if existing.Name == r.Name && existing.Date.Equal(r.Date) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	r.ID = primitive.NewObjectID()
	m.races = append(m.races, *r)
	return r.ID, nil
}

func (m *memRaces) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Race, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.races {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memRaces) FindByKey(_ context.Context, name string, date time.Time) (*domain.Race, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.races {
		if r.Name == name && r.Date.Equal(date) {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memPlans struct {
	mu    sync.Mutex
	plans map[primitive.ObjectID]domain.Plan
}

func newMemPlans() *memPlans {
	return &memPlans{plans: map[primitive.ObjectID]domain.Plan{}}
}

func (m *memPlans) Create(_ context.Context, p *domain.Plan) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	m.plans[p.ID] = clonePlan(*p)
	return p.ID, nil
}

func (m *memPlans) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = clonePlan(p)
	return &p, nil
}

func (m *memPlans) GetByAthleteID(_ context.Context, athleteID primitive.ObjectID) ([]domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Plan
	for _, p := range m.plans {
		if p.AthleteID == athleteID {
			out = append(out, clonePlan(p))
		}
	}
	return out, nil
}

func (m *memPlans) Update(_ context.Context, p *domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[p.ID]; !ok {
		return repository.ErrNotFound
	}
	m.plans[p.ID] = clonePlan(*p)
	return nil
}

func clonePlan(p domain.Plan) domain.Plan {
	p.PreferredDays = append([]int(nil), p.PreferredDays...)
	return p
}

// memSchedule mirrors the transactional rules of the Mongo schedule store.
type memSchedule struct {
	mu     sync.Mutex
	plans  *memPlans
	phases map[primitive.ObjectID][]domain.Phase
	weeks  []domain.Week
	days   []domain.Day
	writes int
	checks int
}

func newMemSchedule(plans *memPlans) *memSchedule {
	return &memSchedule{plans: plans, phases: map[primitive.ObjectID][]domain.Phase{}}
}

func (m *memSchedule) SaveInitialSchedule(_ context.Context, planID primitive.ObjectID, phases []domain.Phase, week *domain.Week, days []domain.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans.mu.Lock()
	defer m.plans.mu.Unlock()

	plan, ok := m.plans.plans[planID]
	if !ok || plan.Status != domain.PlanDraft {
		return repository.ErrUpdateFailed
	}
	for i := range phases {
		phases[i].ID = primitive.NewObjectID()
	}
	week.PhaseID = phases[0].ID
	m.phases[planID] = append([]domain.Phase(nil), phases...)
	m.insertWeek(week, days)
	plan.Status = domain.PlanActive
	m.plans.plans[planID] = plan
	return nil
}

func (m *memSchedule) SaveWeek(_ context.Context, week *domain.Week, days []domain.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findWeek(week.PlanID, week.WeekNumber) != nil {
		return repository.ErrDuplicate
	}
	if week.WeekNumber > 1 && m.findWeek(week.PlanID, week.WeekNumber-1) == nil {
		return repository.ErrNotFound
	}
	m.insertWeek(week, days)
	return nil
}

func (m *memSchedule) insertWeek(week *domain.Week, days []domain.Day) {
	if week.ID.IsZero() {
		week.ID = primitive.NewObjectID()
	}
	m.weeks = append(m.weeks, *week)
	for i := range days {
		days[i].ID = primitive.NewObjectID()
		days[i].WeekID = week.ID
		m.days = append(m.days, days[i])
	}
	m.writes++
}

func (m *memSchedule) findWeek(planID primitive.ObjectID, n int) *domain.Week {
	for i := range m.weeks {
		if m.weeks[i].PlanID == planID && m.weeks[i].WeekNumber == n {
			w := m.weeks[i]
			return &w
		}
	}
	return nil
}

func (m *memSchedule) GetPhases(_ context.Context, planID primitive.ObjectID) ([]domain.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Phase(nil), m.phases[planID]...), nil
}

func (m *memSchedule) GetWeek(_ context.Context, planID primitive.ObjectID, n int) (*domain.Week, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := m.findWeek(planID, n); w != nil {
		return w, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memSchedule) GetDays(_ context.Context, weekID primitive.ObjectID) ([]domain.Day, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Day
	for _, d := range m.days {
		if d.WeekID == weekID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memSchedule) GetDay(_ context.Context, id primitive.ObjectID) (*domain.Day, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.days {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memSchedule) WeekExists(_ context.Context, planID primitive.ObjectID, n int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
	return m.findWeek(planID, n) != nil, nil
}

func (m *memSchedule) weekCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.weeks)
}

type memActivities struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]domain.Activity
	// phantomDuplicate makes the next Create report a duplicate that no
	// lookup can find.
	phantomDuplicate bool
	// beforeCreate runs under the lock at the start of the next Create.
	beforeCreate func()
}

func newMemActivities() *memActivities {
	return &memActivities{byID: map[primitive.ObjectID]domain.Activity{}}
}

func (m *memActivities) Create(_ context.Context, a *domain.Activity) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeCreate != nil {
		m.beforeCreate()
		m.beforeCreate = nil
	}
	if m.phantomDuplicate {
		m.phantomDuplicate = false
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	if a.ObjectKey != "" {
		for _, existing := range m.byID {
			if existing.ObjectKey == a.ObjectKey {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	a.ID = primitive.NewObjectID()
	m.byID[a.ID] = *a
	return a.ID, nil
}

func (m *memActivities) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memActivities) FindByObjectKey(_ context.Context, objectKey string) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.ObjectKey == objectKey {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memActivities) GetByAthleteID(_ context.Context, athleteID primitive.ObjectID) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Activity
	for _, a := range m.byID {
		if a.AthleteID == athleteID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memExecuted struct {
	mu   sync.Mutex
	rows []domain.ExecutedDay
	// phantomDuplicate reports a duplicate without storing the other row.
	phantomDuplicate bool
}

func (m *memExecuted) Create(_ context.Context, e *domain.ExecutedDay) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phantomDuplicate {
		m.phantomDuplicate = false
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	for _, r := range m.rows {
		if r.DayID == e.DayID && r.ActivityID == e.ActivityID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	e.ID = primitive.NewObjectID()
	m.rows = append(m.rows, *e)
	return e.ID, nil
}

func (m *memExecuted) GetByDayAndActivity(_ context.Context, dayID, activityID primitive.ObjectID) (*domain.ExecutedDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.DayID == dayID && r.ActivityID == activityID {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memExecuted) GetByPlanWeek(_ context.Context, planID primitive.ObjectID, n int) ([]domain.ExecutedDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutedDay
	for _, r := range m.rows {
		if r.PlanID == planID && r.WeekNumber == n {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memExecuted) MarkAdapted(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Adapted = true
			return nil
		}
	}
	return repository.ErrNotFound
}

type memPreviews struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemPreviews() *memPreviews {
	return &memPreviews{data: map[string][]byte{}}
}

func (m *memPreviews) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memPreviews) Put(_ context.Context, key string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memPreviews) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// scriptedGenerator replays responses in order and records every request.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses [][]byte
	err       error
	requests  []string
}

func (g *scriptedGenerator) Generate(_ context.Context, request string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, request)
	if g.err != nil {
		return nil, g.err
	}
	if len(g.responses) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	out := g.responses[0]
	g.responses = g.responses[1:]
	return out, nil
}

func (g *scriptedGenerator) push(raw ...[]byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses = append(g.responses, raw...)
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://uploads.test/" + key + "?sig=x", nil
}

func (m *memStorage) GetObject(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStorage) DeleteObject(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

// Generated payload builders.

func lapJSON(i int, dist float64, pace, hr string) map[string]any {
	l := map[string]any{"lapIndex": i, "distance": dist}
	if pace != "" {
		l["pace"] = pace
	}
	if hr != "" {
		l["heartRate"] = hr
	}
	return l
}

func dayJSON(dow int) map[string]any {
	return map[string]any{
		"dayOfWeek": dow,
		"title":     "Easy run",
		"warmUp":    []any{lapJSON(1, 1, "10:00", "")},
		"workout":   []any{lapJSON(1, 4, "8:30", "140-150")},
		"coolDown":  []any{lapJSON(1, 1, "", "")},
	}
}

func weekJSON(number int, days ...int) map[string]any {
	ds := make([]any, len(days))
	for i, d := range days {
		ds[i] = dayJSON(d)
	}
	return map[string]any{"weekNumber": number, "days": ds}
}

func planJSON(t *testing.T, counts [4]int, firstWeekDays ...int) []byte {
	t.Helper()
	names := []string{"base", "build", "peak", "taper"}
	phases := make([]any, 4)
	for i, c := range counts {
		phases[i] = map[string]any{"name": names[i], "weekCount": c}
	}
	return mustMarshal(t, map[string]any{"phases": phases, "week": weekJSON(1, firstWeekDays...)})
}

func fullWeekJSON(t *testing.T, number int) []byte {
	t.Helper()
	return mustMarshal(t, map[string]any{"week": weekJSON(number, 1, 2, 3, 4, 5, 6, 7)})
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := coach.ParseDate(s)
	require.NoError(t, err)
	return d
}
