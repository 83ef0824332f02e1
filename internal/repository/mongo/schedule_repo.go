package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
)

const (
	phaseCollectionName = "phases"
	weekCollectionName  = "weeks"
	dayCollectionName   = "days"
)

// mongoScheduleRepository writes the Phase→Week→Day cascade. Laps are
// embedded in their day document.
type mongoScheduleRepository struct {
	client *mongo.Client
	plans  *mongo.Collection
	phases *mongo.Collection
	weeks  *mongo.Collection
	days   *mongo.Collection
}

func NewMongoScheduleRepository(db *mongo.Database) repository.ScheduleRepository {
	return &mongoScheduleRepository{
		client: db.Client(),
		plans:  db.Collection(planCollectionName),
		phases: db.Collection(phaseCollectionName),
		weeks:  db.Collection(weekCollectionName),
		days:   db.Collection(dayCollectionName),
	}
}

func (r *mongoScheduleRepository) SaveInitialSchedule(ctx context.Context, planID primitive.ObjectID, phases []domain.Phase, week *domain.Week, days []domain.Day) error {
	if len(phases) == 0 || week == nil || week.WeekNumber != 1 {
		return errors.New("initial schedule requires phases and week 1")
	}

	return withTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		now := time.Now().UTC()
		result, err := r.plans.UpdateOne(sc,
			bson.M{"_id": planID, "status": domain.PlanDraft},
			bson.M{"$set": bson.M{"status": domain.PlanActive, "updatedAt": now}},
		)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return repository.ErrUpdateFailed
		}

		docs := make([]interface{}, len(phases))
		for i := range phases {
			if phases[i].ID.IsZero() {
				phases[i].ID = primitive.NewObjectID()
			}
			phases[i].PlanID = planID
			docs[i] = phases[i]
		}
		if _, err = r.phases.InsertMany(sc, docs); err != nil {
			return fmt.Errorf("insert phases: %w", err)
		}

		week.PlanID = planID
		week.PhaseID = phases[0].ID
		return r.insertWeek(sc, week, days)
	})
}

func (r *mongoScheduleRepository) SaveWeek(ctx context.Context, week *domain.Week, days []domain.Day) error {
	if week == nil || week.WeekNumber < 2 {
		return errors.New("SaveWeek requires week 2 or later")
	}

	return withTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		prev, err := r.weeks.CountDocuments(sc, bson.M{"planId": week.PlanID, "weekNumber": week.WeekNumber - 1})
		if err != nil {
			return err
		}
		if prev == 0 {
			return repository.ErrNotFound
		}
		return r.insertWeek(sc, week, days)
	})
}

func (r *mongoScheduleRepository) insertWeek(sc mongo.SessionContext, week *domain.Week, days []domain.Day) error {
	if week.ID.IsZero() {
		week.ID = primitive.NewObjectID()
	}
	if _, err := r.weeks.InsertOne(sc, week); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert week %d: %w", week.WeekNumber, err)
	}
	if len(days) == 0 {
		return nil
	}

	docs := make([]interface{}, len(days))
	for i := range days {
		if days[i].ID.IsZero() {
			days[i].ID = primitive.NewObjectID()
		}
		days[i].PlanID = week.PlanID
		days[i].WeekID = week.ID
		days[i].WeekNumber = week.WeekNumber
		docs[i] = days[i]
	}
	if _, err := r.days.InsertMany(sc, docs); err != nil {
		return fmt.Errorf("insert days of week %d: %w", week.WeekNumber, err)
	}
	return nil
}

func (r *mongoScheduleRepository) GetPhases(ctx context.Context, planID primitive.ObjectID) ([]domain.Phase, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
	cursor, err := r.phases.Find(ctx, bson.M{"planId": planID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	phases := []domain.Phase{}
	if err = cursor.All(ctx, &phases); err != nil {
		return nil, err
	}
	return phases, nil
}

func (r *mongoScheduleRepository) GetWeek(ctx context.Context, planID primitive.ObjectID, weekNumber int) (*domain.Week, error) {
	var week domain.Week
	err := r.weeks.FindOne(ctx, bson.M{"planId": planID, "weekNumber": weekNumber}).Decode(&week)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &week, nil
}

func (r *mongoScheduleRepository) GetDays(ctx context.Context, weekID primitive.ObjectID) ([]domain.Day, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.days.Find(ctx, bson.M{"weekId": weekID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	days := []domain.Day{}
	if err = cursor.All(ctx, &days); err != nil {
		return nil, err
	}
	return days, nil
}

func (r *mongoScheduleRepository) GetDay(ctx context.Context, dayID primitive.ObjectID) (*domain.Day, error) {
	var day domain.Day
	if err := r.days.FindOne(ctx, bson.M{"_id": dayID}).Decode(&day); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &day, nil
}

func (r *mongoScheduleRepository) WeekExists(ctx context.Context, planID primitive.ObjectID, weekNumber int) (bool, error) {
	n, err := r.weeks.CountDocuments(ctx, bson.M{"planId": planID, "weekNumber": weekNumber}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func EnsurePhaseIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "order", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// EnsureWeekIndexes makes (planId, weekNumber) unique, which is what turns a
// concurrent second insert of the same week into ErrDuplicate.
func EnsureWeekIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "weekNumber", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func EnsureDayIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "weekId", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "planId", Value: 1}, {Key: "date", Value: 1}}},
	})
	return err
}
