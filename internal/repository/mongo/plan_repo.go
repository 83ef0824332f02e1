package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
)

const planCollectionName = "plans"

type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a Plan repository backed by MongoDB.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

func (r *mongoPlanRepository) Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error) {
	if plan.AthleteID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("plan requires athleteId")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if plan.Status == "" {
		plan.Status = domain.PlanDraft
	}

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	var plan domain.Plan
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetByAthleteID lists an athlete's plans, newest first.
func (r *mongoPlanRepository) GetByAthleteID(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Plan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"athleteId": athleteID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	plans := []domain.Plan{}
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// Update replaces the mutable plan fields. Ownership and createdAt are left
// untouched.
func (r *mongoPlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	plan.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"raceId":          plan.RaceID,
		"status":          plan.Status,
		"goalTime":        plan.GoalTime,
		"startDate":       plan.StartDate,
		"totalWeeks":      plan.TotalWeeks,
		"goalPace":        plan.GoalPace,
		"currentPace":     plan.CurrentPace,
		"predictedPace":   plan.PredictedPace,
		"baselineMileage": plan.BaselineMileage,
		"preferredDays":   plan.PreferredDays,
		"updatedAt":       plan.UpdatedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": plan.ID, "athleteId": plan.AthleteID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "athleteId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
