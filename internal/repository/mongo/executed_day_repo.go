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

const executedDayCollectionName = "executed_days"

type mongoExecutedDayRepository struct {
	collection *mongo.Collection
}

func NewMongoExecutedDayRepository(db *mongo.Database) repository.ExecutedDayRepository {
	return &mongoExecutedDayRepository{
		collection: db.Collection(executedDayCollectionName),
	}
}

func (r *mongoExecutedDayRepository) Create(ctx context.Context, executed *domain.ExecutedDay) (primitive.ObjectID, error) {
	if executed.DayID == primitive.NilObjectID || executed.ActivityID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("executed day requires dayId and activityId")
	}
	executed.ID = primitive.NewObjectID()
	executed.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, executed)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoExecutedDayRepository) GetByDayAndActivity(ctx context.Context, dayID, activityID primitive.ObjectID) (*domain.ExecutedDay, error) {
	var executed domain.ExecutedDay
	err := r.collection.FindOne(ctx, bson.M{"dayId": dayID, "activityId": activityID}).Decode(&executed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &executed, nil
}

func (r *mongoExecutedDayRepository) GetByPlanWeek(ctx context.Context, planID primitive.ObjectID, weekNumber int) ([]domain.ExecutedDay, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID, "weekNumber": weekNumber}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	executed := []domain.ExecutedDay{}
	if err = cursor.All(ctx, &executed); err != nil {
		return nil, err
	}
	return executed, nil
}

func (r *mongoExecutedDayRepository) MarkAdapted(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"adapted": true}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureExecutedDayIndexes makes each (day, activity) link unique.
func EnsureExecutedDayIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "dayId", Value: 1}, {Key: "activityId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "planId", Value: 1}, {Key: "weekNumber", Value: 1}}},
	})
	return err
}
