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

const activityCollectionName = "activities"

type mongoActivityRepository struct {
	collection *mongo.Collection
}

// NewMongoActivityRepository creates an Activity repository backed by MongoDB.
func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		collection: db.Collection(activityCollectionName),
	}
}

func (r *mongoActivityRepository) Create(ctx context.Context, activity *domain.Activity) (primitive.ObjectID, error) {
	if activity.AthleteID == primitive.NilObjectID || activity.Source == "" {
		return primitive.NilObjectID, errors.New("activity requires athleteId and source")
	}
	if activity.Source == domain.SourceFIT && activity.ObjectKey == "" {
		return primitive.NilObjectID, errors.New("fit activity requires objectKey")
	}

	activity.ID = primitive.NewObjectID()
	activity.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, activity)
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

func (r *mongoActivityRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Activity, error) {
	var activity domain.Activity
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&activity); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &activity, nil
}

func (r *mongoActivityRepository) FindByObjectKey(ctx context.Context, objectKey string) (*domain.Activity, error) {
	var activity domain.Activity
	if err := r.collection.FindOne(ctx, bson.M{"objectKey": objectKey}).Decode(&activity); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// GetByAthleteID lists activities, most recent run first.
func (r *mongoActivityRepository) GetByAthleteID(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Activity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"athleteId": athleteID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	activities := []domain.Activity{}
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

func EnsureActivityIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "athleteId", Value: 1}, {Key: "startTime", Value: -1}}},
		{
			Keys:    bson.D{{Key: "objectKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	return err
}
