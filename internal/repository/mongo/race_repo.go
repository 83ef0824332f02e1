package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
)

const raceCollectionName = "races"

type mongoRaceRepository struct {
	collection *mongo.Collection
}

// NewMongoRaceRepository creates the race registry backed by MongoDB.
func NewMongoRaceRepository(db *mongo.Database) repository.RaceRepository {
	return &mongoRaceRepository{
		collection: db.Collection(raceCollectionName),
	}
}

func (r *mongoRaceRepository) Create(ctx context.Context, race *domain.Race) (primitive.ObjectID, error) {
	if race.Name == "" || race.Date.IsZero() {
		return primitive.NilObjectID, errors.New("race requires name and date")
	}
	race.ID = primitive.NewObjectID()
	race.Date = coach.DateOnly(race.Date)
	race.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, race)
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

func (r *mongoRaceRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Race, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRaceRepository) FindByKey(ctx context.Context, name string, date time.Time) (*domain.Race, error) {
	return r.findOne(ctx, bson.M{"name": name, "date": coach.DateOnly(date)})
}

func (r *mongoRaceRepository) findOne(ctx context.Context, filter bson.M) (*domain.Race, error) {
	var race domain.Race
	if err := r.collection.FindOne(ctx, filter).Decode(&race); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &race, nil
}

// EnsureRaceIndexes makes (name, date) the registry key.
func EnsureRaceIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
