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

const athleteCollectionName = "athletes"

type mongoAthleteRepository struct {
	collection *mongo.Collection
}

// NewMongoAthleteRepository creates an Athlete repository backed by MongoDB.
func NewMongoAthleteRepository(db *mongo.Database) repository.AthleteRepository {
	return &mongoAthleteRepository{
		collection: db.Collection(athleteCollectionName),
	}
}

func (r *mongoAthleteRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Athlete, error) {
	var athlete domain.Athlete
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&athlete)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &athlete, nil
}

// Upsert inserts the athlete on first sight and otherwise only replaces the
// reference pace, so createdAt survives.
func (r *mongoAthleteRepository) Upsert(ctx context.Context, athlete *domain.Athlete) error {
	if athlete.ID == primitive.NilObjectID {
		return errors.New("athlete id is required")
	}
	now := time.Now().UTC()
	update := bson.M{
		"$set":         bson.M{"referencePace": athlete.ReferencePace, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	_, err := r.collection.UpdateByID(ctx, athlete.ID, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoAthleteRepository) UpdateReferencePace(ctx context.Context, id primitive.ObjectID, pace float64) error {
	update := bson.M{"$set": bson.M{"referencePace": pace, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
