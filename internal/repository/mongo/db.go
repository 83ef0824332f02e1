package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// The cascade writes use multi-document transactions, so the deployment must
// be a replica set (a single-node replica set is enough).
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection concurrently. The
// unique indexes back the registry and duplicate-link rules, so a failure
// here is fatal for the caller.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ensure := []struct {
		name string
		fn   func(context.Context, *mongo.Collection) error
	}{
		{raceCollectionName, EnsureRaceIndexes},
		{planCollectionName, EnsurePlanIndexes},
		{phaseCollectionName, EnsurePhaseIndexes},
		{weekCollectionName, EnsureWeekIndexes},
		{dayCollectionName, EnsureDayIndexes},
		{activityCollectionName, EnsureActivityIndexes},
		{executedDayCollectionName, EnsureExecutedDayIndexes},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range ensure {
		g.Go(func() error {
			if err := e.fn(gctx, db.Collection(e.name)); err != nil {
				return fmt.Errorf("ensure %s indexes: %w", e.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// withTransaction runs fn inside a session transaction. Everything fn writes
// through the session context commits or aborts together.
func withTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
