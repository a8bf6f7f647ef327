package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

const (
	clientCollectionName        = "clients"
	coachCollectionName         = "coaches"
	paymentCollectionName       = "payments"
	checkCollectionName         = "checks"
	anamnesiCollectionName      = "anamnesi"
	threadCollectionName        = "chats"
	messageCollectionName       = "messages"
	passwordResetCollectionName = "password_resets"
)

// ConnectDB establishes a connection to MongoDB and verifies it with a ping.
// Transactions and change streams require a replica set deployment.
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

// withTransaction runs fn in a multi-document transaction. fn must use the
// session context it is given for every operation.
func withTransaction(ctx context.Context, db *mongo.Database, fn func(sc mongo.SessionContext) error) error {
	session, err := db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes of every collection. Call this once
// during application startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		collection string
		ensure     func(context.Context, *mongo.Collection) error
	}{
		{clientCollectionName, EnsureClientIndexes},
		{coachCollectionName, EnsureCoachIndexes},
		{paymentCollectionName, EnsurePaymentIndexes},
		{checkCollectionName, EnsureCheckIndexes},
		{anamnesiCollectionName, EnsureAnamnesiIndexes},
		{threadCollectionName, EnsureThreadIndexes},
		{messageCollectionName, EnsureMessageIndexes},
		{passwordResetCollectionName, EnsurePasswordResetIndexes},
	}
	for _, s := range steps {
		if err := s.ensure(ctx, db.Collection(s.collection)); err != nil {
			return fmt.Errorf("indexes for %s: %w", s.collection, err)
		}
	}
	return nil
}
