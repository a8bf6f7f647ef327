package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/repository"
)

type mongoPasswordResetRepository struct {
	collection *mongo.Collection
}

func NewMongoPasswordResetRepository(db *mongo.Database) repository.PasswordResetRepository {
	return &mongoPasswordResetRepository{collection: db.Collection(passwordResetCollectionName)}
}

func (r *mongoPasswordResetRepository) Create(ctx context.Context, reset *domain.PasswordReset) error {
	reset.ID = primitive.NewObjectID()
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, reset)
	return err
}

// Consume is find-and-delete, so a token works once even under concurrent use.
func (r *mongoPasswordResetRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.PasswordReset, error) {
	filter := bson.M{"tokenHash": tokenHash, "expiresAt": bson.M{"$gt": now}}
	var reset domain.PasswordReset
	err := r.collection.FindOneAndDelete(ctx, filter).Decode(&reset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &reset, nil
}

// EnsurePasswordResetIndexes adds a TTL index so expired tokens are purged
// by the server.
func EnsurePasswordResetIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
