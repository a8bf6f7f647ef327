package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/repository"
)

type mongoAnamnesiRepository struct {
	collection *mongo.Collection
}

func NewMongoAnamnesiRepository(db *mongo.Database) repository.AnamnesiRepository {
	return &mongoAnamnesiRepository{collection: db.Collection(anamnesiCollectionName)}
}

func (r *mongoAnamnesiRepository) Get(ctx context.Context, clientID primitive.ObjectID) (*domain.Anamnesi, error) {
	var a domain.Anamnesi
	err := r.collection.FindOne(ctx, bson.M{"_id": clientID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Upsert replaces the answers of a client. submittedAt is only written on
// the first submission.
func (r *mongoAnamnesiRepository) Upsert(ctx context.Context, a *domain.Anamnesi) (bool, error) {
	if a.ClientID.IsZero() {
		return false, errors.New("anamnesi requires clientId")
	}

	doc, err := bson.Marshal(a)
	if err != nil {
		return false, err
	}
	var set bson.M
	if err := bson.Unmarshal(doc, &set); err != nil {
		return false, err
	}
	delete(set, "_id")
	delete(set, "submittedAt")

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"submittedAt": a.SubmittedAt},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": a.ClientID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return result.UpsertedCount > 0, nil
}

func EnsureAnamnesiIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "submittedAt", Value: -1}},
	})
	return err
}
