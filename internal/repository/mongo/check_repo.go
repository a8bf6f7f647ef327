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

type mongoCheckRepository struct {
	collection *mongo.Collection
}

func NewMongoCheckRepository(db *mongo.Database) repository.CheckRepository {
	return &mongoCheckRepository{collection: db.Collection(checkCollectionName)}
}

// Create inserts a check. CreatedAt is kept when already set (backdated checks).
func (r *mongoCheckRepository) Create(ctx context.Context, check *domain.Check) (primitive.ObjectID, error) {
	if check.ClientID.IsZero() {
		return primitive.NilObjectID, errors.New("check requires clientId")
	}
	check.ID = primitive.NewObjectID()
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, check); err != nil {
		return primitive.NilObjectID, err
	}
	return check.ID, nil
}

func (r *mongoCheckRepository) GetByID(ctx context.Context, clientID, id primitive.ObjectID) (*domain.Check, error) {
	var check domain.Check
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "clientId": clientID}).Decode(&check)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &check, nil
}

// ListByClient returns the checks of a client, newest first.
func (r *mongoCheckRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.Check, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"clientId": clientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	checks := []domain.Check{}
	if err = cursor.All(ctx, &checks); err != nil {
		return nil, err
	}
	return checks, nil
}

func (r *mongoCheckRepository) Latest(ctx context.Context, clientID primitive.ObjectID) (*domain.Check, error) {
	var check domain.Check
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	err := r.collection.FindOne(ctx, bson.M{"clientId": clientID}, opts).Decode(&check)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &check, nil
}

// UpdateContent rewrites the client-editable fields. The createdAt filter
// closes the edit window even if the caller's check raced with the clock.
func (r *mongoCheckRepository) UpdateContent(ctx context.Context, check *domain.Check, notBefore time.Time) error {
	now := time.Now().UTC()
	check.LastUpdatedAt = &now
	filter := bson.M{
		"_id":       check.ID,
		"clientId":  check.ClientID,
		"createdAt": bson.M{"$gte": notBefore},
	}
	update := bson.M{"$set": bson.M{
		"weight":        check.Weight,
		"notes":         check.Notes,
		"photos":        check.Photos,
		"lastUpdatedAt": now,
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *mongoCheckRepository) SetFeedback(ctx context.Context, clientID, id primitive.ObjectID, feedback string, at time.Time) error {
	update := bson.M{"$set": bson.M{"coachFeedback": feedback, "feedbackUpdatedAt": at}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "clientId": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoCheckRepository) Delete(ctx context.Context, clientID, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "clientId": clientID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func EnsureCheckIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
