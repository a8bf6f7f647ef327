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

type mongoCoachRepository struct {
	collection *mongo.Collection
}

func NewMongoCoachRepository(db *mongo.Database) repository.CoachRepository {
	return &mongoCoachRepository{collection: db.Collection(coachCollectionName)}
}

func (r *mongoCoachRepository) Create(ctx context.Context, coach *domain.Coach) (primitive.ObjectID, error) {
	if coach.Email == "" || coach.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("coach email and password hash are required")
	}
	coach.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	coach.CreatedAt = now
	coach.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, coach); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return coach.ID, nil
}

func (r *mongoCoachRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Coach, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *mongoCoachRepository) GetByEmail(ctx context.Context, email string) (*domain.Coach, error) {
	return r.findOne(ctx, bson.M{"email": email}, nil)
}

func (r *mongoCoachRepository) Primary(ctx context.Context) (*domain.Coach, error) {
	return r.findOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *mongoCoachRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.Coach, error) {
	var coach domain.Coach
	var err error
	if opts != nil {
		err = r.collection.FindOne(ctx, filter, opts).Decode(&coach)
	} else {
		err = r.collection.FindOne(ctx, filter).Decode(&coach)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &coach, nil
}

func (r *mongoCoachRepository) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	update := bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func EnsureCoachIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
