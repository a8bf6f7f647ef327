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

type mongoPaymentRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	clients    *mongo.Collection
}

func NewMongoPaymentRepository(db *mongo.Database) repository.PaymentRepository {
	return &mongoPaymentRepository{
		db:         db,
		collection: db.Collection(paymentCollectionName),
		clients:    db.Collection(clientCollectionName),
	}
}

// Record appends the payment and moves the client's expiry in one
// transaction. The client read happens inside the transaction, so two
// concurrent payments cannot both extend from the same baseline.
func (r *mongoPaymentRepository) Record(ctx context.Context, payment *domain.Payment, next repository.ExpiryFunc) error {
	if payment.ClientID.IsZero() {
		return errors.New("payment requires clientId")
	}

	return withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		var current struct {
			ExpiresAt *time.Time `bson:"expiresAt"`
		}
		err := r.clients.FindOne(sc, bson.M{"_id": payment.ClientID},
			options.FindOne().SetProjection(bson.M{"expiresAt": 1})).Decode(&current)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return repository.ErrNotFound
			}
			return err
		}

		expiry, err := next(current.ExpiresAt)
		if err != nil {
			return err
		}
		payment.ID = primitive.NewObjectID()
		payment.ExpiresAt = expiry

		if _, err := r.collection.InsertOne(sc, payment); err != nil {
			return err
		}
		update := bson.M{"$set": bson.M{
			"expiresAt": expiry,
			"status":    domain.ClientStatusActive,
			"updatedAt": time.Now().UTC(),
		}}
		_, err = r.clients.UpdateOne(sc, bson.M{"_id": payment.ClientID}, update)
		return err
	})
}

// ListByClient returns the payments of a client, newest first.
func (r *mongoPaymentRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "paidAt", Value: -1}})
	return r.find(ctx, bson.M{"clientId": clientID}, opts)
}

// ListPaidBetween returns payments with from <= paidAt < to.
func (r *mongoPaymentRepository) ListPaidBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	filter := bson.M{"paidAt": bson.M{"$gte": from, "$lt": to}}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "paidAt", Value: 1}}))
}

func (r *mongoPaymentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Payment, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	payments := []domain.Payment{}
	if err = cursor.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *mongoPaymentRepository) Delete(ctx context.Context, clientID, paymentID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": paymentID, "clientId": clientID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func EnsurePaymentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "paidAt", Value: -1}}},
		{Keys: bson.D{{Key: "paidAt", Value: 1}}},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
