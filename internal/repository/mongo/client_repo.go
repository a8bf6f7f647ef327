package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/repository"
)

// mongoClientRepository implements repository.ClientRepository using MongoDB.
type mongoClientRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewMongoClientRepository creates a new instance of mongoClientRepository.
func NewMongoClientRepository(db *mongo.Database) repository.ClientRepository {
	return &mongoClientRepository{
		db:         db,
		collection: db.Collection(clientCollectionName),
	}
}

// Create inserts a new client, together with its first payment if any.
func (r *mongoClientRepository) Create(ctx context.Context, client *domain.Client, initial *domain.Payment) (primitive.ObjectID, error) {
	if client.Email == "" || client.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("client email and password hash are required")
	}

	client.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	err := withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		if _, err := r.collection.InsertOne(sc, client); err != nil {
			return err
		}
		if initial == nil {
			return nil
		}
		initial.ID = primitive.NewObjectID()
		initial.ClientID = client.ID
		_, err := r.db.Collection(paymentCollectionName).InsertOne(sc, initial)
		return err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return client.ID, nil
}

// GetByID retrieves a client by its ObjectID.
func (r *mongoClientRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail retrieves a client by email address.
func (r *mongoClientRepository) GetByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoClientRepository) findOne(ctx context.Context, filter bson.M) (*domain.Client, error) {
	var client domain.Client
	err := r.collection.FindOne(ctx, filter).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

// List returns every client, newest first.
func (r *mongoClientRepository) List(ctx context.Context) ([]domain.Client, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{}, opts)
}

// SearchByNamePrefix matches the lowercased name against prefix.
func (r *mongoClientRepository) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]domain.Client, error) {
	filter := bson.M{"nameLowercase": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().
		SetSort(bson.D{{Key: "nameLowercase", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoClientRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Client, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	clients := []domain.Client{}
	if err = cursor.All(ctx, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// Update replaces the profile fields of a client. Credentials are not touched.
func (r *mongoClientRepository) Update(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"name":          client.Name,
		"nameLowercase": client.NameLowercase,
		"email":         client.Email,
		"planType":      client.PlanType,
		"status":        client.Status,
		"updatedAt":     client.UpdatedAt,
	}
	unset := bson.M{}
	if client.Phone != nil {
		set["phone"] = *client.Phone
	} else {
		unset["phone"] = ""
	}
	if client.ExpiresAt != nil {
		set["expiresAt"] = *client.ExpiresAt
	} else {
		unset["expiresAt"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": client.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetPassword stores the new hash, clears the staged temporary password and
// the first-access flag.
func (r *mongoClientRepository) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	update := bson.M{
		"$set": bson.M{
			"passwordHash": hash,
			"firstLogin":   false,
			"updatedAt":    time.Now().UTC(),
		},
		"$unset": bson.M{"tempPassword": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetNextCheckIn stores the suggested date of the next check.
func (r *mongoClientRepository) SetNextCheckIn(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	update := bson.M{"$set": bson.M{"nextCheckIn": at, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteCascade removes the client with its payments, checks, anamnesi,
// chat threads, messages and pending password resets.
func (r *mongoClientRepository) DeleteCascade(ctx context.Context, id primitive.ObjectID) ([]string, error) {
	var photoKeys []string

	err := withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		// Retries start from scratch.
		photoKeys = photoKeys[:0]

		res, err := r.collection.DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return repository.ErrNotFound
		}

		keys, err := r.deleteChecks(sc, id)
		if err != nil {
			return err
		}
		photoKeys = append(photoKeys, keys...)

		var anamnesi domain.Anamnesi
		err = r.db.Collection(anamnesiCollectionName).FindOneAndDelete(sc, bson.M{"_id": id}).Decode(&anamnesi)
		switch {
		case err == nil:
			for _, k := range anamnesi.Photos {
				photoKeys = append(photoKeys, k)
			}
		case !errors.Is(err, mongo.ErrNoDocuments):
			return fmt.Errorf("delete anamnesi: %w", err)
		}

		if _, err := r.db.Collection(paymentCollectionName).DeleteMany(sc, bson.M{"clientId": id}); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if err := r.deleteThreads(sc, id.Hex()); err != nil {
			return err
		}
		if _, err := r.db.Collection(passwordResetCollectionName).DeleteMany(sc, bson.M{"identityId": id}); err != nil {
			return fmt.Errorf("delete password resets: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photoKeys, nil
}

func (r *mongoClientRepository) deleteChecks(sc mongo.SessionContext, clientID primitive.ObjectID) ([]string, error) {
	checks := r.db.Collection(checkCollectionName)
	cursor, err := checks.Find(sc, bson.M{"clientId": clientID}, options.Find().SetProjection(bson.M{"photos": 1}))
	if err != nil {
		return nil, fmt.Errorf("find checks: %w", err)
	}
	var docs []domain.Check
	if err := cursor.All(sc, &docs); err != nil {
		return nil, fmt.Errorf("decode checks: %w", err)
	}

	var keys []string
	for _, c := range docs {
		for _, k := range c.Photos {
			keys = append(keys, k)
		}
	}
	if _, err := checks.DeleteMany(sc, bson.M{"clientId": clientID}); err != nil {
		return nil, fmt.Errorf("delete checks: %w", err)
	}
	return keys, nil
}

func (r *mongoClientRepository) deleteThreads(sc mongo.SessionContext, participant string) error {
	threads := r.db.Collection(threadCollectionName)
	cursor, err := threads.Find(sc, bson.M{"participants": participant}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return fmt.Errorf("find threads: %w", err)
	}
	var docs []domain.Thread
	if err := cursor.All(sc, &docs); err != nil {
		return fmt.Errorf("decode threads: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(docs))
	for _, t := range docs {
		ids = append(ids, t.ID)
	}
	if _, err := r.db.Collection(messageCollectionName).DeleteMany(sc, bson.M{"threadId": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := threads.DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete threads: %w", err)
	}
	return nil
}

// EnsureClientIndexes creates necessary indexes for the clients collection.
func EnsureClientIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "nameLowercase", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
