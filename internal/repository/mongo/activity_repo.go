package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/repository"
)

// mongoActivityRepository reads check and anamnesi submissions as raw
// documents. Timestamps written by older clients may be strings or
// {seconds, nanoseconds} maps, so they are coerced with lifecycle.ToDate
// rather than decoded into time.Time.
type mongoActivityRepository struct {
	checks   *mongo.Collection
	anamnesi *mongo.Collection
}

func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		checks:   db.Collection(checkCollectionName),
		anamnesi: db.Collection(anamnesiCollectionName),
	}
}

func (r *mongoActivityRepository) RecentChecks(ctx context.Context, limit int) ([]lifecycle.Event, error) {
	return r.recent(ctx, r.checks, "clientId", "createdAt", limit)
}

// RecentAnamnesi keys events by the document id, which is the client id.
func (r *mongoActivityRepository) RecentAnamnesi(ctx context.Context, limit int) ([]lifecycle.Event, error) {
	return r.recent(ctx, r.anamnesi, "_id", "submittedAt", limit)
}

func (r *mongoActivityRepository) recent(ctx context.Context, coll *mongo.Collection, clientField, timeField string, limit int) ([]lifecycle.Event, error) {
	opts := options.Find().
		SetProjection(bson.M{clientField: 1, timeField: 1}).
		SetSort(bson.D{{Key: timeField, Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	events := []lifecycle.Event{}
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		id, ok := idString(raw["_id"])
		if !ok {
			continue
		}
		clientID, ok := idString(raw[clientField])
		if !ok {
			continue
		}
		at, _ := lifecycle.ToDate(raw[timeField])
		events = append(events, lifecycle.Event{ID: id, ClientID: clientID, At: at})
	}
	return events, cursor.Err()
}

func idString(v any) (string, bool) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex(), true
	case string:
		return id, id != ""
	}
	return "", false
}
