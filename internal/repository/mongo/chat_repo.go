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

type mongoChatRepository struct {
	db       *mongo.Database
	threads  *mongo.Collection
	messages *mongo.Collection
}

func NewMongoChatRepository(db *mongo.Database) repository.ChatRepository {
	return &mongoChatRepository{
		db:       db,
		threads:  db.Collection(threadCollectionName),
		messages: db.Collection(messageCollectionName),
	}
}

// EnsureThread upserts with $setOnInsert only, so opening an existing
// thread never overwrites its preview or names.
func (r *mongoChatRepository) EnsureThread(ctx context.Context, thread *domain.Thread) (*domain.Thread, error) {
	if thread.ID == "" || len(thread.Participants) != 2 {
		return nil, errors.New("thread requires an id and two participants")
	}
	update := bson.M{"$setOnInsert": bson.M{
		"participants":     thread.Participants,
		"participantNames": thread.ParticipantNames,
		"lastMessage":      thread.LastMessage,
		"lastUpdate":       thread.LastUpdate,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored domain.Thread
	err := r.threads.FindOneAndUpdate(ctx, bson.M{"_id": thread.ID}, update, opts).Decode(&stored)
	if err != nil {
		// Two concurrent upserts of the same _id: the loser reads the winner.
		if mongo.IsDuplicateKeyError(err) {
			return r.GetThread(ctx, thread.ID)
		}
		return nil, err
	}
	return &stored, nil
}

func (r *mongoChatRepository) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	var t domain.Thread
	err := r.threads.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListThreads returns the threads of a participant, most recently active first.
func (r *mongoChatRepository) ListThreads(ctx context.Context, participant string) ([]domain.Thread, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastUpdate", Value: -1}})
	cursor, err := r.threads.Find(ctx, bson.M{"participants": participant}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	threads := []domain.Thread{}
	if err = cursor.All(ctx, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// ListMessages returns the messages of a thread in creation order.
func (r *mongoChatRepository) ListMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.messages.Find(ctx, bson.M{"threadId": threadID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []domain.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *mongoChatRepository) AddMessage(ctx context.Context, msg *domain.Message) error {
	msg.ID = primitive.NewObjectID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	return withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		update := bson.M{"$set": bson.M{"lastMessage": msg.Text, "lastUpdate": msg.CreatedAt}}
		result, err := r.threads.UpdateOne(sc, bson.M{"_id": msg.ThreadID}, update)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return repository.ErrNotFound
		}
		_, err = r.messages.InsertOne(sc, msg)
		return err
	})
}

type messageChangeEvent struct {
	FullDocument domain.Message `bson:"fullDocument"`
}

// WatchMessages opens a change stream on inserts into the thread. Events are
// delivered in the server's change order.
func (r *mongoChatRepository) WatchMessages(ctx context.Context, threadID string) (<-chan domain.Message, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.threadId", Value: threadID},
		}}},
	}
	stream, err := r.messages.Watch(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Message)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var ev messageChangeEvent
			if err := stream.Decode(&ev); err != nil {
				return
			}
			select {
			case out <- ev.FullDocument:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func EnsureThreadIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastUpdate", Value: -1}},
	})
	return err
}

func EnsureMessageIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "threadId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}
