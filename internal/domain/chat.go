package domain

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ThreadKeyDelimiter joins the two participant ids of a thread key.
const ThreadKeyDelimiter = "_"

// ThreadKey derives the identifier of the conversation between a and b.
// The ids are sorted first, so ThreadKey(a, b) == ThreadKey(b, a).
func ThreadKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ThreadKeyDelimiter + ids[1]
}

// Thread is a two-party conversation between the coach and one client.
type Thread struct {
	ID               string            `bson:"_id" json:"id"`
	Participants     []string          `bson:"participants" json:"participants"`
	ParticipantNames map[string]string `bson:"participantNames" json:"participantNames"`
	LastMessage      string            `bson:"lastMessage" json:"lastMessage"`
	LastUpdate       time.Time         `bson:"lastUpdate" json:"lastUpdate"`
}

// HasParticipant reports whether id takes part in the thread.
func (t *Thread) HasParticipant(id string) bool {
	for _, p := range t.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Message belongs to a thread; messages are read in creation order.
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ThreadID  string             `bson:"threadId" json:"threadId"`
	Text      string             `bson:"text" json:"text"`
	SenderID  string             `bson:"senderId" json:"senderId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
