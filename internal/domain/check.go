package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Check is a periodic progress submission by a client.
type Check struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID          primitive.ObjectID `bson:"clientId" json:"clientId"`
	Weight            float64            `bson:"weight" json:"weight"`
	Notes             string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Photos            Photos             `bson:"photos,omitempty" json:"-"`
	CoachFeedback     *string            `bson:"coachFeedback,omitempty" json:"coachFeedback,omitempty"`
	FeedbackUpdatedAt *time.Time         `bson:"feedbackUpdatedAt,omitempty" json:"feedbackUpdatedAt,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	LastUpdatedAt     *time.Time         `bson:"lastUpdatedAt,omitempty" json:"lastUpdatedAt,omitempty"`
}

// EditableAt reports whether the owner may still modify the check.
func (c *Check) EditableAt(now time.Time, window time.Duration) bool {
	return now.Sub(c.CreatedAt) < window
}
