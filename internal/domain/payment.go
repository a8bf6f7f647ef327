package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment is one subscription renewal. It is immutable once written;
// deleting it does not move the client's expiry back.
type Payment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID       primitive.ObjectID `bson:"clientId" json:"clientId"`
	Amount         float64            `bson:"amount" json:"amount"`
	DurationMonths int                `bson:"durationMonths" json:"durationMonths"`
	Duration       string             `bson:"duration" json:"duration"` // display label, e.g. "3 months"
	Method         *string            `bson:"method,omitempty" json:"method,omitempty"`
	PaidAt         time.Time          `bson:"paidAt" json:"paidAt"`
	// ExpiresAt is the client expiry this payment produced.
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}
