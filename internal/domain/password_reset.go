package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PasswordReset is a pending single-use reset token. Only its hash is stored.
type PasswordReset struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	TokenHash  string             `bson:"tokenHash"`
	IdentityID primitive.ObjectID `bson:"identityId"`
	Role       Role               `bson:"role"`
	ExpiresAt  time.Time          `bson:"expiresAt"`
	CreatedAt  time.Time          `bson:"createdAt"`
}
