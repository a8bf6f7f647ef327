package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role distinguishes the two kinds of identity that can sign in.
type Role string

const (
	RoleAdmin  Role = "admin" // the coach
	RoleClient Role = "client"
)

// Status labels stored on the client record. The payment status shown to
// the coach is derived from ExpiresAt, not from this label.
const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
	ClientStatusPending  = "pending"
)

// Client is an end customer of the coach. It doubles as the client's
// identity record: credentials and role flags live here.
type Client struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	NameLowercase string             `bson:"nameLowercase" json:"-"` // prefix search
	Email         string             `bson:"email" json:"email"`
	Phone         *string            `bson:"phone,omitempty" json:"phone,omitempty"`
	PlanType      string             `bson:"planType,omitempty" json:"planType,omitempty"`
	Status        string             `bson:"status" json:"status"`
	ExpiresAt     *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	NextCheckIn   *time.Time         `bson:"nextCheckIn,omitempty" json:"nextCheckIn,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`

	// Identity
	PasswordHash string `bson:"passwordHash" json:"-"`
	IsClient     bool   `bson:"isClient" json:"isClient"`
	FirstLogin   bool   `bson:"firstLogin" json:"firstLogin"`
	// TempPassword stages the onboarding password so the coach can hand it
	// over. Cleared when the client sets their own password.
	TempPassword string `bson:"tempPassword,omitempty" json:"-"`
}

// SetName keeps the search column in sync with the display name.
func (c *Client) SetName(name string) {
	c.Name = strings.TrimSpace(name)
	c.NameLowercase = strings.ToLower(c.Name)
}

// Coach is the administrator account.
type Coach struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
