package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/lifecycle"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ExpiryFunc computes a client's new expiry from the one currently stored.
// It runs inside the payment transaction.
type ExpiryFunc func(previous *time.Time) (time.Time, error)

// ClientRepository stores client records, which double as client identities.
type ClientRepository interface {
	// Create inserts the client and, when initial is not nil, its first
	// payment in the same transaction.
	Create(ctx context.Context, client *domain.Client, initial *domain.Payment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error)
	GetByEmail(ctx context.Context, email string) (*domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error)
	SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	// SetPassword stores a new hash and ends the first-access state.
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	SetNextCheckIn(ctx context.Context, id primitive.ObjectID, at time.Time) error
	// DeleteCascade removes the client and every record that references it
	// in one transaction. It returns the storage keys of the photos that
	// were attached to the removed checks and anamnesi.
	DeleteCascade(ctx context.Context, id primitive.ObjectID) ([]string, error)
}

// CoachRepository stores the administrator accounts.
type CoachRepository interface {
	Create(ctx context.Context, coach *domain.Coach) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Coach, error)
	GetByEmail(ctx context.Context, email string) (*domain.Coach, error)
	// Primary returns the oldest coach, the one clients talk to.
	Primary(ctx context.Context) (*domain.Coach, error)
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
}

// PaymentRepository is the subscription ledger.
type PaymentRepository interface {
	// Record appends payment and moves the client's expiry to next(current)
	// atomically. payment.ExpiresAt is filled in.
	Record(ctx context.Context, payment *domain.Payment, next ExpiryFunc) error
	ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.Payment, error)
	ListPaidBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error)
	// Delete removes one payment. The client's expiry is left as it is.
	Delete(ctx context.Context, clientID, paymentID primitive.ObjectID) error
}

// CheckRepository stores progress checks.
type CheckRepository interface {
	Create(ctx context.Context, check *domain.Check) (primitive.ObjectID, error)
	GetByID(ctx context.Context, clientID, id primitive.ObjectID) (*domain.Check, error)
	ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.Check, error)
	Latest(ctx context.Context, clientID primitive.ObjectID) (*domain.Check, error)
	// UpdateContent changes weight, notes and photos only if the check was
	// created at or after notBefore. ErrConflict otherwise.
	UpdateContent(ctx context.Context, check *domain.Check, notBefore time.Time) error
	SetFeedback(ctx context.Context, clientID, id primitive.ObjectID, feedback string, at time.Time) error
	Delete(ctx context.Context, clientID, id primitive.ObjectID) error
}

// AnamnesiRepository stores the one questionnaire of each client.
type AnamnesiRepository interface {
	Get(ctx context.Context, clientID primitive.ObjectID) (*domain.Anamnesi, error)
	// Upsert creates or replaces the answers. It reports whether the
	// document was created by this call.
	Upsert(ctx context.Context, a *domain.Anamnesi) (bool, error)
}

// ChatRepository stores threads and their messages.
type ChatRepository interface {
	// EnsureThread creates the thread if it does not exist and returns the
	// stored one. Existing threads are left untouched.
	EnsureThread(ctx context.Context, thread *domain.Thread) (*domain.Thread, error)
	GetThread(ctx context.Context, id string) (*domain.Thread, error)
	ListThreads(ctx context.Context, participant string) ([]domain.Thread, error)
	ListMessages(ctx context.Context, threadID string) ([]domain.Message, error)
	// AddMessage inserts the message and updates the thread preview in one
	// transaction.
	AddMessage(ctx context.Context, msg *domain.Message) error
	// WatchMessages streams messages inserted into the thread after the call.
	// The channel is closed when ctx ends or the stream fails.
	WatchMessages(ctx context.Context, threadID string) (<-chan domain.Message, error)
}

// ActivityRepository reads submission events for the activity feed.
type ActivityRepository interface {
	RecentChecks(ctx context.Context, limit int) ([]lifecycle.Event, error)
	RecentAnamnesi(ctx context.Context, limit int) ([]lifecycle.Event, error)
}

// PasswordResetRepository stores pending reset tokens by hash.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *domain.PasswordReset) error
	// Consume deletes and returns the unexpired reset with tokenHash.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.PasswordReset, error)
}
