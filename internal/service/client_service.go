package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/email"
	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository"
	"ptcoach/pt-manager/internal/storage"
)

// --- Error Definitions ---
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrClientNotFound   = errors.New("client not found")
	ErrEmailTaken       = errors.New("a client with this email already exists")
)

const (
	MinSearchLength  = 2
	MaxSearchResults = 10
)

// ClientView is a client with its derived payment status.
type ClientView struct {
	domain.Client
	PaymentStatus lifecycle.PaymentStatus `json:"paymentStatus"`
	DaysLeft      *int                    `json:"daysLeft,omitempty"`
}

// PaymentInput describes one renewal.
type PaymentInput struct {
	Amount         float64
	DurationMonths int
	Method         *string
}

type OnboardInput struct {
	Name           string
	Email          string
	Phone          *string
	PlanType       string
	Status         string
	ExpiresAt      *time.Time
	InitialPayment *PaymentInput
}

// OnboardResult carries the temporary password so the coach can hand it
// over even if the welcome email does not arrive.
type OnboardResult struct {
	Client       ClientView      `json:"client"`
	TempPassword string          `json:"tempPassword"`
	Payment      *domain.Payment `json:"payment,omitempty"`
}

// ClientUpdate holds the fields to change. Nil pointers are left alone.
type ClientUpdate struct {
	Name        *string
	Email       *string
	Phone       *string
	PlanType    *string
	Status      *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

type ClientService interface {
	Onboard(ctx context.Context, in OnboardInput) (*OnboardResult, error)
	List(ctx context.Context) ([]ClientView, error)
	Get(ctx context.Context, id primitive.ObjectID) (*ClientView, error)
	Update(ctx context.Context, id primitive.ObjectID, upd ClientUpdate) (*ClientView, error)
	Search(ctx context.Context, prefix string) ([]ClientView, error)
	// Delete removes the client and everything attached to it.
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type clientService struct {
	clientRepo  repository.ClientRepository
	fileStorage storage.FileStorage
	mailer      *email.Mailer
	classifier  lifecycle.Classifier
	log         logging.Logger
	now         func() time.Time
}

func NewClientService(
	clientRepo repository.ClientRepository,
	fileStorage storage.FileStorage,
	mailer *email.Mailer,
	classifier lifecycle.Classifier,
	log logging.Logger,
) ClientService {
	return &clientService{
		clientRepo:  clientRepo,
		fileStorage: fileStorage,
		mailer:      mailer,
		classifier:  classifier,
		log:         log.With("service", "clients"),
		now:         time.Now,
	}
}

// Onboard creates the client record and identity with a temporary password.
// An initial payment is written in the same transaction as the client.
func (s *clientService) Onboard(ctx context.Context, in OnboardInput) (*OnboardResult, error) {
	in.Email = normalizeEmail(in.Email)
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidationFailed)
	}

	tempPassword := newTempPassword()
	hash, err := hashPassword(tempPassword)
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		Email:        in.Email,
		Phone:        in.Phone,
		PlanType:     strings.TrimSpace(in.PlanType),
		Status:       in.Status,
		ExpiresAt:    in.ExpiresAt,
		PasswordHash: hash,
		IsClient:     true,
		FirstLogin:   true,
		TempPassword: tempPassword,
	}
	client.SetName(in.Name)
	if client.Status == "" {
		client.Status = domain.ClientStatusPending
	}

	now := s.now().UTC()
	var payment *domain.Payment
	if in.InitialPayment != nil {
		payment, err = newPayment(*in.InitialPayment, client.ExpiresAt, now)
		if err != nil {
			return nil, err
		}
		client.ExpiresAt = &payment.ExpiresAt
		client.Status = domain.ClientStatusActive
	}

	if _, err := s.clientRepo.Create(ctx, client, payment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info(ctx, "client onboarded", "clientId", client.ID.Hex(), "initialPayment", payment != nil)

	if err := s.mailer.SendWelcome(ctx, client.Email, client.Name, tempPassword); err != nil {
		s.log.Warn(ctx, "welcome email failed", "clientId", client.ID.Hex(), "error", err)
	}

	return &OnboardResult{
		Client:       s.view(*client, now),
		TempPassword: tempPassword,
		Payment:      payment,
	}, nil
}

func (s *clientService) List(ctx context.Context) ([]ClientView, error) {
	clients, err := s.clientRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(clients), nil
}

func (s *clientService) Get(ctx context.Context, id primitive.ObjectID) (*ClientView, error) {
	client, err := s.getClient(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(*client, s.now())
	return &v, nil
}

func (s *clientService) Update(ctx context.Context, id primitive.ObjectID, upd ClientUpdate) (*ClientView, error) {
	client, err := s.getClient(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", ErrValidationFailed)
		}
		client.SetName(*upd.Name)
	}
	if upd.Email != nil {
		e := normalizeEmail(*upd.Email)
		if !strings.Contains(e, "@") {
			return nil, fmt.Errorf("%w: a valid email is required", ErrValidationFailed)
		}
		client.Email = e
	}
	if upd.Phone != nil {
		if p := strings.TrimSpace(*upd.Phone); p != "" {
			client.Phone = &p
		} else {
			client.Phone = nil
		}
	}
	if upd.PlanType != nil {
		client.PlanType = strings.TrimSpace(*upd.PlanType)
	}
	if upd.Status != nil {
		client.Status = *upd.Status
	}
	if upd.ClearExpiry {
		client.ExpiresAt = nil
	} else if upd.ExpiresAt != nil {
		client.ExpiresAt = upd.ExpiresAt
	}

	if err := s.clientRepo.Update(ctx, client); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrClientNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	v := s.view(*client, s.now())
	return &v, nil
}

// Search matches a case-insensitive name prefix of at least two characters.
func (s *clientService) Search(ctx context.Context, prefix string) ([]ClientView, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len([]rune(prefix)) < MinSearchLength {
		return []ClientView{}, nil
	}
	clients, err := s.clientRepo.SearchByNamePrefix(ctx, prefix, MaxSearchResults)
	if err != nil {
		return nil, err
	}
	return s.views(clients), nil
}

// Delete cascades in one transaction, then removes photo blobs. Blob
// failures are logged and do not fail the call.
func (s *clientService) Delete(ctx context.Context, id primitive.ObjectID) error {
	keys, err := s.clientRepo.DeleteCascade(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	s.log.Info(ctx, "client deleted", "clientId", id.Hex(), "photos", len(keys))

	for _, key := range keys {
		if err := s.fileStorage.DeleteObject(ctx, key); err != nil {
			s.log.Warn(ctx, "photo left in storage", "clientId", id.Hex(), "key", key, "error", err)
		}
	}
	return nil
}

func (s *clientService) getClient(ctx context.Context, id primitive.ObjectID) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

func (s *clientService) views(clients []domain.Client) []ClientView {
	now := s.now()
	out := make([]ClientView, 0, len(clients))
	for _, c := range clients {
		out = append(out, s.view(c, now))
	}
	return out
}

func (s *clientService) view(c domain.Client, now time.Time) ClientView {
	return newClientView(s.classifier, c, now)
}

func newClientView(classifier lifecycle.Classifier, c domain.Client, now time.Time) ClientView {
	v := ClientView{Client: c, PaymentStatus: classifier.Classify(c.ExpiresAt, now)}
	if c.ExpiresAt != nil && !c.ExpiresAt.IsZero() {
		d := classifier.DaysLeft(*c.ExpiresAt, now)
		v.DaysLeft = &d
	}
	return v
}

// newPayment validates a renewal and computes the expiry it produces.
func newPayment(in PaymentInput, previous *time.Time, now time.Time) (*domain.Payment, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidationFailed)
	}
	expiry, err := lifecycle.NextExpiry(previous, now, in.DurationMonths)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return &domain.Payment{
		Amount:         in.Amount,
		DurationMonths: in.DurationMonths,
		Duration:       lifecycle.DurationLabel(in.DurationMonths),
		Method:         trimmedOrNil(in.Method),
		PaidAt:         now,
		ExpiresAt:      expiry,
	}, nil
}

func newTempPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
