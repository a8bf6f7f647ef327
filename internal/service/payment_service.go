package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository"
)

var ErrPaymentNotFound = errors.New("payment not found")

// PaymentHistory is the ledger of one client with its current status.
type PaymentHistory struct {
	ClientID      primitive.ObjectID      `json:"clientId"`
	ExpiresAt     *time.Time              `json:"expiresAt,omitempty"`
	PaymentStatus lifecycle.PaymentStatus `json:"paymentStatus"`
	DaysLeft      *int                    `json:"daysLeft,omitempty"`
	Payments      []domain.Payment        `json:"payments"`
}

type PaymentService interface {
	// RecordPayment appends a payment and extends the expiry atomically.
	RecordPayment(ctx context.Context, clientID primitive.ObjectID, in PaymentInput) (*domain.Payment, error)
	History(ctx context.Context, clientID primitive.ObjectID) (*PaymentHistory, error)
	// DeletePayment removes the record only. The client's expiry is not
	// recomputed.
	DeletePayment(ctx context.Context, clientID, paymentID primitive.ObjectID) error
}

type paymentService struct {
	clientRepo  repository.ClientRepository
	paymentRepo repository.PaymentRepository
	classifier  lifecycle.Classifier
	log         logging.Logger
	now         func() time.Time
}

func NewPaymentService(
	clientRepo repository.ClientRepository,
	paymentRepo repository.PaymentRepository,
	classifier lifecycle.Classifier,
	log logging.Logger,
) PaymentService {
	return &paymentService{
		clientRepo:  clientRepo,
		paymentRepo: paymentRepo,
		classifier:  classifier,
		log:         log.With("service", "payments"),
		now:         time.Now,
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, clientID primitive.ObjectID, in PaymentInput) (*domain.Payment, error) {
	now := s.now().UTC()
	// Validate before opening the transaction; the expiry is recomputed
	// inside it from the stored value.
	payment, err := newPayment(in, nil, now)
	if err != nil {
		return nil, err
	}
	payment.ClientID = clientID

	err = s.paymentRepo.Record(ctx, payment, func(previous *time.Time) (time.Time, error) {
		return lifecycle.NextExpiry(previous, now, in.DurationMonths)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		s.log.Error(ctx, "record payment failed", "clientId", clientID.Hex(), "error", err)
		return nil, err
	}
	s.log.Info(ctx, "payment recorded",
		"clientId", clientID.Hex(), "months", payment.DurationMonths, "expiresAt", payment.ExpiresAt)
	return payment, nil
}

func (s *paymentService) History(ctx context.Context, clientID primitive.ObjectID) (*PaymentHistory, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	payments, err := s.paymentRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	v := newClientView(s.classifier, *client, s.now())
	return &PaymentHistory{
		ClientID:      clientID,
		ExpiresAt:     client.ExpiresAt,
		PaymentStatus: v.PaymentStatus,
		DaysLeft:      v.DaysLeft,
		Payments:      payments,
	}, nil
}

func (s *paymentService) DeletePayment(ctx context.Context, clientID, paymentID primitive.ObjectID) error {
	if err := s.paymentRepo.Delete(ctx, clientID, paymentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}
	s.log.Info(ctx, "payment deleted", "clientId", clientID.Hex(), "paymentId", paymentID.Hex())
	return nil
}
