package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository"
)

// --- Error Definitions ---
var (
	ErrThreadNotFound = errors.New("chat thread not found")
	ErrNotParticipant = errors.New("not a participant of this thread")
	ErrCoachNotFound  = errors.New("no coach account is configured")
)

const MaxMessageLength = 4000

type ChatService interface {
	// OpenThread returns the thread between coach and client, creating it
	// on first use. Opening it again is a no-op.
	OpenThread(ctx context.Context, coachID, clientID primitive.ObjectID) (*domain.Thread, error)
	// ClientThread opens the thread between a client and the coach.
	ClientThread(ctx context.Context, clientID primitive.ObjectID) (*domain.Thread, error)
	ListThreads(ctx context.Context, participant string) ([]domain.Thread, error)
	Messages(ctx context.Context, threadID, requester string) ([]domain.Message, error)
	Send(ctx context.Context, threadID, senderID, text string) (*domain.Message, error)
	// Subscribe streams new messages until ctx ends.
	Subscribe(ctx context.Context, threadID, requester string) (<-chan domain.Message, error)
}

type chatService struct {
	chatRepo   repository.ChatRepository
	coachRepo  repository.CoachRepository
	clientRepo repository.ClientRepository
	log        logging.Logger
	now        func() time.Time
}

func NewChatService(
	chatRepo repository.ChatRepository,
	coachRepo repository.CoachRepository,
	clientRepo repository.ClientRepository,
	log logging.Logger,
) ChatService {
	return &chatService{
		chatRepo:   chatRepo,
		coachRepo:  coachRepo,
		clientRepo: clientRepo,
		log:        log.With("service", "chat"),
		now:        time.Now,
	}
}

func (s *chatService) OpenThread(ctx context.Context, coachID, clientID primitive.ObjectID) (*domain.Thread, error) {
	coach, err := s.coachRepo.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCoachNotFound
		}
		return nil, err
	}
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	a, b := coach.ID.Hex(), client.ID.Hex()
	thread := &domain.Thread{
		ID:           domain.ThreadKey(a, b),
		Participants: []string{a, b},
		ParticipantNames: map[string]string{
			a: coach.Name,
			b: client.Name,
		},
		LastUpdate: s.now().UTC(),
	}
	return s.chatRepo.EnsureThread(ctx, thread)
}

func (s *chatService) ClientThread(ctx context.Context, clientID primitive.ObjectID) (*domain.Thread, error) {
	coach, err := s.coachRepo.Primary(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCoachNotFound
		}
		return nil, err
	}
	return s.OpenThread(ctx, coach.ID, clientID)
}

func (s *chatService) ListThreads(ctx context.Context, participant string) ([]domain.Thread, error) {
	return s.chatRepo.ListThreads(ctx, participant)
}

func (s *chatService) Messages(ctx context.Context, threadID, requester string) ([]domain.Message, error) {
	if _, err := s.authorize(ctx, threadID, requester); err != nil {
		return nil, err
	}
	return s.chatRepo.ListMessages(ctx, threadID)
}

func (s *chatService) Send(ctx context.Context, threadID, senderID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrValidationFailed)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message is longer than %d characters", ErrValidationFailed, MaxMessageLength)
	}
	if _, err := s.authorize(ctx, threadID, senderID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ThreadID:  threadID,
		Text:      text,
		SenderID:  senderID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.chatRepo.AddMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrThreadNotFound
		}
		s.log.Error(ctx, "send message failed", "threadId", threadID, "error", err)
		return nil, err
	}
	return msg, nil
}

func (s *chatService) Subscribe(ctx context.Context, threadID, requester string) (<-chan domain.Message, error) {
	if _, err := s.authorize(ctx, threadID, requester); err != nil {
		return nil, err
	}
	return s.chatRepo.WatchMessages(ctx, threadID)
}

func (s *chatService) authorize(ctx context.Context, threadID, requester string) (*domain.Thread, error) {
	thread, err := s.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	if !thread.HasParticipant(requester) {
		return nil, ErrNotParticipant
	}
	return thread, nil
}
