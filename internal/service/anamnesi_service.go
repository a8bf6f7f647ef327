package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository"
	"ptcoach/pt-manager/internal/storage"
)

var ErrAnamnesiNotFound = errors.New("anamnesi not found")

// AnamnesiView is the questionnaire with temporary photo links.
type AnamnesiView struct {
	domain.Anamnesi
	PhotoURLs map[domain.PhotoPosition]string `json:"photoUrls"`
}

type AnamnesiService interface {
	Get(ctx context.Context, clientID primitive.ObjectID) (*AnamnesiView, error)
	// Save creates the questionnaire or merges the new answers into it.
	Save(ctx context.Context, clientID primitive.ObjectID, answers domain.Anamnesi) (*AnamnesiView, error)
}

type anamnesiService struct {
	anamnesiRepo repository.AnamnesiRepository
	clientRepo   repository.ClientRepository
	fileStorage  storage.FileStorage
	log          logging.Logger
	now          func() time.Time
}

func NewAnamnesiService(
	anamnesiRepo repository.AnamnesiRepository,
	clientRepo repository.ClientRepository,
	fileStorage storage.FileStorage,
	log logging.Logger,
) AnamnesiService {
	return &anamnesiService{
		anamnesiRepo: anamnesiRepo,
		clientRepo:   clientRepo,
		fileStorage:  fileStorage,
		log:          log.With("service", "anamnesi"),
		now:          time.Now,
	}
}

func (s *anamnesiService) Get(ctx context.Context, clientID primitive.ObjectID) (*AnamnesiView, error) {
	a, err := s.anamnesiRepo.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnamnesiNotFound
		}
		return nil, err
	}
	return &AnamnesiView{Anamnesi: *a, PhotoURLs: presignPhotos(ctx, s.fileStorage, s.log, a.Photos)}, nil
}

func (s *anamnesiService) Save(ctx context.Context, clientID primitive.ObjectID, answers domain.Anamnesi) (*AnamnesiView, error) {
	if err := validatePhotos(clientID, domain.FolderAnamnesi, answers.Photos); err != nil {
		return nil, err
	}
	if _, err := s.clientRepo.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	existing, err := s.anamnesiRepo.Get(ctx, clientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	answers.ClientID = clientID
	answers.SubmittedAt = now
	answers.UpdatedAt = now
	if existing != nil {
		answers.Photos = existing.Photos.Merge(answers.Photos)
	}

	created, err := s.anamnesiRepo.Upsert(ctx, &answers)
	if err != nil {
		s.log.Error(ctx, "save anamnesi failed", "clientId", clientID.Hex(), "error", err)
		return nil, err
	}
	s.log.Info(ctx, "anamnesi saved", "clientId", clientID.Hex(), "created", created)
	return s.Get(ctx, clientID)
}
