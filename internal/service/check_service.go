package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository"
	"ptcoach/pt-manager/internal/storage"
)

// --- Error Definitions ---
var (
	ErrCheckNotFound   = errors.New("check not found")
	ErrCheckLocked     = errors.New("the edit window for this check has closed")
	ErrFutureCheckDate = errors.New("check date cannot be in the future")
	ErrPhotoNotOwned   = errors.New("photo does not belong to this client")
)

// CheckInput is what a client submits. Date backdates the check; nil
// means now.
type CheckInput struct {
	Weight float64
	Notes  string
	Photos domain.Photos
	Date   *time.Time
}

// CheckView is a check with temporary photo links.
type CheckView struct {
	domain.Check
	PhotoURLs map[domain.PhotoPosition]string `json:"photoUrls"`
	Editable  bool                            `json:"editable"`
}

type CheckService interface {
	Submit(ctx context.Context, clientID primitive.ObjectID, in CheckInput) (*CheckView, error)
	// Edit is only allowed while the check is inside the edit window.
	Edit(ctx context.Context, clientID, checkID primitive.ObjectID, in CheckInput) (*CheckView, error)
	SetFeedback(ctx context.Context, clientID, checkID primitive.ObjectID, feedback string) error
	Delete(ctx context.Context, clientID, checkID primitive.ObjectID) error
	List(ctx context.Context, clientID primitive.ObjectID) ([]CheckView, error)
	Latest(ctx context.Context, clientID primitive.ObjectID) (*CheckView, error)
}

type checkService struct {
	checkRepo   repository.CheckRepository
	clientRepo  repository.ClientRepository
	fileStorage storage.FileStorage
	log         logging.Logger
	cadenceDays int
	editWindow  time.Duration
	now         func() time.Time
}

func NewCheckService(
	checkRepo repository.CheckRepository,
	clientRepo repository.ClientRepository,
	fileStorage storage.FileStorage,
	log logging.Logger,
	cadenceDays int,
	editWindow time.Duration,
) CheckService {
	return &checkService{
		checkRepo:   checkRepo,
		clientRepo:  clientRepo,
		fileStorage: fileStorage,
		log:         log.With("service", "checks"),
		cadenceDays: cadenceDays,
		editWindow:  editWindow,
		now:         time.Now,
	}
}

// Submit stores a check and moves the client's next suggested check-in
// to the latest check date plus the cadence.
func (s *checkService) Submit(ctx context.Context, clientID primitive.ObjectID, in CheckInput) (*CheckView, error) {
	if err := s.validate(clientID, in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	createdAt := now
	if in.Date != nil && !in.Date.IsZero() {
		if in.Date.After(now) {
			return nil, ErrFutureCheckDate
		}
		createdAt = in.Date.UTC()
	}

	check := &domain.Check{
		ClientID:  clientID,
		Weight:    in.Weight,
		Notes:     strings.TrimSpace(in.Notes),
		Photos:    in.Photos,
		CreatedAt: createdAt,
	}
	if _, err := s.checkRepo.Create(ctx, check); err != nil {
		s.log.Error(ctx, "create check failed", "clientId", clientID.Hex(), "error", err)
		return nil, err
	}
	s.log.Info(ctx, "check submitted", "clientId", clientID.Hex(), "checkId", check.ID.Hex())

	s.refreshNextCheckIn(ctx, clientID)

	v := s.view(ctx, *check, now)
	return &v, nil
}

// refreshNextCheckIn recomputes from the most recent check, which may not
// be the one just stored when it was backdated.
func (s *checkService) refreshNextCheckIn(ctx context.Context, clientID primitive.ObjectID) {
	latest, err := s.checkRepo.Latest(ctx, clientID)
	if err != nil {
		s.log.Warn(ctx, "next check-in not updated", "clientId", clientID.Hex(), "error", err)
		return
	}
	next := lifecycle.NextCheckIn(latest.CreatedAt, s.cadenceDays)
	if err := s.clientRepo.SetNextCheckIn(ctx, clientID, next); err != nil {
		s.log.Warn(ctx, "next check-in not updated", "clientId", clientID.Hex(), "error", err)
	}
}

func (s *checkService) Edit(ctx context.Context, clientID, checkID primitive.ObjectID, in CheckInput) (*CheckView, error) {
	if err := s.validate(clientID, in); err != nil {
		return nil, err
	}
	check, err := s.getCheck(ctx, clientID, checkID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !check.EditableAt(now, s.editWindow) {
		return nil, ErrCheckLocked
	}

	check.Weight = in.Weight
	check.Notes = strings.TrimSpace(in.Notes)
	check.Photos = check.Photos.Merge(in.Photos)
	if err := s.checkRepo.UpdateContent(ctx, check, now.Add(-s.editWindow)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrCheckLocked
		}
		return nil, err
	}
	v := s.view(ctx, *check, now)
	return &v, nil
}

func (s *checkService) SetFeedback(ctx context.Context, clientID, checkID primitive.ObjectID, feedback string) error {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return fmt.Errorf("%w: feedback is required", ErrValidationFailed)
	}
	if err := s.checkRepo.SetFeedback(ctx, clientID, checkID, feedback, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCheckNotFound
		}
		return err
	}
	return nil
}

func (s *checkService) Delete(ctx context.Context, clientID, checkID primitive.ObjectID) error {
	check, err := s.getCheck(ctx, clientID, checkID)
	if err != nil {
		return err
	}
	if err := s.checkRepo.Delete(ctx, clientID, checkID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCheckNotFound
		}
		return err
	}
	for _, key := range check.Photos {
		if err := s.fileStorage.DeleteObject(ctx, key); err != nil {
			s.log.Warn(ctx, "photo left in storage", "checkId", checkID.Hex(), "key", key, "error", err)
		}
	}
	return nil
}

func (s *checkService) List(ctx context.Context, clientID primitive.ObjectID) ([]CheckView, error) {
	checks, err := s.checkRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]CheckView, 0, len(checks))
	for _, c := range checks {
		out = append(out, s.view(ctx, c, now))
	}
	return out, nil
}

func (s *checkService) Latest(ctx context.Context, clientID primitive.ObjectID) (*CheckView, error) {
	check, err := s.checkRepo.Latest(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCheckNotFound
		}
		return nil, err
	}
	v := s.view(ctx, *check, s.now())
	return &v, nil
}

func (s *checkService) validate(clientID primitive.ObjectID, in CheckInput) error {
	if in.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrValidationFailed)
	}
	return validatePhotos(clientID, domain.FolderChecks, in.Photos)
}

func (s *checkService) getCheck(ctx context.Context, clientID, checkID primitive.ObjectID) (*domain.Check, error) {
	check, err := s.checkRepo.GetByID(ctx, clientID, checkID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCheckNotFound
		}
		return nil, err
	}
	return check, nil
}

func (s *checkService) view(ctx context.Context, c domain.Check, now time.Time) CheckView {
	return CheckView{
		Check:     c,
		PhotoURLs: presignPhotos(ctx, s.fileStorage, s.log, c.Photos),
		Editable:  c.EditableAt(now, s.editWindow),
	}
}

// validatePhotos checks slot names and that every key was issued for this
// client and folder.
func validatePhotos(clientID primitive.ObjectID, folder domain.PhotoFolder, photos domain.Photos) error {
	if err := photos.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	for _, key := range photos {
		if !storage.OwnsKey(clientID.Hex(), folder, key) {
			return ErrPhotoNotOwned
		}
	}
	return nil
}

// presignPhotos returns download links. A photo whose link cannot be made
// is left out.
func presignPhotos(ctx context.Context, fs storage.FileStorage, log logging.Logger, photos domain.Photos) map[domain.PhotoPosition]string {
	urls := make(map[domain.PhotoPosition]string, len(photos))
	for pos, key := range photos {
		u, err := fs.GeneratePresignedDownloadURL(ctx, key, storage.DefaultPresignedURLExpiry)
		if err != nil {
			log.Warn(ctx, "photo link unavailable", "key", key, "error", err)
			continue
		}
		urls[pos] = u
	}
	return urls
}
