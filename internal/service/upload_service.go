package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/storage"
)

var ErrUploadURLError = errors.New("failed to generate upload URL")

// UploadURLResponse is returned to the uploader. The object key is sent
// back with the check or anamnesi that uses the photo.
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

type UploadService interface {
	RequestUploadURL(ctx context.Context, clientID primitive.ObjectID, folder domain.PhotoFolder, contentType string) (*UploadURLResponse, error)
}

type uploadService struct {
	fileStorage storage.FileStorage
	log         logging.Logger
}

func NewUploadService(fileStorage storage.FileStorage, log logging.Logger) UploadService {
	return &uploadService{fileStorage: fileStorage, log: log.With("service", "uploads")}
}

func (s *uploadService) RequestUploadURL(ctx context.Context, clientID primitive.ObjectID, folder domain.PhotoFolder, contentType string) (*UploadURLResponse, error) {
	key, err := storage.NewObjectKey(clientID.Hex(), folder, contentType)
	if err != nil {
		return nil, errors.Join(ErrValidationFailed, err)
	}
	url, err := s.fileStorage.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		s.log.Error(ctx, "presign upload failed", "clientId", clientID.Hex(), "error", err)
		return nil, ErrUploadURLError
	}
	return &UploadURLResponse{UploadURL: url, ObjectKey: key}, nil
}
