package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ptcoach/pt-manager/internal/domain"
)

var (
	ErrUnsupportedContentType = errors.New("only jpeg, png, webp and heic images can be uploaded")
	ErrInvalidFolder          = errors.New("unknown upload folder")
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// ClientPrefix is the folder holding every blob of a client.
func ClientPrefix(clientID string) string {
	return "clients/" + clientID + "/"
}

// NewObjectKey builds clients/{clientID}/{folder}/{uuid}.{ext}.
func NewObjectKey(clientID string, folder domain.PhotoFolder, contentType string) (string, error) {
	if !folder.Valid() {
		return "", ErrInvalidFolder
	}
	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedContentType
	}
	return fmt.Sprintf("%s%s/%s.%s", ClientPrefix(clientID), folder, uuid.NewString(), ext), nil
}

// OwnsKey reports whether key lies in the given folder of the client.
func OwnsKey(clientID string, folder domain.PhotoFolder, key string) bool {
	prefix := ClientPrefix(clientID) + string(folder) + "/"
	rest, ok := strings.CutPrefix(key, prefix)
	return ok && rest != "" && !strings.Contains(rest, "/") && !strings.Contains(rest, "..")
}
