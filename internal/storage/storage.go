package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FITContentType is the content type clients must send when uploading.
const FITContentType = "application/vnd.ant.fit"

var ErrObjectNotFound = errors.New("object not found in storage")

// FileStorage is the object store that holds uploaded activity files.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows a PUT of
	// objectKey directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GetObject streams an object. The caller closes the reader.
	// ErrObjectNotFound is returned for missing keys.
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)

	DeleteObject(ctx context.Context, objectKey string) error
}

// ActivityObjectKey returns a fresh key under the athlete's prefix.
func ActivityObjectKey(athleteID string) string {
	return fmt.Sprintf("activities/%s/%s.fit", athleteID, uuid.NewString())
}

// OwnsObjectKey reports whether objectKey lives under the athlete's prefix.
func OwnsObjectKey(athleteID, objectKey string) bool {
	prefix := "activities/" + athleteID + "/"
	return strings.HasPrefix(objectKey, prefix) && len(objectKey) > len(prefix)
}
