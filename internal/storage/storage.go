package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/config"
)

const (
	// FolderTickets is the prefix for every uploaded ticket file.
	FolderTickets = "ticket_files"
	// FolderFollowUps nests follow-up attachments under their ticket.
	FolderFollowUps = "ticket_followups"
)

// ErrInvalidKey is returned for keys that escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Storage persists uploaded ticket files.
type Storage interface {
	Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New selects the backend configured by STORAGE_DRIVER.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		return NewS3(ctx, S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		}, logger)
	case config.StorageDriverLocal, "":
		return NewLocal(cfg.MediaRoot, cfg.MediaURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// TicketFileKey returns a fresh key for a ticket upload:
// ticket_files/ticket_{id}/{uuid}_{filename}. Every call yields a new key so
// uploads sharing a filename never overwrite each other.
func TicketFileKey(ticketID, filename string) string {
	return path.Join(FolderTickets, "ticket_"+ticketID, uniqueName(filename))
}

// FollowUpFileKey returns ticket_files/ticket_{id}/ticket_followups/{uuid}_{filename}.
func FollowUpFileKey(ticketID, filename string) string {
	return path.Join(FolderTickets, "ticket_"+ticketID, FolderFollowUps, uniqueName(filename))
}

// OriginalFilename strips the unique prefix added by TicketFileKey and FollowUpFileKey.
func OriginalFilename(key string) string {
	name := path.Base(key)
	if len(name) > 37 && name[36] == '_' && uuid.Validate(name[:36]) == nil {
		return name[37:]
	}
	return name
}

func uniqueName(filename string) string {
	return uuid.NewString() + "_" + cleanFilename(filename)
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return name
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
