package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/facesearch/internal/config"
)

// ObjectStore holds reference images.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// URL is the stable address stored on face records.
	URL(key string) string
	// KeyFromURL reverses URL. ok is false for URLs outside this store.
	KeyFromURL(rawURL string) (key string, ok bool)
	Ping(ctx context.Context) error
}

// NewObjectStore builds the store selected by cfg.Storage.Driver.
func NewObjectStore(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.Storage.Driver {
	case "", "minio":
		s, err := NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// ReferenceKey is the object key of a user's reference image.
func ReferenceKey(userID string, at time.Time) string {
	return fmt.Sprintf("profiles/%s/%d.jpg", userID, at.UnixMilli())
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// keyUnder extracts the object key from rawURL when it lives under base.
func keyUnder(rawURL, base string) (string, bool) {
	if base == "" {
		return "", false
	}
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if decoded, err := url.PathUnescape(key); err == nil {
		key = decoded
	}
	return key, key != ""
}
