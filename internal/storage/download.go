package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/your-org/facesearch/internal/fallback"
	"github.com/your-org/facesearch/internal/observability"
)

var (
	ErrDownloadFailure = errors.New("reference image download failed")

	errNotStoreURL = errors.New("url is not in the object store")
)

// ImageCache stores downloaded images by URL.
type ImageCache interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Set(ctx context.Context, url string, data []byte) error
	Delete(ctx context.Context, url string) error
}

// Downloader fetches reference images, trying the cache, plain HTTP, the
// object store SDK and finally a presigned URL.
type Downloader struct {
	client     *http.Client
	objects    ObjectStore
	cache      ImageCache
	maxBytes   int64
	presignTTL time.Duration
}

// NewDownloader accepts nil objects or cache to skip those strategies.
func NewDownloader(objects ObjectStore, cache ImageCache, timeout time.Duration, maxBytes int64, presignTTL time.Duration) *Downloader {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &Downloader{
		client:     &http.Client{Timeout: timeout},
		objects:    objects,
		cache:      cache,
		maxBytes:   maxBytes,
		presignTTL: presignTTL,
	}
}

// Evict drops url from the cache so a removed image is not served again.
func (d *Downloader) Evict(ctx context.Context, url string) error {
	if d.cache == nil || url == "" {
		return nil
	}
	return d.cache.Delete(ctx, url)
}

func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	var strategies []fallback.Strategy[[]byte]
	if d.cache != nil {
		strategies = append(strategies, fallback.Strategy[[]byte]{Name: "cache", Run: func(ctx context.Context) ([]byte, error) {
			return d.cache.Get(ctx, url)
		}})
	}
	strategies = append(strategies, fallback.Strategy[[]byte]{Name: "http", Run: func(ctx context.Context) ([]byte, error) {
		return d.httpGet(ctx, url)
	}})
	if d.objects != nil {
		strategies = append(strategies,
			fallback.Strategy[[]byte]{Name: "object_store", Run: func(ctx context.Context) ([]byte, error) {
				key, ok := d.objects.KeyFromURL(url)
				if !ok {
					return nil, errNotStoreURL
				}
				return d.objects.GetObject(ctx, key)
			}},
			fallback.Strategy[[]byte]{Name: "presigned", Run: func(ctx context.Context) ([]byte, error) {
				key, ok := d.objects.KeyFromURL(url)
				if !ok {
					return nil, errNotStoreURL
				}
				signed, err := d.objects.PresignGet(ctx, key, d.presignTTL)
				if err != nil {
					return nil, err
				}
				return d.httpGet(ctx, signed)
			}},
		)
	}

	res, err := fallback.FirstSuccess(ctx, "download", strategies...)
	if err != nil {
		observability.Downloads.WithLabelValues("all", "failure").Inc()
		return nil, errors.Join(ErrDownloadFailure, err)
	}
	observability.Downloads.WithLabelValues(res.Strategy, "success").Inc()

	if d.cache != nil && res.Strategy != "cache" {
		if err := d.cache.Set(ctx, url, res.Value); err != nil {
			slog.Warn("cache reference image", "url", url, "error", err)
		}
	}
	return res.Value, nil
}

func (d *Downloader) httpGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("image too large: %d bytes", resp.ContentLength)
	}

	reader := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", d.maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	return data, nil
}
