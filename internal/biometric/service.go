// Package biometric implements the public face operations: registration,
// verification, text and image search, deletion and re-embedding.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facesearch/internal/config"
	"github.com/your-org/facesearch/internal/imageio"
	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/observability"
	"github.com/your-org/facesearch/internal/search"
	"github.com/your-org/facesearch/internal/storage"
	"github.com/your-org/facesearch/internal/verify"
	"github.com/your-org/facesearch/internal/vision"
)

var ErrInvalidImage = errors.New("invalid image")

const referenceJPEGQuality = 92

type FaceStore interface {
	UpsertFace(ctx context.Context, rec *models.FaceRecord) error
	GetFace(ctx context.Context, userID string) (*models.FaceRecord, error)
	DeleteFace(ctx context.Context, userID string) (*models.FaceRecord, error)
	NearestFaces(ctx context.Context, embedding []float32, version string, minQuality float32, limit int) ([]models.FaceCandidate, error)
	ListStaleFaces(ctx context.Context, version string) ([]models.FaceRecord, error)
}

type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string, role models.Role) (map[string]models.User, error)
	UpdateAvatar(ctx context.Context, id, avatarURL string) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, ev models.FaceEvent) error
	PublishReembed(ctx context.Context, task models.ReembedTask) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Evict(ctx context.Context, url string) error
}

type FaceAnalyzer interface {
	Analyze(ctx context.Context, img image.Image) ([]vision.FaceAnalysis, error)
	ExtractorVersion() string
}

// Deps are the collaborators of a Service. Publisher may be nil.
type Deps struct {
	Analyzer  FaceAnalyzer
	Verifier  *verify.Engine
	Search    *search.Engine
	Faces     FaceStore
	Objects   storage.ObjectStore
	Directory Directory
	Publisher Publisher
	Fetcher   Fetcher
}

type Service struct {
	Deps
	imageThreshold float32
	imageQuality   float32
	now            func() time.Time
}

func NewService(deps Deps, cfg config.VerifyConfig) *Service {
	threshold := float32(cfg.ImageSearchThreshold)
	if threshold == 0 {
		threshold = 0.25
	}
	quality := float32(cfg.ImageSearchQuality)
	if quality == 0 {
		quality = 0.4
	}
	return &Service{
		Deps:           deps,
		imageThreshold: threshold,
		imageQuality:   quality,
		now:            time.Now,
	}
}

// analyzeBest decodes data and returns the highest quality face in it.
func (s *Service) analyzeBest(ctx context.Context, data []byte) (image.Image, vision.FaceAnalysis, error) {
	img, err := imageio.Decode(data)
	if err != nil {
		return nil, vision.FaceAnalysis{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	start := time.Now()
	faces, err := s.Analyzer.Analyze(ctx, img)
	observability.InferenceDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, vision.FaceAnalysis{}, err
	}
	return img, vision.Best(faces), nil
}

// RegisterFace analyzes the image and stores it as userID's reference face,
// replacing any earlier registration.
func (s *Service) RegisterFace(ctx context.Context, userID string, data []byte) (*models.FaceRecord, error) {
	img, best, err := s.analyzeBest(ctx, data)
	if err != nil {
		return nil, err
	}

	var class string
	user, err := s.Directory.GetUser(ctx, userID)
	if err != nil {
		slog.Warn("directory lookup failed, using default class", "user_id", userID, "error", err)
	} else if user != nil {
		class = user.Class
	}

	jpeg, err := imageio.EncodeJPEG(img, referenceJPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode reference image: %w", err)
	}
	key := storage.ReferenceKey(userID, s.now())
	if err := s.Objects.PutObject(ctx, key, jpeg, "image/jpeg"); err != nil {
		return nil, fmt.Errorf("upload reference image: %w", err)
	}

	previous, err := s.Faces.GetFace(ctx, userID)
	if err != nil {
		slog.Warn("load previous face record", "user_id", userID, "error", err)
	}

	rec := &models.FaceRecord{
		UserID:              userID,
		Embedding:           best.Embedding.Vector,
		ExtractorVersion:    best.Embedding.Version,
		Landmarks:           best.Detection.Landmarks,
		QualityScore:        best.Quality,
		Brightness:          best.Brightness,
		Contrast:            best.Contrast,
		DetectionConfidence: best.Detection.Confidence,
		StateMoment:         vision.StateMoment(best.Attributes.Age, best.Attributes.Gender, best.Quality),
		UserAge:             vision.UserAge(class),
		ReferenceImageURL:   s.Objects.URL(key),
		ReferenceKey:        key,
	}
	if err := s.Faces.UpsertFace(ctx, rec); err != nil {
		if delErr := s.Objects.DeleteObject(ctx, key); delErr != nil {
			slog.Warn("remove orphaned reference image", "key", key, "error", delErr)
		}
		return nil, err
	}
	observability.FacesRegistered.Inc()

	if previous != nil && previous.ReferenceKey != "" && previous.ReferenceKey != key {
		if err := s.Objects.DeleteObject(ctx, previous.ReferenceKey); err != nil {
			slog.Warn("remove replaced reference image", "key", previous.ReferenceKey, "error", err)
		}
		s.evict(ctx, previous.ReferenceImageURL)
	}
	if err := s.Directory.UpdateAvatar(ctx, userID, rec.ReferenceImageURL); err != nil {
		slog.Warn("update avatar", "user_id", userID, "error", err)
	}
	s.publish(ctx, models.FaceRegistered, rec)

	slog.Info("face registered", "user_id", userID, "quality", rec.QualityScore,
		"extractor", rec.ExtractorVersion, "state_moment", rec.StateMoment)
	return rec, nil
}

// VerifyFace compares probe against userID's reference face. The result is
// always populated; a non-nil error explains why it is a forced non-match or
// how it was degraded.
func (s *Service) VerifyFace(ctx context.Context, userID string, probe []byte) (*verify.Result, error) {
	rec, err := s.Faces.GetFace(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		res := verify.NoMatch("no reference face registered for this user")
		return &res, verify.ErrNoReferenceRecord
	}

	_, best, err := s.analyzeBest(ctx, probe)
	if err != nil {
		res := verify.NoMatch("probe image could not be analyzed: " + err.Error())
		return &res, err
	}

	ref := verify.Sample{Embedding: rec.Embedding, Version: rec.ExtractorVersion, Quality: rec.QualityScore}
	sample := verify.Sample{Embedding: best.Embedding.Vector, Version: best.Embedding.Version, Quality: best.Quality}

	refImage := func(ctx context.Context) ([]byte, error) {
		return s.Fetcher.Fetch(ctx, rec.ReferenceImageURL)
	}
	probeImage := func(context.Context) ([]byte, error) {
		return probe, nil
	}

	res, err := s.Verifier.Verify(ctx, ref, sample, refImage, probeImage)
	slog.Info("face verified", "user_id", userID, "match", res.IsMatch, "similarity", res.Similarity,
		"method", res.Method, "confidence", res.Confidence)
	return &res, err
}

func (s *Service) SearchByText(ctx context.Context, text string, role models.Role, opts search.Options) ([]search.Result, error) {
	return s.Search.Search(ctx, text, role, opts)
}

// ParseQuery exposes how a text query is understood, for echoing back to clients.
func (s *Service) ParseQuery(text string) search.Query {
	return s.Search.Parse(text)
}

// DeleteFace removes userID's record and reference image.
func (s *Service) DeleteFace(ctx context.Context, userID string) error {
	rec, err := s.Faces.DeleteFace(ctx, userID)
	if err != nil {
		return err
	}

	key := rec.ReferenceKey
	if key == "" {
		key, _ = s.Objects.KeyFromURL(rec.ReferenceImageURL)
	}
	if key != "" {
		if err := s.Objects.DeleteObject(ctx, key); err != nil {
			slog.Warn("remove reference image", "key", key, "error", err)
		}
	}
	s.evict(ctx, rec.ReferenceImageURL)
	s.publish(ctx, models.FaceDeleted, rec)
	slog.Info("face deleted", "user_id", userID)
	return nil
}

func (s *Service) evict(ctx context.Context, url string) {
	if s.Fetcher == nil {
		return
	}
	if err := s.Fetcher.Evict(ctx, url); err != nil {
		slog.Warn("evict cached reference image", "url", url, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, rec *models.FaceRecord) {
	if s.Publisher == nil {
		return
	}
	ev := models.FaceEvent{
		ID:               uuid.NewString(),
		Type:             eventType,
		UserID:           rec.UserID,
		ExtractorVersion: rec.ExtractorVersion,
		QualityScore:     rec.QualityScore,
		Timestamp:        s.now().UTC(),
	}
	if err := s.Publisher.PublishEvent(ctx, ev); err != nil {
		slog.Warn("publish face event", "type", eventType, "user_id", rec.UserID, "error", err)
	}
}
