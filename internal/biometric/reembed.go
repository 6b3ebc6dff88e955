package biometric

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/vision"
)

// RequestReembed queues every record whose extractor differs from the active
// one and returns how many tasks were published.
func (s *Service) RequestReembed(ctx context.Context) (int, error) {
	if s.Publisher == nil {
		return 0, fmt.Errorf("re-embedding requires a message queue")
	}
	target := s.Analyzer.ExtractorVersion()
	stale, err := s.Faces.ListStaleFaces(ctx, target)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, rec := range stale {
		task := models.ReembedTask{
			UserID:        rec.UserID,
			ImageURL:      rec.ReferenceImageURL,
			FromVersion:   rec.ExtractorVersion,
			TargetVersion: target,
			RequestedAt:   s.now().UTC(),
		}
		if err := s.Publisher.PublishReembed(ctx, task); err != nil {
			return published, fmt.Errorf("publish reembed for %s: %w", rec.UserID, err)
		}
		published++
	}
	slog.Info("reembed requested", "target", target, "tasks", published)
	return published, nil
}

// Reembed recomputes one record with the active extractor from its stored
// reference image. user_age is kept as is.
func (s *Service) Reembed(ctx context.Context, task models.ReembedTask) error {
	rec, err := s.Faces.GetFace(ctx, task.UserID)
	if err != nil {
		return err
	}
	if rec == nil {
		slog.Info("reembed skipped, record gone", "user_id", task.UserID)
		return nil
	}
	current := s.Analyzer.ExtractorVersion()
	if rec.ExtractorVersion == current {
		return nil
	}

	url := rec.ReferenceImageURL
	if url == "" {
		url = task.ImageURL
	}
	data, err := s.Fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch reference for %s: %w", task.UserID, err)
	}
	_, best, err := s.analyzeBest(ctx, data)
	if err != nil {
		return fmt.Errorf("analyze reference for %s: %w", task.UserID, err)
	}

	rec.Embedding = best.Embedding.Vector
	rec.ExtractorVersion = best.Embedding.Version
	rec.Landmarks = best.Detection.Landmarks
	rec.QualityScore = best.Quality
	rec.Brightness = best.Brightness
	rec.Contrast = best.Contrast
	rec.DetectionConfidence = best.Detection.Confidence
	rec.StateMoment = vision.StateMoment(best.Attributes.Age, best.Attributes.Gender, best.Quality)
	if err := s.Faces.UpsertFace(ctx, rec); err != nil {
		return err
	}

	s.publish(ctx, models.FaceReembedded, rec)
	slog.Info("face reembedded", "user_id", rec.UserID, "from", task.FromVersion, "to", rec.ExtractorVersion)
	return nil
}
