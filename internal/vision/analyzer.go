package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/facesearch/internal/config"
)

// FaceAnalysis is everything the pipeline learns about one face in an image.
type FaceAnalysis struct {
	Detection  Detection
	Face       AlignedFace
	Attributes AttributeEstimate
	Embedding  Embedding
	Quality    float32
	Brightness float32
	Contrast   float32
}

// Analyzer runs detect → align → (quality, attributes, embedding) for every face.
type Analyzer struct {
	detector   *Detector
	aligner    *Aligner
	attributes *AttributeEstimator
	embedder   *EmbeddingExtractor
	quality    QualityScorer
	workers    int
}

// NewAnalyzer wires the vision components to whatever models the registry holds.
func NewAnalyzer(reg *Registry, cfg config.VisionConfig) *Analyzer {
	det, _ := reg.Model(KindDetector)
	attr, _ := reg.Model(KindAttributes)
	rec, _ := reg.Model(KindRecognition)

	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	return &Analyzer{
		detector:   NewDetector(det, float32(cfg.DetectionThreshold), cfg.DetectorInputSize),
		aligner:    NewAligner(cfg.FaceSize, cfg.MinCropSize),
		attributes: NewAttributeEstimator(attr),
		embedder:   NewEmbeddingExtractor(rec),
		workers:    workers,
	}
}

// ExtractorVersion is the version stamped on embeddings produced now.
func (a *Analyzer) ExtractorVersion() string {
	return a.embedder.Version()
}

// Analyze returns one analysis per detected face, in detection order.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image) ([]FaceAnalysis, error) {
	dets := a.detector.Detect(ctx, img)
	if len(dets) == 0 {
		return nil, ErrNoFaceDetected
	}

	results := make([]*FaceAnalysis, len(dets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, det := range dets {
		g.Go(func() error {
			fa, err := a.analyzeFace(gctx, img, det)
			if err != nil {
				slog.Warn("face analysis failed", "index", i, "error", err)
				return nil
			}
			results[i] = fa
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]FaceAnalysis, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	if len(out) == 0 {
		return nil, ErrExtractionFailed
	}
	return out, nil
}

func (a *Analyzer) analyzeFace(ctx context.Context, img image.Image, det Detection) (*FaceAnalysis, error) {
	face := a.aligner.Align(img, det)
	fa := &FaceAnalysis{Detection: det, Face: face}
	fa.Quality = a.quality.Score(face.Image)
	fa.Brightness, fa.Contrast = a.quality.Stats(face.Image)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fa.Attributes = a.attributes.Estimate(gctx, face)
		return nil
	})
	g.Go(func() error {
		emb, err := a.embedder.Extract(gctx, face, fa.Quality)
		if err != nil {
			return fmt.Errorf("extract embedding: %w", err)
		}
		fa.Embedding = emb
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fa, nil
}

// Best returns the analysis with the highest quality.
func Best(faces []FaceAnalysis) FaceAnalysis {
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Quality > best.Quality {
			best = f
		}
	}
	return best
}
