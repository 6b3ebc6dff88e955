package vision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/facesearch/internal/fallback"
	"github.com/your-org/facesearch/internal/imageio"
	"github.com/your-org/facesearch/internal/observability"
)

// DescriptorVersion identifies embeddings built from hand-crafted descriptors.
const DescriptorVersion = "cv:lbp-gabor-hog:v1"

const recognitionInputSize = 112

// Embedding is a unit-length identity vector and the extractor that produced it.
// Vectors from different versions are not comparable.
type Embedding struct {
	Vector  []float32
	Version string
}

// EmbeddingExtractor produces identity embeddings with the recognition model,
// or with LBP, Gabor and HOG descriptors when no model is usable.
type EmbeddingExtractor struct {
	model Model
}

// NewEmbeddingExtractor builds an extractor. model may be nil.
func NewEmbeddingExtractor(model Model) *EmbeddingExtractor {
	return &EmbeddingExtractor{model: model}
}

// Version reports the extractor identity new embeddings will carry.
func (e *EmbeddingExtractor) Version() string {
	if e.model != nil {
		return "onnx:" + e.model.Name()
	}
	return DescriptorVersion
}

func (e *EmbeddingExtractor) Extract(ctx context.Context, face AlignedFace, quality float32) (Embedding, error) {
	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	}()

	var strategies []fallback.Strategy[Embedding]
	if e.model != nil {
		strategies = append(strategies, fallback.Strategy[Embedding]{
			Name: "model",
			Run: func(context.Context) (Embedding, error) {
				emb, err := e.extractModel(face)
				if err != nil {
					slog.Warn("recognition model failed, using descriptors", "error", err)
				}
				return emb, err
			},
		})
	}
	strategies = append(strategies, fallback.Strategy[Embedding]{
		Name: "descriptors",
		Run: func(context.Context) (Embedding, error) {
			return ExtractDescriptors(face, quality)
		},
	})

	res, err := fallback.FirstSuccess(ctx, "embedding", strategies...)
	if err != nil {
		return Embedding{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return res.Value, nil
}

func (e *EmbeddingExtractor) extractModel(face AlignedFace) (Embedding, error) {
	input := imageio.CHW(face.Image, recognitionInputSize, recognitionInputSize,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
	outputs, err := e.model.Run(input, []int64{1, 3, recognitionInputSize, recognitionInputSize})
	if err != nil {
		return Embedding{}, err
	}
	names := sortedOutputs(outputs)
	if len(names) == 0 {
		return Embedding{}, fmt.Errorf("recognition model returned no outputs")
	}
	vec := append([]float32(nil), outputs[names[0]]...)
	if !l2Normalize(vec) {
		return Embedding{}, ErrExtractionFailed
	}
	return Embedding{Vector: vec, Version: "onnx:" + e.model.Name()}, nil
}

// ExtractDescriptors builds the descriptor embedding of a face. It is deterministic.
func ExtractDescriptors(face AlignedFace, quality float32) (Embedding, error) {
	gray, w, h := imageio.Gray(imageio.Resize(face.Image, descriptorSize, descriptorSize))

	var vec []float32
	for _, r := range lbpRadii {
		vec = append(vec, lbpHistogram(gray, w, h, r)...)
	}
	vec = append(vec, gaborResponses(gray, w, h)...)
	vec = append(vec, hogFeatures(gray, w, h)...)
	vec = append(vec, normalizedLandmarks(face.Detection)...)
	vec = append(vec, quality)

	if !l2Normalize(vec) {
		return Embedding{}, ErrExtractionFailed
	}
	return Embedding{Vector: vec, Version: DescriptorVersion}, nil
}
