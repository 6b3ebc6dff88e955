// Package verify compares faces: embedding similarity with quality weighting,
// optionally decided or backed up by an external vision-comparison delegate.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/your-org/facesearch/internal/config"
	"github.com/your-org/facesearch/internal/observability"
)

var (
	ErrNoReferenceRecord = errors.New("no reference face record")
	ErrDelegateParse     = errors.New("unparseable delegate verdict")
	ErrExtractorMismatch = errors.New("embeddings come from different extractors")
)

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

type DelegateMode string

const (
	ModeOff      DelegateMode = "off"
	ModeFallback DelegateMode = "fallback"
	ModePrimary  DelegateMode = "primary"
)

const (
	MethodEmbedding = "embedding"
	MethodDelegate  = "delegate"
	MethodNone      = "none"
)

// Sample is one side of a comparison.
type Sample struct {
	Embedding []float32
	Version   string
	Quality   float32
}

// Result is the outcome of a verification. It is always populated, even when
// an error accompanies it.
type Result struct {
	IsMatch             bool    `json:"is_match"`
	Similarity          float32 `json:"similarity"`
	EmbeddingSimilarity float32 `json:"embedding_similarity"`
	Confidence          Tier    `json:"confidence"`
	Method              string  `json:"method"`
	Quality             float32 `json:"quality_score"`
	ExtractorVersion    string  `json:"extractor_version,omitempty"`
	Analysis            string  `json:"analysis,omitempty"`
}

// NoMatch is the low-confidence negative result returned when a comparison
// cannot be made.
func NoMatch(analysis string) Result {
	return Result{Confidence: TierLow, Method: MethodNone, Analysis: analysis}
}

// ImageSource lazily provides an image for the delegate.
type ImageSource func(ctx context.Context) ([]byte, error)

type Engine struct {
	threshold float32
	mode      DelegateMode
	delegate  Delegate
	timeout   time.Duration
}

// NewEngine builds an engine. delegate may be nil, which behaves as mode off.
func NewEngine(cfg config.VerifyConfig, delegate Delegate) *Engine {
	mode := DelegateMode(strings.ToLower(cfg.DelegateMode))
	switch mode {
	case ModeOff, ModeFallback, ModePrimary:
	default:
		mode = ModeFallback
	}
	if delegate == nil {
		mode = ModeOff
	}
	threshold := float32(cfg.SimilarityThreshold)
	if threshold == 0 {
		threshold = 0.65
	}
	return &Engine{threshold: threshold, mode: mode, delegate: delegate, timeout: cfg.DelegateTimeout}
}

func (e *Engine) Mode() DelegateMode { return e.mode }

// IdenticalCosine is the cosine at or above which two embeddings are treated
// as the same capture and quality weighting is skipped.
const IdenticalCosine = 0.999

// Similarity is the cosine of a and b weighted by sqrt(qa·qb). Identical
// embeddings score their raw cosine. Mismatched lengths or zero vectors give 0.
func Similarity(a, b []float32, qa, qb float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos >= IdenticalCosine {
		return float32(math.Min(cos, 1))
	}
	return float32(cos * math.Sqrt(math.Max(0, float64(qa)*float64(qb))))
}

func TierFor(similarity, avgQuality float32) Tier {
	switch {
	case similarity >= 0.8 && avgQuality >= 0.7:
		return TierHigh
	case similarity >= 0.6 && avgQuality >= 0.5:
		return TierMedium
	default:
		return TierLow
	}
}

// Compare scores probe against ref by embedding alone.
func (e *Engine) Compare(ref, probe Sample) (Result, error) {
	if ref.Version != probe.Version {
		return NoMatch("reference and probe embeddings are not comparable"),
			fmt.Errorf("%w: %q vs %q", ErrExtractorMismatch, ref.Version, probe.Version)
	}
	sim := Similarity(ref.Embedding, probe.Embedding, ref.Quality, probe.Quality)
	return Result{
		IsMatch:             sim >= e.threshold,
		Similarity:          sim,
		EmbeddingSimilarity: sim,
		Confidence:          TierFor(sim, (ref.Quality+probe.Quality)/2),
		Method:              MethodEmbedding,
		Quality:             probe.Quality,
		ExtractorVersion:    probe.Version,
	}, nil
}

// Verify decides whether probe shows the same person as ref according to the
// delegate mode. refImage and probeImage are only read when the delegate runs.
// The returned error explains a degraded result; the result is usable either way.
func (e *Engine) Verify(ctx context.Context, ref, probe Sample, refImage, probeImage ImageSource) (Result, error) {
	embedRes, embedErr := e.Compare(ref, probe)

	useDelegate := e.mode == ModePrimary || (e.mode == ModeFallback && embedErr != nil)
	if !useDelegate {
		record(embedRes)
		return embedRes, embedErr
	}

	verdict, err := e.askDelegate(ctx, refImage, probeImage, probe.Quality)
	if err != nil {
		slog.Warn("verification delegate failed", "mode", e.mode, "error", err)
		if embedErr != nil {
			res := NoMatch("verification unavailable: " + err.Error())
			res.Quality = probe.Quality
			record(res)
			return res, errors.Join(embedErr, err)
		}
		record(embedRes)
		return embedRes, nil
	}

	res := Result{
		IsMatch:          verdict.IsMatch,
		Similarity:       verdict.Similarity,
		Confidence:       verdict.Confidence,
		Method:           MethodDelegate,
		Quality:          probe.Quality,
		ExtractorVersion: probe.Version,
		Analysis:         verdict.Analysis,
	}
	if embedErr == nil {
		res.EmbeddingSimilarity = embedRes.Similarity
	}
	record(res)
	return res, nil
}

func (e *Engine) askDelegate(ctx context.Context, refImage, probeImage ImageSource, quality float32) (Verdict, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if refImage == nil || probeImage == nil {
		return Verdict{}, errors.New("delegate images not provided")
	}

	ref, err := refImage(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("load reference image: %w", err)
	}
	probe, err := probeImage(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("load probe image: %w", err)
	}

	text, err := e.delegate.Compare(ctx, ref, probe)
	if err != nil {
		observability.DelegateCalls.WithLabelValues("error").Inc()
		return Verdict{}, fmt.Errorf("delegate compare: %w", err)
	}

	verdict, err := ParseVerdict(text, quality)
	if err != nil {
		observability.DelegateCalls.WithLabelValues("unparsed").Inc()
		slog.Warn("delegate verdict not parseable", "error", err)
		return verdict, nil
	}
	observability.DelegateCalls.WithLabelValues("ok").Inc()
	return verdict, nil
}

func record(res Result) {
	outcome := "no_match"
	if res.IsMatch {
		outcome = "match"
	}
	observability.Verifications.WithLabelValues(res.Method, outcome).Inc()
}

// MatchReason explains an image-search hit in words.
func MatchReason(similarity, avgQuality float32, tier Tier, version string) string {
	var reasons []string
	switch {
	case similarity >= 0.8:
		reasons = append(reasons, "Very high facial similarity")
	case similarity >= 0.7:
		reasons = append(reasons, "High facial similarity")
	case similarity >= 0.65:
		reasons = append(reasons, "Good facial similarity")
	}
	switch {
	case avgQuality >= 0.7:
		reasons = append(reasons, "High image quality")
	case avgQuality >= 0.5:
		reasons = append(reasons, "Adequate image quality")
	}
	reasons = append(reasons, string(tier)+" confidence")
	if version != "" {
		reasons = append(reasons, "extractor "+version)
	}
	return strings.Join(reasons, ", ")
}
