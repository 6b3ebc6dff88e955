package biometric

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/observability"
	"github.com/your-org/facesearch/internal/verify"
	"github.com/your-org/facesearch/internal/vision"
)

const minPreselect = 50

type ImageSearchOptions struct {
	Limit int
	// Gender keeps records whose state text mentions it.
	Gender vision.Gender
	// StateContains keeps records whose state text contains the phrase.
	StateContains string
	// AgeMin and AgeMax restrict by the school level named in the state text.
	// Both zero means no age filter.
	AgeMin int
	AgeMax int
}

type ImageMatch struct {
	User             models.User `json:"user"`
	Similarity       float32     `json:"similarity"`
	SearchQuality    float32     `json:"search_quality"`
	StoredQuality    float32     `json:"stored_quality"`
	Confidence       verify.Tier `json:"confidence"`
	StateMoment      string      `json:"state_moment"`
	ExtractorVersion string      `json:"extractor_version"`
	MatchReason      string      `json:"match_reason"`
}

type scoredCandidate struct {
	models.FaceCandidate
	similarity float32
}

// SearchByImage finds users of role whose reference face resembles the face
// in probe.
func (s *Service) SearchByImage(ctx context.Context, probe []byte, role models.Role, opts ImageSearchOptions) ([]ImageMatch, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	observability.Searches.WithLabelValues("image").Inc()

	_, best, err := s.analyzeBest(ctx, probe)
	if err != nil {
		return nil, err
	}

	version := best.Embedding.Version
	candidates, err := s.Faces.NearestFaces(ctx, best.Embedding.Vector, version, s.imageQuality, max(minPreselect, opts.Limit*10))
	if err != nil {
		return nil, fmt.Errorf("preselect candidates: %w", err)
	}

	var hits []scoredCandidate
	for _, c := range candidates {
		if c.QualityScore < s.imageQuality || !opts.matches(c.StateMoment) {
			continue
		}
		sim := verify.Similarity(best.Embedding.Vector, c.Embedding, best.Quality, c.QualityScore)
		if sim < s.imageThreshold {
			continue
		}
		hits = append(hits, scoredCandidate{FaceCandidate: c, similarity: sim})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].similarity > hits[j].similarity })
	if len(hits) > opts.Limit*2 {
		hits = hits[:opts.Limit*2]
	}
	if len(hits) == 0 {
		return []ImageMatch{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.UserID
	}
	users, err := s.Directory.GetUsers(ctx, ids, role)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	out := make([]ImageMatch, 0, opts.Limit)
	for _, h := range hits {
		if len(out) == opts.Limit {
			break
		}
		u, ok := users[h.UserID]
		if !ok {
			continue
		}
		avgQ := (best.Quality + h.QualityScore) / 2
		tier := verify.TierFor(h.similarity, avgQ)
		out = append(out, ImageMatch{
			User:             u,
			Similarity:       h.similarity,
			SearchQuality:    best.Quality,
			StoredQuality:    h.QualityScore,
			Confidence:       tier,
			StateMoment:      h.StateMoment,
			ExtractorVersion: version,
			MatchReason:      verify.MatchReason(h.similarity, avgQ, tier, version),
		})
	}
	return out, nil
}

func (o ImageSearchOptions) matches(state string) bool {
	if o.Gender != "" && !strings.Contains(state, string(o.Gender)) {
		return false
	}
	if o.StateContains != "" && !strings.Contains(state, o.StateContains) {
		return false
	}
	if o.AgeMin == 0 && o.AgeMax == 0 {
		return true
	}
	lo, hi := o.AgeMin, o.AgeMax
	if hi == 0 {
		hi = 200
	}
	return (lo <= 15 && (strings.Contains(state, "học sinh") || strings.Contains(state, "tiểu học"))) ||
		(lo <= 18 && hi >= 15 && strings.Contains(state, "trung học")) ||
		(lo <= 25 && hi >= 18 && strings.Contains(state, "sinh viên"))
}
