package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/your-org/facesearch/internal/config"
	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/observability"
)

// AttributeSource lists the attribute strings of every stored record.
type AttributeSource interface {
	ListAttributes(ctx context.Context) ([]models.FaceAttributes, error)
}

// Directory resolves user ids to users of the given role. Ids that are
// unknown or have another role are absent from the result.
type Directory interface {
	GetUsers(ctx context.Context, ids []string, role models.Role) (map[string]models.User, error)
}

type Options struct {
	Limit       int
	MinScore    int
	AgePriority *bool
}

// Result is one ranked user.
type Result struct {
	User          models.User `json:"user"`
	Score         int         `json:"score"`
	StateMatches  []string    `json:"state_matches"`
	AgeMatches    []string    `json:"age_matches"`
	ExactAge      *int        `json:"exact_age,omitempty"`
	AgeDifference *int        `json:"age_difference,omitempty"`
	StateMoment   string      `json:"state_moment"`
	UserAge       string      `json:"user_age"`
	Confidence    string      `json:"confidence"`
	MatchReason   string      `json:"match_reason"`
}

type ranked struct {
	attrs  models.FaceAttributes
	scored Scored
}

type Engine struct {
	parser    *Parser
	weights   Weights
	defaults  config.SearchConfig
	source    AttributeSource
	directory Directory
}

// NewEngine builds an engine over the configured vocabulary and weights.
func NewEngine(cfg config.SearchConfig, source AttributeSource, directory Directory) *Engine {
	synonyms := cfg.Synonyms
	modifiers := cfg.Modifiers
	if !cfg.ReplaceDefault {
		synonyms = DefaultSynonyms()
		for k, v := range cfg.Synonyms {
			synonyms[k] = v
		}
		modifiers = append(DefaultModifiers(), cfg.Modifiers...)
	}
	return &Engine{
		parser:    NewParser(synonyms, modifiers),
		weights:   WeightsFromConfig(cfg),
		defaults:  cfg,
		source:    source,
		directory: directory,
	}
}

func (e *Engine) Parse(text string) Query {
	return e.parser.Parse(text)
}

// Search ranks every stored record against text and returns users of role.
// An empty role matches any role.
func (e *Engine) Search(ctx context.Context, text string, role models.Role, opts Options) ([]Result, error) {
	opts = e.withDefaults(opts)
	q := e.parser.Parse(text)
	observability.Searches.WithLabelValues("text").Inc()

	if len(q.Terms) == 0 {
		return []Result{}, nil
	}

	attrs, err := e.source.ListAttributes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}

	hits := e.rank(q, attrs, opts)
	if len(hits) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.attrs.UserID
	}
	users, err := e.directory.GetUsers(ctx, ids, role)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	results := make([]Result, 0, min(opts.Limit, len(hits)))
	for _, h := range hits {
		if len(results) >= opts.Limit {
			break
		}
		u, ok := users[h.attrs.UserID]
		if !ok {
			continue
		}
		results = append(results, e.result(u, h))
	}

	slog.Debug("text search", "query", q.Text, "terms", q.Terms, "age_only", q.AgeOnly,
		"candidates", len(hits), "results", len(results))
	return results, nil
}

// rank scores, filters and orders attribute rows for a parsed query.
func (e *Engine) rank(q Query, attrs []models.FaceAttributes, opts Options) []ranked {
	opts = e.withDefaults(opts)
	var hits []ranked
	for _, a := range attrs {
		s := e.weights.Score(q, a.StateMoment, a.UserAge)
		if s.Keep(q, opts.MinScore) {
			hits = append(hits, ranked{attrs: a, scored: s})
		}
	}

	byAge := q.TargetAge > 0 && *opts.AgePriority
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].scored, hits[j].scored
		if q.AgeOnly {
			if a.AgeDifference != b.AgeDifference {
				return a.AgeDifference < b.AgeDifference
			}
			return a.Total > b.Total
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if byAge {
			return a.AgeDifference < b.AgeDifference
		}
		return a.AgeDifference > b.AgeDifference
	})
	return hits
}

func (e *Engine) result(u models.User, h ranked) Result {
	s := h.scored
	r := Result{
		User:         u,
		Score:        s.Total,
		StateMatches: nonNil(s.StateMatches),
		AgeMatches:   nonNil(s.AgeMatches),
		StateMoment:  h.attrs.StateMoment,
		UserAge:      h.attrs.UserAge,
		Confidence:   e.weights.Confidence(s.Total),
		MatchReason:  MatchReason(s),
	}
	if s.HasAge {
		age := s.ExtractedAge
		r.ExactAge = &age
	}
	if s.HasTarget {
		diff := s.AgeDifference
		r.AgeDifference = &diff
	}
	return r
}

func (e *Engine) withDefaults(opts Options) Options {
	if opts.Limit <= 0 {
		opts.Limit = e.defaults.DefaultLimit
		if opts.Limit <= 0 {
			opts.Limit = 10
		}
	}
	if opts.MinScore <= 0 {
		opts.MinScore = e.defaults.MinScore
		if opts.MinScore <= 0 {
			opts.MinScore = 1
		}
	}
	if opts.AgePriority == nil {
		v := true
		if e.defaults.AgePriority != nil {
			v = *e.defaults.AgePriority
		}
		opts.AgePriority = &v
	}
	return opts
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
