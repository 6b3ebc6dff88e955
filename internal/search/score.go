package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/your-org/facesearch/internal/config"
)

// NoAgeDifference is the difference reported when a record carries no age.
const NoAgeDifference = 999

var recordAgeRe = regexp.MustCompile(`(\d+)\s*tuổi`)

// Weights controls how matches turn into points.
type Weights struct {
	State        int
	Age          int
	ExactBonus   int
	PartialBonus int
	// AgeBonuses[i] is awarded for an age difference of at most i years.
	AgeBonuses []int
	High       int
	Medium     int
}

func DefaultWeights() Weights {
	return Weights{
		State:        15,
		Age:          10,
		ExactBonus:   10,
		PartialBonus: 5,
		AgeBonuses:   []int{30, 20, 15, 10},
		High:         30,
		Medium:       15,
	}
}

func WeightsFromConfig(cfg config.SearchConfig) Weights {
	w := DefaultWeights()
	if cfg.StateWeight > 0 {
		w.State = cfg.StateWeight
	}
	if cfg.AgeWeight > 0 {
		w.Age = cfg.AgeWeight
	}
	if cfg.ExactBonus > 0 {
		w.ExactBonus = cfg.ExactBonus
	}
	if cfg.PartialBonus > 0 {
		w.PartialBonus = cfg.PartialBonus
	}
	if len(cfg.AgeBonuses) > 0 {
		w.AgeBonuses = cfg.AgeBonuses
	}
	if cfg.HighScore > 0 {
		w.High = cfg.HighScore
	}
	if cfg.MediumScore > 0 {
		w.Medium = cfg.MediumScore
	}
	return w
}

// Scored is the breakdown of one record against one query.
type Scored struct {
	StateMatches  []string
	AgeMatches    []string
	ExtractedAge  int
	HasAge        bool
	AgeDifference int
	HasTarget     bool
	StateScore    int
	AgeScore      int
	AgeBonus      int
	SemanticBonus int
	Total         int
}

func (s Scored) matched() bool {
	return len(s.StateMatches) > 0 || len(s.AgeMatches) > 0
}

// Score matches the query terms against the comma separated attribute strings.
func (w Weights) Score(q Query, stateMoment, userAge string) Scored {
	s := Scored{
		StateMatches: matchItems(stateMoment, q.Terms),
		AgeMatches:   matchItems(userAge, q.Terms),
	}
	s.StateScore = len(s.StateMatches) * w.State
	s.AgeScore = len(s.AgeMatches) * w.Age

	if m := recordAgeRe.FindStringSubmatch(strings.ToLower(userAge)); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			s.ExtractedAge, s.HasAge = age, true
		}
	}

	if q.TargetAge > 0 {
		s.HasTarget = true
		s.AgeDifference = NoAgeDifference
		if s.HasAge {
			s.AgeDifference = absInt(s.ExtractedAge - q.TargetAge)
			s.AgeBonus = w.ageBonus(s.AgeDifference)
		}
	}

	if s.matched() || (q.AgeOnly && s.HasAge) {
		if len(q.ExactPhrases) > 0 {
			s.SemanticBonus = w.ExactBonus
		} else {
			s.SemanticBonus = w.PartialBonus
		}
	}

	s.Total = s.StateScore + s.AgeScore + s.SemanticBonus + s.AgeBonus
	return s
}

// Keep reports whether a scored record belongs in the result set.
func (s Scored) Keep(q Query, minScore int) bool {
	if s.Total < minScore {
		return false
	}
	return s.matched() || (q.AgeOnly && s.HasAge && s.AgeBonus > 0)
}

func (w Weights) ageBonus(diff int) int {
	if diff < 0 || diff >= len(w.AgeBonuses) {
		return 0
	}
	return w.AgeBonuses[diff]
}

// Confidence maps a total score to a tier name.
func (w Weights) Confidence(total int) string {
	switch {
	case total >= w.High:
		return "high"
	case total >= w.Medium:
		return "medium"
	default:
		return "low"
	}
}

// MatchReason renders a short explanation of why a record matched.
func MatchReason(s Scored) string {
	var parts []string
	if len(s.StateMatches) > 0 {
		parts = append(parts, "Match: "+strings.Join(s.StateMatches[:min(3, len(s.StateMatches))], ", "))
	}
	if len(s.AgeMatches) > 0 {
		parts = append(parts, "Age: "+strings.Join(s.AgeMatches[:min(2, len(s.AgeMatches))], ", "))
	}
	if s.HasTarget && s.HasAge {
		switch {
		case s.AgeDifference == 0:
			parts = append(parts, "Perfect age")
		case s.AgeDifference <= 2:
			parts = append(parts, fmt.Sprintf("Close age (±%dy)", s.AgeDifference))
		}
	}
	if s.SemanticBonus > 0 {
		parts = append(parts, "Semantic bonus")
	}
	if len(parts) == 0 {
		return "Basic match"
	}
	return strings.Join(parts, " • ")
}

func matchItems(field string, terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	var out []string
	for _, item := range strings.Split(strings.ToLower(field), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		for _, t := range terms {
			if strings.Contains(item, t) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
