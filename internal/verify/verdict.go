package verify

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	resultPattern     = regexp.MustCompile(`(?i)RESULT:\s*(SAME|DIFFERENT)`)
	similarityPattern = regexp.MustCompile(`(?i)SIMILARITY:\s*(\d+)`)
	confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE:\s*(HIGH|MEDIUM|LOW)`)
	analysisPattern   = regexp.MustCompile(`(?is)ANALYSIS:\s*(.+)`)
)

// Verdict is the delegate's parsed answer.
type Verdict struct {
	Same       bool
	IsMatch    bool
	Similarity float32
	Confidence Tier
	Analysis   string
}

// ParseVerdict reads the four-field delegate reply and adjusts its confidence
// for the probe quality. A reply without RESULT yields ErrDelegateParse and a
// low-confidence non-match carrying the raw text.
func ParseVerdict(text string, quality float32) (Verdict, error) {
	m := resultPattern.FindStringSubmatch(text)
	if m == nil {
		return Verdict{Confidence: TierLow, Analysis: strings.TrimSpace(text)}, ErrDelegateParse
	}
	v := Verdict{Same: strings.EqualFold(m[1], "SAME"), Confidence: TierLow}

	var sim float32
	if m := similarityPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			sim = min(1, max(0, float32(n)/100))
		}
	}
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		v.Confidence = Tier(strings.ToLower(m[1]))
	}
	if m := analysisPattern.FindStringSubmatch(text); m != nil {
		v.Analysis = strings.TrimSpace(m[1])
	}
	if v.Analysis == "" {
		v.Analysis = "No detailed analysis available"
	}

	switch {
	case quality < 0.4:
		v.Confidence = TierLow
	case quality < 0.7 && v.Confidence == TierHigh:
		v.Confidence = TierMedium
	}

	if v.Same {
		v.Similarity = max(sim, 0.5)
	} else {
		v.Similarity = min(sim, 0.4)
	}
	v.IsMatch = v.Same && v.Similarity >= 0.6
	return v, nil
}
