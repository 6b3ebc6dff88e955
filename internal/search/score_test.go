package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreStateMatches(t *testing.T) {
	q := NewParser(DefaultSynonyms(), DefaultModifiers()).Parse("nữ, da ngăm")
	s := DefaultWeights().Score(q,
		"Học sinh nữ, ảnh chất lượng tốt, da ngăm, xinh đẹp",
		"15 tuổi, học sinh trung học cơ sở")

	assert.Equal(t, []string{"học sinh nữ", "da ngăm"}, s.StateMatches)
	assert.Empty(t, s.AgeMatches)
	assert.Equal(t, 30, s.StateScore)
	assert.Equal(t, 10, s.SemanticBonus)
	assert.False(t, s.HasTarget)
	assert.True(t, s.HasAge)
	assert.Equal(t, 40, s.Total)
	assert.True(t, s.Keep(q, 1))
}

func TestScoreAgeOnly(t *testing.T) {
	q := NewParser(DefaultSynonyms(), DefaultModifiers()).Parse("15 tuổi")
	s := DefaultWeights().Score(q, "học sinh nữ, da vàng", "15 tuổi, học sinh trung học cơ sở")

	assert.Equal(t, []string{"15 tuổi", "học sinh trung học cơ sở"}, s.AgeMatches)
	assert.Equal(t, 20, s.AgeScore)
	assert.Equal(t, 0, s.AgeDifference)
	assert.Equal(t, 30, s.AgeBonus)
	assert.Equal(t, 10, s.SemanticBonus)
	assert.Equal(t, 60, s.Total)
	assert.True(t, s.Keep(q, 1))
}

func TestAgeBonusDecreasesWithDifference(t *testing.T) {
	w := DefaultWeights()
	q := Query{TargetAge: 15, AgeOnly: true}

	want := []int{30, 20, 15, 10, 0, 0}
	prev := 1 << 30
	for diff, bonus := range want {
		s := w.Score(q, "", fmt.Sprintf("%d tuổi", 15+diff))
		assert.Equal(t, bonus, s.AgeBonus, "diff %d", diff)
		assert.Equal(t, diff, s.AgeDifference)
		assert.LessOrEqual(t, s.AgeBonus, prev)
		prev = s.AgeBonus
	}
}

func TestScoreWithoutRecordedAge(t *testing.T) {
	q := Query{TargetAge: 15, AgeOnly: true, Terms: []string{"15"}}
	s := DefaultWeights().Score(q, "học sinh nữ", "")

	assert.False(t, s.HasAge)
	assert.Equal(t, NoAgeDifference, s.AgeDifference)
	assert.Zero(t, s.AgeBonus)
	assert.Zero(t, s.Total)
	assert.False(t, s.Keep(q, 0))
}

func TestKeepRequiresMatch(t *testing.T) {
	q := NewParser(DefaultSynonyms(), DefaultModifiers()).Parse("nam")
	s := DefaultWeights().Score(q, "học sinh nữ, da vàng", "16 tuổi")
	assert.Zero(t, s.Total)
	assert.False(t, s.Keep(q, 0))
}

func TestKeepHonoursMinScore(t *testing.T) {
	q := NewParser(DefaultSynonyms(), DefaultModifiers()).Parse("nữ")
	s := DefaultWeights().Score(q, "học sinh nữ", "")
	assert.Equal(t, 25, s.Total)
	assert.True(t, s.Keep(q, 25))
	assert.False(t, s.Keep(q, 26))
}

func TestConfidence(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, "high", w.Confidence(30))
	assert.Equal(t, "medium", w.Confidence(29))
	assert.Equal(t, "medium", w.Confidence(15))
	assert.Equal(t, "low", w.Confidence(14))
}

func TestMatchReason(t *testing.T) {
	tests := []struct {
		name string
		s    Scored
		want string
	}{
		{
			name: "nothing",
			want: "Basic match",
		},
		{
			name: "all parts",
			s: Scored{
				StateMatches:  []string{"a", "b", "c", "d"},
				AgeMatches:    []string{"x", "y", "z"},
				HasTarget:     true,
				HasAge:        true,
				AgeDifference: 2,
				SemanticBonus: 10,
			},
			want: "Match: a, b, c • Age: x, y • Close age (±2y) • Semantic bonus",
		},
		{
			name: "perfect age",
			s:    Scored{HasTarget: true, HasAge: true, AgeDifference: 0},
			want: "Perfect age",
		},
		{
			name: "far age is not mentioned",
			s:    Scored{HasTarget: true, HasAge: true, AgeDifference: 3, SemanticBonus: 5},
			want: "Semantic bonus",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchReason(tt.s))
		})
	}
}
