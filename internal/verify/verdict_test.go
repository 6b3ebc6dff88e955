package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		quality  float32
		match    bool
		sim      float32
		conf     Tier
		analysis string
	}{
		{
			name:     "confident same",
			text:     "RESULT: SAME\nSIMILARITY: 88\nCONFIDENCE: HIGH\nANALYSIS: Mắt và mũi giống nhau.\nThêm chi tiết.",
			quality:  0.9,
			match:    true,
			sim:      0.88,
			conf:     TierHigh,
			analysis: "Mắt và mũi giống nhau.\nThêm chi tiết.",
		},
		{
			name:    "same with low score is lifted to 0.5 but not a match",
			text:    "result: same\nsimilarity: 30\nconfidence: medium",
			quality: 0.9,
			match:   false,
			sim:     0.5,
			conf:    TierMedium,
		},
		{
			name:    "different is capped at 0.4",
			text:    "RESULT: DIFFERENT\nSIMILARITY: 75\nCONFIDENCE: HIGH",
			quality: 0.9,
			sim:     0.4,
			conf:    TierHigh,
		},
		{
			name:    "medium quality downgrades high",
			text:    "RESULT: SAME\nSIMILARITY: 90\nCONFIDENCE: HIGH",
			quality: 0.5,
			match:   true,
			sim:     0.9,
			conf:    TierMedium,
		},
		{
			name:    "low quality forces low",
			text:    "RESULT: SAME\nSIMILARITY: 90\nCONFIDENCE: HIGH",
			quality: 0.3,
			match:   true,
			sim:     0.9,
			conf:    TierLow,
		},
		{
			name:    "missing confidence defaults low, oversized similarity clamps",
			text:    "RESULT: SAME\nSIMILARITY: 150",
			quality: 0.9,
			match:   true,
			sim:     1,
			conf:    TierLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.text, tt.quality)
			require.NoError(t, err)
			assert.Equal(t, tt.match, v.IsMatch)
			assert.InDelta(t, tt.sim, v.Similarity, 1e-6)
			assert.Equal(t, tt.conf, v.Confidence)
			if tt.analysis != "" {
				assert.Equal(t, tt.analysis, v.Analysis)
			}
		})
	}
}

func TestParseVerdictWithoutResult(t *testing.T) {
	v, err := ParseVerdict("  I cannot see a face here.  ", 0.9)
	assert.ErrorIs(t, err, ErrDelegateParse)
	assert.False(t, v.IsMatch)
	assert.Zero(t, v.Similarity)
	assert.Equal(t, TierLow, v.Confidence)
	assert.Equal(t, "I cannot see a face here.", v.Analysis)
}
