package vision

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretAttributeOutput(t *testing.T) {
	tests := []struct {
		name     string
		out      []float32
		wantAge  int
		wantG    Gender
		wantConf float64
	}{
		{"male with mid age", []float32{0, 0, 0}, 25, GenderMale, 0.95},
		{"female", []float32{0.2, 0, 1.0}, 35, GenderFemale, 0.95},
		{"age out of range defaults", []float32{5, 0.5, 0.5}, 20, GenderMale, 0.95},
		{"boundary diff is female", []float32{-1, 0, 0.6}, 15, GenderFemale, 0.52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := InterpretAttributeOutput(tt.out)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAge, est.Age)
			assert.Equal(t, tt.wantG, est.Gender)
			assert.InDelta(t, tt.wantConf, est.Confidence, 1e-6)
		})
	}

	_, err := InterpretAttributeOutput([]float32{1, 2})
	assert.Error(t, err)
}

func TestArbitrate(t *testing.T) {
	est := func(age int, g Gender, c float64) AttributeEstimate {
		return AttributeEstimate{Age: age, Gender: g, Confidence: c}
	}
	ptr := func(e AttributeEstimate) *AttributeEstimate { return &e }

	tests := []struct {
		name string
		h    AttributeEstimate
		m    *AttributeEstimate
		want AttributeEstimate
	}{
		{"confident heuristic wins", est(30, GenderMale, 0.8), ptr(est(20, GenderFemale, 0.95)), est(30, GenderMale, 0.8)},
		{"no model floors confidence", est(30, GenderFemale, 0.3), nil, est(30, GenderFemale, 0.4)},
		{"agreement boosts", est(20, GenderMale, 0.5), ptr(est(30, GenderMale, 0.5)), est(25, GenderMale, 0.7)},
		{"model clearly more confident", est(20, GenderMale, 0.4), ptr(est(30, GenderFemale, 0.8)), est(25, GenderFemale, 0.7)},
		{"heuristic clearly more confident", est(20, GenderMale, 0.65), ptr(est(31, GenderFemale, 0.5)), est(26, GenderMale, 0.55)},
		{"close call trusts a confident model", est(20, GenderMale, 0.6), ptr(est(30, GenderFemale, 0.65)), est(25, GenderFemale, 0.6)},
		{"close call otherwise trusts heuristic", est(20, GenderMale, 0.5), ptr(est(30, GenderFemale, 0.55)), est(25, GenderMale, 0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Arbitrate(tt.h, tt.m)
			assert.Equal(t, tt.want.Age, got.Age)
			assert.Equal(t, tt.want.Gender, got.Gender)
			assert.InDelta(t, tt.want.Confidence, got.Confidence, 1e-9)
		})
	}
}

func TestEstimateHeuristicBounds(t *testing.T) {
	for _, img := range []AlignedFace{
		{Image: solidImage(112, 112, color.NRGBA{200, 170, 150, 255}), Detection: Detection{BBox: [4]float32{0, 0, 90, 100}}},
		{Image: patternImage(112, 112)},
	} {
		est := EstimateHeuristic(img)
		assert.GreaterOrEqual(t, est.Age, 15)
		assert.LessOrEqual(t, est.Age, 60)
		assert.Contains(t, []Gender{GenderMale, GenderFemale}, est.Gender)
		assert.GreaterOrEqual(t, est.Confidence, 0.4)
		assert.LessOrEqual(t, est.Confidence, 0.9)
	}
}

func TestAttributeEstimator(t *testing.T) {
	face := AlignedFace{Image: patternImage(112, 112), Detection: Detection{BBox: [4]float32{0, 0, 100, 100}}}
	heuristic := EstimateHeuristic(face)

	t.Run("model failure uses heuristic", func(t *testing.T) {
		got := NewAttributeEstimator(&fakeModel{name: "ga", err: errInference}).Estimate(context.Background(), face)
		assert.Equal(t, Arbitrate(heuristic, nil), got)
	})

	t.Run("model result is arbitrated", func(t *testing.T) {
		m := &fakeModel{name: "ga", outputs: map[string][]float32{"fc1": {0, 0, 0}}}
		got := NewAttributeEstimator(m).Estimate(context.Background(), face)
		modelEst, err := InterpretAttributeOutput([]float32{0, 0, 0})
		require.NoError(t, err)
		assert.Equal(t, Arbitrate(heuristic, &modelEst), got)
	})

	t.Run("no model", func(t *testing.T) {
		got := NewAttributeEstimator(nil).Estimate(context.Background(), face)
		assert.Equal(t, Arbitrate(heuristic, nil), got)
	})
}
