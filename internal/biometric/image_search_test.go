package biometric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/verify"
	"github.com/your-org/facesearch/internal/vision"
)

func imageSearchFixture(t *testing.T) *fixture {
	f := newFixture(t, nil, "off")
	f.directory.users["u3"] = models.User{ID: "u3", Role: models.RoleStudent}
	f.directory.users["u4"] = models.User{ID: "u4", Role: models.RoleStudent}
	f.directory.users["t2"] = models.User{ID: "t2", Role: models.RoleTeacher}

	add := func(id string, vec []float32, q float32, state string) {
		f.faces.recs[id] = &models.FaceRecord{UserID: id, Embedding: vec, ExtractorVersion: "v2", QualityScore: q, StateMoment: state}
	}
	add("u1", []float32{1, 0}, 0.9, "học sinh nữ, da vàng")
	add("u2", []float32{0.8, 0.6}, 1, "học sinh nam, da vàng")
	add("u3", []float32{0, 1}, 1, "học sinh nữ")
	add("u4", []float32{1, 0}, 0.3, "học sinh nữ")
	add("t2", []float32{0.6, 0.8}, 1, "sinh viên nữ, da vàng")
	f.faces.recs["old"] = &models.FaceRecord{UserID: "old", Embedding: []float32{1, 0}, ExtractorVersion: "v1", QualityScore: 1}
	f.directory.users["old"] = models.User{ID: "old", Role: models.RoleStudent}

	f.analyzer.faces = []vision.FaceAnalysis{analysis([]float32{1, 0}, "v2", 1, 16, vision.GenderFemale)}
	return f
}

func matchIDs(matches []ImageMatch) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.User.ID
	}
	return ids
}

func TestSearchByImage(t *testing.T) {
	probe := patternPNG(t, 32, 32)

	tests := []struct {
		name string
		role models.Role
		opts ImageSearchOptions
		want []string
	}{
		{name: "role filter and threshold", role: models.RoleStudent, want: []string{"u1", "u2"}},
		{name: "any role", want: []string{"u1", "u2", "t2"}},
		{name: "limit", role: models.RoleStudent, opts: ImageSearchOptions{Limit: 1}, want: []string{"u1"}},
		{name: "gender", opts: ImageSearchOptions{Gender: vision.GenderFemale}, want: []string{"u1", "t2"}},
		{name: "state phrase", opts: ImageSearchOptions{StateContains: "da vàng"}, want: []string{"u1", "u2", "t2"}},
		{name: "age range", opts: ImageSearchOptions{AgeMin: 18, AgeMax: 25}, want: []string{"t2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := imageSearchFixture(t)
			matches, err := f.svc.SearchByImage(context.Background(), probe, tt.role, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, matchIDs(matches))
		})
	}
}

func TestSearchByImageScores(t *testing.T) {
	f := imageSearchFixture(t)
	matches, err := f.svc.SearchByImage(context.Background(), patternPNG(t, 32, 32), models.RoleStudent, ImageSearchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	top := matches[0]
	assert.InDelta(t, 1.0, top.Similarity, 1e-6)
	assert.Equal(t, float32(1), top.SearchQuality)
	assert.Equal(t, float32(0.9), top.StoredQuality)
	assert.Equal(t, verify.TierHigh, top.Confidence)
	assert.Equal(t, "v2", top.ExtractorVersion)
	assert.Equal(t, "Very high facial similarity, High image quality, high confidence, extractor v2", top.MatchReason)

	assert.InDelta(t, 0.8, matches[1].Similarity, 1e-6)
}

func TestSearchByImageNoFace(t *testing.T) {
	f := imageSearchFixture(t)
	f.analyzer.faces = nil
	f.analyzer.err = vision.ErrNoFaceDetected

	_, err := f.svc.SearchByImage(context.Background(), patternPNG(t, 32, 32), "", ImageSearchOptions{})
	assert.ErrorIs(t, err, vision.ErrNoFaceDetected)
}

func TestImageSearchOptionsMatches(t *testing.T) {
	tests := []struct {
		opts  ImageSearchOptions
		state string
		want  bool
	}{
		{ImageSearchOptions{}, "anything", true},
		{ImageSearchOptions{Gender: vision.GenderMale}, "học sinh nữ", false},
		{ImageSearchOptions{AgeMin: 6, AgeMax: 11}, "học sinh tiểu học nam", true},
		{ImageSearchOptions{AgeMin: 15, AgeMax: 18}, "người trẻ nam", false},
		{ImageSearchOptions{AgeMin: 16, AgeMax: 17}, "trung học phổ thông", true},
		{ImageSearchOptions{AgeMin: 20}, "sinh viên nam", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.opts.matches(tt.state), "%+v %q", tt.opts, tt.state)
	}
}
