package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facesearch/internal/config"
	"github.com/your-org/facesearch/internal/models"
)

type fakeSource struct {
	rows  []models.FaceAttributes
	err   error
	calls int
}

func (f *fakeSource) ListAttributes(context.Context) ([]models.FaceAttributes, error) {
	f.calls++
	return f.rows, f.err
}

type fakeDirectory struct {
	users map[string]models.User
}

func (f *fakeDirectory) GetUsers(_ context.Context, ids []string, role models.Role) (map[string]models.User, error) {
	out := make(map[string]models.User)
	for _, id := range ids {
		u, ok := f.users[id]
		if !ok || (role != "" && u.Role != role) {
			continue
		}
		out[id] = u
	}
	return out, nil
}

func testCorpus() (*fakeSource, *fakeDirectory) {
	src := &fakeSource{rows: []models.FaceAttributes{
		{UserID: "u2", StateMoment: "học sinh nam, da vàng", UserAge: "16 tuổi, học sinh trung học phổ thông"},
		{UserID: "u3", StateMoment: "sinh viên nữ, da vàng", UserAge: "20 tuổi, sinh viên"},
		{UserID: "u1", StateMoment: "học sinh nữ, da ngăm", UserAge: "15 tuổi, học sinh trung học cơ sở"},
		{UserID: "u4", StateMoment: "người trẻ nữ, da ngăm", UserAge: "30 tuổi, người trẻ"},
		{UserID: "ghost", StateMoment: "học sinh nữ, da ngăm", UserAge: "15 tuổi"},
	}}
	dir := &fakeDirectory{users: map[string]models.User{
		"u1": {ID: "u1", Name: "An", Role: models.RoleStudent},
		"u2": {ID: "u2", Name: "Binh", Role: models.RoleStudent},
		"u3": {ID: "u3", Name: "Chi", Role: models.RoleStudent},
		"u4": {ID: "u4", Name: "Dung", Role: models.RoleTeacher},
	}}
	return src, dir
}

func testSearchConfig() config.SearchConfig {
	v := true
	return config.SearchConfig{DefaultLimit: 10, MinScore: 1, AgePriority: &v}
}

func userIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.User.ID
	}
	return ids
}

func TestSearchDescription(t *testing.T) {
	src, dir := testCorpus()
	e := NewEngine(testSearchConfig(), src, dir)

	results, err := e.Search(context.Background(), "nữ, da ngăm", models.RoleStudent, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u3"}, userIDs(results))

	first := results[0]
	assert.Equal(t, 40, first.Score)
	assert.Equal(t, "high", first.Confidence)
	assert.Equal(t, "Match: học sinh nữ, da ngăm • Semantic bonus", first.MatchReason)
	assert.Nil(t, first.AgeDifference)
	require.NotNil(t, first.ExactAge)
	assert.Equal(t, 15, *first.ExactAge)

	assert.Equal(t, 25, results[1].Score)
	assert.Equal(t, "medium", results[1].Confidence)
}

func TestSearchAgeOnlyOrdersByDifference(t *testing.T) {
	src, dir := testCorpus()
	e := NewEngine(testSearchConfig(), src, dir)

	results, err := e.Search(context.Background(), "15 tuổi", "", Options{Limit: 3})
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2", "u3"}, userIDs(results))

	require.NotNil(t, results[0].AgeDifference)
	assert.Equal(t, 0, *results[0].AgeDifference)
	assert.Equal(t, 60, results[0].Score)
	assert.Contains(t, results[0].MatchReason, "Perfect age")
	assert.Equal(t, 1, *results[1].AgeDifference)
	assert.Contains(t, results[1].MatchReason, "Close age (±1y)")
}

func TestSearchRoleFilterDropsOtherRoles(t *testing.T) {
	src, dir := testCorpus()
	e := NewEngine(testSearchConfig(), src, dir)

	results, err := e.Search(context.Background(), "da ngăm", models.RoleTeacher, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u4"}, userIDs(results))
}

func TestSearchNoTermsSkipsStore(t *testing.T) {
	src, dir := testCorpus()
	e := NewEngine(testSearchConfig(), src, dir)

	results, err := e.Search(context.Background(), "rất", "", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, src.calls)
}

func TestSearchSourceError(t *testing.T) {
	src, dir := testCorpus()
	src.err = errors.New("db down")
	e := NewEngine(testSearchConfig(), src, dir)

	_, err := e.Search(context.Background(), "nữ", "", Options{})
	assert.ErrorIs(t, err, src.err)
}

func TestRankAgePriority(t *testing.T) {
	rows := []models.FaceAttributes{
		{UserID: "far", StateMoment: "nữ", UserAge: "30 tuổi"},
		{UserID: "near", StateMoment: "nữ", UserAge: "25 tuổi"},
	}
	e := NewEngine(testSearchConfig(), &fakeSource{}, &fakeDirectory{})
	q := e.Parse("nữ 20 tuổi")

	on := true
	hits := e.rank(q, rows, Options{AgePriority: &on})
	require.Len(t, hits, 2)
	assert.Equal(t, hits[0].scored.Total, hits[1].scored.Total)
	assert.Equal(t, "near", hits[0].attrs.UserID)

	off := false
	hits = e.rank(q, rows, Options{AgePriority: &off})
	assert.Equal(t, "far", hits[0].attrs.UserID)

	// without age priority equal scores fall back to the widest age gap,
	// independent of input order
	reversed := []models.FaceAttributes{rows[1], rows[0]}
	hits = e.rank(q, reversed, Options{AgePriority: &off})
	require.Len(t, hits, 2)
	assert.Equal(t, []string{"far", "near"}, []string{hits[0].attrs.UserID, hits[1].attrs.UserID})

	// an age-only query is ordered by closeness whatever the flag says
	ageOnly := e.Parse("20 tuổi")
	require.True(t, ageOnly.AgeOnly)
	nearby := []models.FaceAttributes{
		{UserID: "plus2", UserAge: "22 tuổi"},
		{UserID: "plus1", UserAge: "21 tuổi"},
	}
	hits = e.rank(ageOnly, nearby, Options{AgePriority: &off})
	require.Len(t, hits, 2)
	assert.Equal(t, "plus1", hits[0].attrs.UserID)
}

func TestEngineCustomSynonyms(t *testing.T) {
	cfg := testSearchConfig()
	cfg.Synonyms = map[string][]string{"tóc dài": {"tóc dài"}}

	merged := NewEngine(cfg, &fakeSource{}, &fakeDirectory{})
	q := merged.Parse("tóc dài, nữ")
	assert.Equal(t, []string{"tóc dài", "nữ"}, q.Terms)

	cfg.ReplaceDefault = true
	replaced := NewEngine(cfg, &fakeSource{}, &fakeDirectory{})
	q = replaced.Parse("tóc dài, nữ")
	assert.Equal(t, []string{"tóc dài", "nữ"}, q.Terms)
	assert.Equal(t, []string{"nữ"}, q.RawTerms)
}
