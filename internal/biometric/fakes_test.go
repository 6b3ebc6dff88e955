package biometric

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/storage"
	"github.com/your-org/facesearch/internal/vision"
)

type stubAnalyzer struct {
	faces   []vision.FaceAnalysis
	err     error
	version string
	calls   int
}

func (a *stubAnalyzer) Analyze(context.Context, image.Image) ([]vision.FaceAnalysis, error) {
	a.calls++
	return a.faces, a.err
}

func (a *stubAnalyzer) ExtractorVersion() string { return a.version }

func analysis(vec []float32, version string, quality float32, age int, gender vision.Gender) vision.FaceAnalysis {
	return vision.FaceAnalysis{
		Detection: vision.Detection{
			BBox:       [4]float32{10, 10, 90, 110},
			Confidence: 0.9,
			Landmarks:  [5][2]float32{{30, 40}, {70, 40}, {50, 60}, {35, 80}, {65, 80}},
		},
		Attributes: vision.AttributeEstimate{Age: age, Gender: gender, Confidence: 0.8},
		Embedding:  vision.Embedding{Vector: vec, Version: version},
		Quality:    quality,
		Brightness: 0.5,
		Contrast:   0.3,
	}
}

type fakeFaces struct {
	mu        sync.Mutex
	recs      map[string]*models.FaceRecord
	upsertErr error
}

func newFakeFaces(recs ...*models.FaceRecord) *fakeFaces {
	f := &fakeFaces{recs: make(map[string]*models.FaceRecord)}
	for _, r := range recs {
		f.recs[r.UserID] = r
	}
	return f
}

func (f *fakeFaces) UpsertFace(_ context.Context, rec *models.FaceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *rec
	if old, ok := f.recs[rec.UserID]; ok {
		cp.CreatedAt = old.CreatedAt
	} else {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	f.recs[rec.UserID] = &cp
	rec.CreatedAt, rec.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (f *fakeFaces) GetFace(_ context.Context, userID string) (*models.FaceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[userID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeFaces) DeleteFace(_ context.Context, userID string) (*models.FaceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(f.recs, userID)
	return r, nil
}

func (f *fakeFaces) NearestFaces(_ context.Context, _ []float32, version string, minQuality float32, limit int) ([]models.FaceCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FaceCandidate
	for _, r := range f.recs {
		if r.ExtractorVersion != version || r.QualityScore < minQuality {
			continue
		}
		out = append(out, models.FaceCandidate{
			UserID:       r.UserID,
			Embedding:    r.Embedding,
			QualityScore: r.QualityScore,
			StateMoment:  r.StateMoment,
			UserAge:      r.UserAge,
			ImageURL:     r.ReferenceImageURL,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeFaces) ListStaleFaces(_ context.Context, version string) ([]models.FaceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FaceRecord
	for _, r := range f.recs {
		if r.ExtractorVersion != version {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeFaces) ListAttributes(context.Context) ([]models.FaceAttributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FaceAttributes
	for _, r := range f.recs {
		out = append(out, models.FaceAttributes{UserID: r.UserID, StateMoment: r.StateMoment, UserAge: r.UserAge})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type fakeDirectory struct {
	users   map[string]models.User
	avatars map[string]string
	getErr  error
}

func newFakeDirectory(users ...models.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]models.User), avatars: make(map[string]string)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUser(_ context.Context, id string) (*models.User, error) {
	if d.getErr != nil {
		return nil, d.getErr
	}
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (d *fakeDirectory) GetUsers(_ context.Context, ids []string, role models.Role) (map[string]models.User, error) {
	out := make(map[string]models.User)
	for _, id := range ids {
		if u, ok := d.users[id]; ok && (role == "" || u.Role == role) {
			out[id] = u
		}
	}
	return out, nil
}

func (d *fakeDirectory) UpdateAvatar(_ context.Context, id, url string) error {
	if _, ok := d.users[id]; !ok {
		return storage.ErrNotFound
	}
	d.avatars[id] = url
	return nil
}

type fakePublisher struct {
	events []models.FaceEvent
	tasks  []models.ReembedTask
}

func (p *fakePublisher) PublishEvent(_ context.Context, ev models.FaceEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) PublishReembed(_ context.Context, task models.ReembedTask) error {
	p.tasks = append(p.tasks, task)
	return nil
}

type memObjects struct {
	base    string
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{base: "http://minio:9000/faces", objects: make(map[string][]byte)}
}

func (m *memObjects) PutObject(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	d, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return d, nil
}

func (m *memObjects) DeleteObject(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return m.URL(key) + "?signed=1", nil
}

func (m *memObjects) URL(key string) string { return m.base + "/" + key }

func (m *memObjects) KeyFromURL(rawURL string) (string, bool) {
	key, ok := strings.CutPrefix(rawURL, m.base+"/")
	return key, ok && key != ""
}

func (m *memObjects) Ping(context.Context) error { return nil }

type fakeFetcher struct {
	data    map[string][]byte
	calls   []string
	evicted []string
}

func (f *fakeFetcher) Evict(_ context.Context, url string) error {
	f.evicted = append(f.evicted, url)
	delete(f.data, url)
	return nil
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	d, ok := f.data[url]
	if !ok {
		return nil, storage.ErrDownloadFailure
	}
	return d, nil
}

func patternPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*7 + y*13 + (x*y)%31) % 256)
			img.SetNRGBA(x, y, color.NRGBA{v, uint8(255 - int(v)), uint8((x + y) % 256), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
