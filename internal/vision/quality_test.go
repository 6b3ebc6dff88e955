package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityScore(t *testing.T) {
	var q QualityScorer

	assert.Equal(t, float32(0.5), q.Score(nil))
	assert.Equal(t, float32(0.5), q.Score(image.NewNRGBA(image.Rect(0, 0, 0, 0))))

	assert.InDelta(t, 0, q.Score(solidImage(32, 32, color.NRGBA{0, 0, 0, 255})), 1e-6)
	assert.InDelta(t, 0.3, q.Score(solidImage(32, 32, color.NRGBA{255, 255, 255, 255})), 1e-6)

	stripes := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := uint8(0)
			if y%2 == 0 {
				v = 255
			}
			stripes.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	score := q.Score(stripes)
	assert.Greater(t, score, float32(0.3))
	assert.LessOrEqual(t, score, float32(1))
}

func TestQualityStats(t *testing.T) {
	var q QualityScorer
	b, c := q.Stats(solidImage(8, 8, color.NRGBA{255, 255, 255, 255}))
	assert.InDelta(t, 1, b, 1e-6)
	assert.InDelta(t, 0, c, 1e-6)

	b, c = q.Stats(nil)
	assert.Zero(t, b)
	assert.Zero(t, c)
}
