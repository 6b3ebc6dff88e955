package vision

import (
	"image"
	"math"

	"github.com/your-org/facesearch/internal/imageio"
)

const defaultQuality = 0.5

// QualityScorer rates how usable a face crop is for matching.
type QualityScorer struct{}

// Score combines brightness, contrast and vertical-edge sharpness into [0,1].
func (QualityScorer) Score(img image.Image) float32 {
	gray, w, h, ok := grayOf(img)
	if !ok {
		return defaultQuality
	}
	brightness, contrast := meanStdev(gray)
	q := 0.3*brightness + 0.4*contrast + 0.3*sobelSharpness(gray, w, h)
	return float32(clamp(q, 0, 1))
}

// Stats returns normalized brightness and contrast of img.
func (QualityScorer) Stats(img image.Image) (brightness, contrast float32) {
	gray, _, _, ok := grayOf(img)
	if !ok {
		return 0, 0
	}
	b, c := meanStdev(gray)
	return float32(b), float32(c)
}

func grayOf(img image.Image) ([]uint8, int, int, bool) {
	if img == nil {
		return nil, 0, 0, false
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, 0, 0, false
	}
	gray, w, h := imageio.Gray(img)
	return gray, w, h, true
}

func meanStdev(gray []uint8) (float64, float64) {
	var sum, sumSq float64
	for _, p := range gray {
		v := float64(p)
		sum += v
		sumSq += v * v
	}
	n := float64(len(gray))
	mean := sum / n
	variance := math.Max(0, sumSq/n-mean*mean)
	return mean / 255, math.Sqrt(variance) / 255
}

func sobelSharpness(gray []uint8, w, h int) float64 {
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			s := -int(gray[i-w-1]) - 2*int(gray[i-w]) - int(gray[i-w+1]) +
				int(gray[i+w-1]) + 2*int(gray[i+w]) + int(gray[i+w+1])
			if s < 0 {
				s = -s
			}
			sum += float64(s)
		}
	}
	return math.Min(1, sum/(float64(w*h)*255))
}
