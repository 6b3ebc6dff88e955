package vision

import (
	"image"
	"log/slog"

	"github.com/your-org/facesearch/internal/imageio"
)

type heuristicCandidate struct {
	name       string
	box        [4]int
	confidence float64
}

// HeuristicDetect guesses a single face region from image layout and texture.
// It returns at most one detection and handles degenerate images.
func HeuristicDetect(img image.Image) []Detection {
	if img == nil {
		return nil
	}
	rgb, w, h := imageio.RGB(img)
	if w == 0 || h == 0 {
		return nil
	}

	candidates := []heuristicCandidate{centerWeighted(w, h), upperThird(w, h)}
	if c, ok := varianceRegion(rgb, w, h); ok {
		candidates = append(candidates, c)
	}

	var best *heuristicCandidate
	bestScore := 0.0
	for i := range candidates {
		c := &candidates[i]
		score, size := scoreCandidate(c, w, h)
		slog.Debug("heuristic face candidate", "strategy", c.name, "score", score, "box", c.box)
		if score > bestScore && size > 0.1 && size < 0.8 {
			bestScore = score
			best = c
		}
	}
	if best == nil {
		return nil
	}

	x1, y1 := float32(best.box[0]), float32(best.box[1])
	bw, bh := float32(best.box[2]-best.box[0]), float32(best.box[3]-best.box[1])
	at := func(fx, fy float32) [2]float32 { return [2]float32{x1 + bw*fx, y1 + bh*fy} }

	return []Detection{{
		BBox:       [4]float32{x1, y1, float32(best.box[2]), float32(best.box[3])},
		Confidence: float32(best.confidence),
		Landmarks: [5][2]float32{
			at(0.3, 0.4), at(0.7, 0.4), at(0.5, 0.55), at(0.4, 0.75), at(0.6, 0.75),
		},
	}}
}

func centerWeighted(w, h int) heuristicCandidate {
	fw, fh := int(float64(w)*0.6), int(float64(h)*0.7)
	x, y := (w-fw)/2, (h-fh)/3
	return heuristicCandidate{name: "center-weighted", box: [4]int{x, y, x + fw, y + fh}, confidence: 0.8}
}

func upperThird(w, h int) heuristicCandidate {
	fw, fh := int(float64(w)*0.5), int(float64(h)*0.6)
	x, y := (w-fw)/2, int(float64(h)*0.1)
	return heuristicCandidate{name: "upper-third", box: [4]int{x, y, x + fw, y + fh}, confidence: 0.7}
}

// varianceRegion picks the most textured block and pads it by one block on each side.
func varianceRegion(rgb []uint8, w, h int) (heuristicCandidate, bool) {
	block := min(64, min(w, h)/8)
	if block < 1 {
		return heuristicCandidate{}, false
	}
	step := max(1, block/2)

	c := heuristicCandidate{name: "variance-based", box: [4]int{0, 0, w, h}, confidence: 0.5}
	maxVar := 0.0
	for y := 0; y < h-block; y += step {
		for x := 0; x < w-block; x += step {
			v := regionVariance(rgb, w, h, x, y, block)
			if v <= maxVar {
				continue
			}
			maxVar = v
			c.box = [4]int{
				max(0, x-block), max(0, y-block),
				min(w, x+2*block), min(h, y+2*block),
			}
			c.confidence = min(0.9, 0.5+v/10000)
		}
	}
	return c, true
}

func regionVariance(rgb []uint8, w, h, x0, y0, size int) float64 {
	var sum, sumSq, count float64
	for y := y0; y < min(y0+size, h); y++ {
		for x := x0; x < min(x0+size, w); x++ {
			i := (y*w + x) * 3
			for c := 0; c < 3; c++ {
				p := float64(rgb[i+c])
				sum += p
				sumSq += p * p
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / count
	return sumSq/count - mean*mean
}

// scoreCandidate returns the combined layout score and the area fraction.
func scoreCandidate(c *heuristicCandidate, w, h int) (float64, float64) {
	bw := float64(c.box[2] - c.box[0])
	bh := float64(c.box[3] - c.box[1])
	fw, fh := float64(w), float64(h)

	size := bw * bh / (fw * fh)
	cx := float64(c.box[0]) + bw/2
	cy := float64(c.box[1]) + bh/2
	center := 1 - abs(cx-fw/2)/(fw/2)
	position := 0.5
	if cy < fh*2/3 {
		position = 1
	}
	return (size + center + position + c.confidence) / 4, size
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
