package vision

import (
	"math"
)

const (
	descriptorSize = 128
	hogCell        = 8
	hogBlock       = 2
	hogBins        = 9
)

var (
	lbpRadii          = []int{1, 2, 3}
	gaborOrientations = []float64{0, 30, 60, 90, 120, 150}
	gaborScales       = []int{2, 4, 8}
)

// lbpHistogram computes a normalized 256-bin local binary pattern histogram
// sampling every second pixel with neighbours on a circle of the given radius.
func lbpHistogram(gray []uint8, w, h, radius int) []float32 {
	var hist [256]float64
	var total float64
	for y := radius; y < h-radius; y += 2 {
		for x := radius; x < w-radius; x += 2 {
			center := gray[y*w+x]
			pattern := 0
			for i := 0; i < 8; i++ {
				a := float64(i) * math.Pi / 4
				nx := int(math.Round(float64(x) + float64(radius)*math.Cos(a)))
				ny := int(math.Round(float64(y) + float64(radius)*math.Sin(a)))
				if nx >= 0 && nx < w && ny >= 0 && ny < h && gray[ny*w+nx] >= center {
					pattern |= 1 << i
				}
			}
			hist[pattern]++
			total++
		}
	}
	if total == 0 {
		total = 1
	}
	out := make([]float32, 256)
	for i, v := range hist {
		out[i] = float32(v / total)
	}
	return out
}

// gaborResponses correlates the image with a centred Gabor-like kernel per
// orientation and scale.
func gaborResponses(gray []uint8, w, h int) []float32 {
	out := make([]float32, 0, len(gaborOrientations)*len(gaborScales))
	cx, cy := float64(w)/2, float64(h)/2
	for _, deg := range gaborOrientations {
		theta := deg * math.Pi / 180
		cosT, sinT := math.Cos(theta), math.Sin(theta)
		for _, scale := range gaborScales {
			s := float64(scale)
			var resp float64
			for y := scale; y < h-scale; y += 4 {
				for x := scale; x < w-scale; x += 4 {
					fx, fy := float64(x), float64(y)
					k := math.Exp(-((fx-cx)*(fx-cx)+(fy-cy)*(fy-cy))/(2*s*s)) *
						math.Cos(2*math.Pi*(fx*cosT+fy*sinT)/s)
					resp += float64(gray[y*w+x]) * k
				}
			}
			out = append(out, float32(resp/float64(w*h)))
		}
	}
	return out
}

// hogFeatures builds 9-bin unsigned gradient histograms over 8px cells,
// grouped in overlapping 2×2 cell blocks that are L2-normalized.
func hogFeatures(gray []uint8, w, h int) []float32 {
	mag := make([]float64, w*h)
	bin := make([]int, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := float64(gray[y*w+x+1]) - float64(gray[y*w+x-1])
			gy := float64(gray[(y+1)*w+x]) - float64(gray[(y-1)*w+x])
			deg := math.Mod(math.Atan2(gy, gx)*180/math.Pi+180, 180)
			mag[y*w+x] = math.Sqrt(gx*gx + gy*gy)
			bin[y*w+x] = min(int(deg/20), hogBins-1)
		}
	}

	cellsX, cellsY := w/hogCell, h/hogCell
	cells := make([][hogBins]float64, cellsX*cellsY)
	for cy := 0; cy < cellsY; cy++ {
		for cx := 0; cx < cellsX; cx++ {
			hist := &cells[cy*cellsX+cx]
			for y := cy * hogCell; y < (cy+1)*hogCell; y++ {
				for x := cx * hogCell; x < (cx+1)*hogCell; x++ {
					hist[bin[y*w+x]] += mag[y*w+x]
				}
			}
		}
	}

	var out []float32
	block := make([]float64, 0, hogBlock*hogBlock*hogBins)
	for by := 0; by <= cellsY-hogBlock; by++ {
		for bx := 0; bx <= cellsX-hogBlock; bx++ {
			block = block[:0]
			for cy := by; cy < by+hogBlock; cy++ {
				for cx := bx; cx < bx+hogBlock; cx++ {
					block = append(block, cells[cy*cellsX+cx][:]...)
				}
			}
			var norm float64
			for _, v := range block {
				norm += v * v
			}
			norm = math.Sqrt(norm)
			if norm == 0 {
				norm = 1
			}
			for _, v := range block {
				out = append(out, float32(v/norm))
			}
		}
	}
	return out
}

// normalizedLandmarks expresses landmarks relative to the detection box.
func normalizedLandmarks(det Detection) []float32 {
	out := make([]float32, 0, 10)
	bw, bh := det.Width(), det.Height()
	for _, p := range det.Landmarks {
		var nx, ny float32
		if bw > 0 {
			nx = (p[0] - det.BBox[0]) / bw
		}
		if bh > 0 {
			ny = (p[1] - det.BBox[1]) / bh
		}
		out = append(out, nx, ny)
	}
	return out
}

// l2Normalize scales v to unit length in place and reports whether it could.
func l2Normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return true
}
