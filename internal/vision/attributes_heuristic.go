package vision

import (
	"math"

	"github.com/your-org/facesearch/internal/imageio"
)

const heuristicViewSize = 128

// EstimateHeuristic predicts gender and age from texture and edge statistics
// of a 128×128 view of the face.
func EstimateHeuristic(face AlignedFace) AttributeEstimate {
	view := imageio.Resize(face.Image, heuristicViewSize, heuristicViewSize)
	rgb, w, h := imageio.RGB(view)
	gray, _, _ := imageio.Gray(view)

	aspect := 1.0
	if dh := face.Detection.Height(); dh > 0 {
		aspect = float64(face.Detection.Width() / dh)
	}

	gender, gConf := genderFromFeatures(rgb, gray, w, h, aspect)
	age := ageFromFeatures(rgb, gray, w, h)

	return AttributeEstimate{
		Age:        age,
		Gender:     gender,
		Confidence: math.Max(0.4, (gConf+0.6)/2),
	}
}

func genderFromFeatures(rgb, gray []uint8, w, h int, aspect float64) (Gender, float64) {
	var male, female float64

	switch jaw := jawSharpness(gray, w, h); {
	case jaw > 0.4:
		male += 0.4
	case jaw < 0.25:
		female += 0.3
	}

	switch {
	case aspect > 0.88:
		male += 0.25
	case aspect < 0.8:
		female += 0.2
	}

	switch smooth := skinSmoothness(rgb, w, h); {
	case smooth > 0.7:
		female += 0.3
	case smooth < 0.5:
		male += 0.25
	}

	if edgeSharpness(gray, w, h) > 0.6 {
		male += 0.2
	}

	if textureVariance(gray, w, h) > 0.5 {
		male += 0.15
	} else {
		female += 0.15
	}

	gender := GenderFemale
	if male > female {
		gender = GenderMale
	}
	conf := math.Abs(male-female) / math.Max(math.Max(male, female), 0.1)
	return gender, clamp(conf, 0.4, 0.9)
}

func ageFromFeatures(rgb, gray []uint8, w, h int) int {
	var age int
	switch c := skinComplexity(rgb, w, h); {
	case c < 0.3:
		age = 18
	case c < 0.5:
		age = 25
	case c < 0.7:
		age = 35
	default:
		age = 45
	}
	if eyeAreaAging(gray, w, h) > 0.5 {
		age += 8
	}
	return int(clamp(float64(age), 15, 60))
}

// jawSharpness is the mean horizontal gradient along the row at 85% height.
func jawSharpness(gray []uint8, w, h int) float64 {
	if w <= 20 {
		return 0
	}
	y := int(float64(h) * 0.85)
	var sum float64
	for x := 10; x < w-10; x++ {
		sum += absDiff(gray[y*w+x], gray[y*w+x+1])
	}
	return math.Min(1, sum/(float64(w-20)*255))
}

// skinSmoothness compares consecutive pixels over the first 30% of the image.
func skinSmoothness(rgb []uint8, w, h int) float64 {
	samples := int(float64(w*h) * 0.3)
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		idx := i * 3
		if idx+6 >= len(rgb) {
			continue
		}
		diff := absDiff(rgb[idx], rgb[idx+3]) + absDiff(rgb[idx+1], rgb[idx+4]) + absDiff(rgb[idx+2], rgb[idx+5])
		sum += 1 - diff/(3*255)
	}
	return sum / float64(samples)
}

// skinComplexity measures vertical colour change in the central cheek region.
func skinComplexity(rgb []uint8, w, h int) float64 {
	samples := int(float64(w*h) * 0.2)
	span := int(float64(w) * 0.4)
	if samples == 0 || span == 0 {
		return 0
	}
	y0, x0 := int(float64(h)*0.3), int(float64(w)*0.3)
	var sum float64
	for i := 0; i < samples; i++ {
		y := y0 + i/span
		x := x0 + i%span
		if y+1 >= h {
			break
		}
		a := (y*w + x) * 3
		b := ((y+1)*w + x) * 3
		diff := absDiff(rgb[a], rgb[b]) + absDiff(rgb[a+1], rgb[b+1]) + absDiff(rgb[a+2], rgb[b+2])
		sum += diff / (3 * 255)
	}
	return sum / float64(samples)
}

// eyeAreaAging counts strong gradients in a band around the eye line.
func eyeAreaAging(gray []uint8, w, h int) float64 {
	eyeY := int(float64(h) * 0.4)
	var count float64
	for y := eyeY - 8; y <= eyeY+8; y++ {
		for x := int(float64(w) * 0.2); x < int(float64(w)*0.8); x++ {
			if y <= 0 || y >= h-1 || x <= 0 || x >= w-1 {
				continue
			}
			c := gray[y*w+x]
			if absDiff(c, gray[y*w+x+1]) > 15 || absDiff(c, gray[(y+1)*w+x]) > 15 {
				count++
			}
		}
	}
	return math.Min(1, count/float64(w*16))
}

func edgeSharpness(gray []uint8, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := gray[y*w+x]
			gx := absDiff(c, gray[y*w+x+1])
			gy := absDiff(c, gray[(y+1)*w+x])
			sum += math.Sqrt(gx*gx + gy*gy)
		}
	}
	return math.Min(1, sum/(float64((w-2)*(h-2))*255))
}

// textureVariance is the mean vertical difference over the central region.
func textureVariance(gray []uint8, w, h int) float64 {
	samples := int(float64(w*h) * 0.3)
	span := int(float64(w) * 0.4)
	if samples == 0 || span == 0 {
		return 0
	}
	y0, x0 := int(float64(h)*0.3), int(float64(w)*0.3)
	var sum float64
	for i := 0; i < samples; i++ {
		y := y0 + i/span
		x := x0 + i%span
		idx := y*w + x
		if idx+w >= len(gray) {
			break
		}
		sum += absDiff(gray[idx], gray[idx+w]) / 255
	}
	return sum / float64(samples)
}

func absDiff(a, b uint8) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}
