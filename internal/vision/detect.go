package vision

import (
	"context"
	"image"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/your-org/facesearch/internal/fallback"
	"github.com/your-org/facesearch/internal/imageio"
	"github.com/your-org/facesearch/internal/observability"
)

// Detection represents a detected face.
type Detection struct {
	BBox       [4]float32    // x1, y1, x2, y2 (pixel coordinates)
	Confidence float32
	Landmarks  [5][2]float32 // eyes, nose, mouth corners
}

func (d Detection) Width() float32  { return d.BBox[2] - d.BBox[0] }
func (d Detection) Height() float32 { return d.BBox[3] - d.BBox[1] }

const (
	nmsIoU             = 0.4
	maxPermutationDets = 50
	minSideFraction    = 0.05
	minPermutationSide = 10
)

// Detector finds faces with an SCRFD model and falls back to image heuristics
// when the model is missing, errors, or finds nothing plausible.
type Detector struct {
	model     Model
	threshold float32
	inputSize int
}

// NewDetector builds a detector. model may be nil.
func NewDetector(model Model, threshold float32, inputSize int) *Detector {
	if inputSize <= 0 {
		inputSize = 640
	}
	return &Detector{model: model, threshold: threshold, inputSize: inputSize}
}

// Detect returns the faces found in img. An empty slice means no face; failure
// of the model path is logged and never returned.
func (d *Detector) Detect(ctx context.Context, img image.Image) []Detection {
	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	}()

	var strategies []fallback.Strategy[[]Detection]
	if d.model != nil {
		strategies = append(strategies, fallback.Strategy[[]Detection]{
			Name: "model",
			Run: func(context.Context) ([]Detection, error) {
				dets, err := d.detectModel(img)
				if err != nil {
					slog.Warn("model detection failed, using heuristics", "error", err)
				}
				return dets, err
			},
		})
	}
	strategies = append(strategies, fallback.Strategy[[]Detection]{
		Name: "heuristic",
		Run: func(context.Context) ([]Detection, error) {
			dets := HeuristicDetect(img)
			if len(dets) == 0 {
				return nil, ErrNoFaceDetected
			}
			return dets, nil
		},
	})

	res, err := fallback.FirstSuccess(ctx, "detector", strategies...)
	if err != nil {
		// the heuristic does no I/O, so cancellation does not skip it
		if ctx.Err() != nil {
			return HeuristicDetect(img)
		}
		return nil
	}
	return res.Value
}

func (d *Detector) detectModel(img image.Image) ([]Detection, error) {
	b := img.Bounds()
	origW, origH := b.Dx(), b.Dy()

	input := imageio.CHW(img, d.inputSize, d.inputSize, [3]float32{0, 0, 0}, [3]float32{255, 255, 255})
	outputs, err := d.model.Run(input, []int64{1, 3, int64(d.inputSize), int64(d.inputSize)})
	if err != nil {
		return nil, err
	}

	dets := decodeOutputs(outputs, origW, origH, d.inputSize, d.threshold)
	if len(dets) == 0 {
		dets = decodePermutations(outputs, origW, origH, d.inputSize, d.threshold)
	}
	dets = nms(dets, nmsIoU)
	dets = plausible(dets, origW, origH)
	if len(dets) == 0 {
		return nil, ErrNoFaceDetected
	}
	return dets, nil
}

// decodeOutputs groups the sorted outputs as consecutive
// [scores, boxes, landmarks] triples, one triple per stride.
func decodeOutputs(outputs map[string][]float32, origW, origH, inputSize int, threshold float32) []Detection {
	names := sortedOutputs(outputs)
	minSide := float32(math.Min(float64(origW), float64(origH))) * minSideFraction

	var dets []Detection
	for i := 0; i+2 < len(names); i += 3 {
		scores, boxes, lms := outputs[names[i]], outputs[names[i+1]], outputs[names[i+2]]
		n := min(len(scores), len(boxes)/4, len(lms)/10)
		for k := 0; k < n; k++ {
			// negated so NaN scores are skipped
			if !(scores[k] > threshold) {
				continue
			}
			box := scaleBox(boxes[k*4:k*4+4], origW, origH, inputSize)
			if !insideImage(box, origW, origH) {
				continue
			}
			if box[2]-box[0] < minSide || box[3]-box[1] < minSide {
				continue
			}
			dets = append(dets, Detection{
				BBox:       box,
				Confidence: clampF(scores[k], 0, 1),
				Landmarks:  scaleLandmarks(lms[k*10:k*10+10], origW, origH, inputSize, true),
			})
		}
	}
	return dets
}

// decodePermutations tries every choice of three outputs in every role order
// and returns the detections of the first combination that yields any.
func decodePermutations(outputs map[string][]float32, origW, origH, inputSize int, threshold float32) []Detection {
	names := sortedOutputs(outputs)
	roles := [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			for k := j + 1; k < len(names); k++ {
				picked := [3]string{names[i], names[j], names[k]}
				for _, r := range roles {
					dets := tryCombination(outputs[picked[r[0]]], outputs[picked[r[1]]], outputs[picked[r[2]]],
						origW, origH, inputSize, threshold)
					if len(dets) > 0 {
						slog.Debug("detector outputs resolved by permutation",
							"scores", picked[r[0]], "boxes", picked[r[1]], "landmarks", picked[r[2]])
						return dets
					}
				}
			}
		}
	}
	return nil
}

func tryCombination(scores, boxes, lms []float32, origW, origH, inputSize int, threshold float32) []Detection {
	n := min(len(scores), len(boxes)/4, len(lms)/10, maxPermutationDets)
	sx := float32(origW) / float32(inputSize)
	sy := float32(origH) / float32(inputSize)

	var dets []Detection
	for k := 0; k < n; k++ {
		s := scores[k]
		if !(s > threshold && s < 1.0) {
			continue
		}
		box := [4]float32{boxes[k*4] * sx, boxes[k*4+1] * sy, boxes[k*4+2] * sx, boxes[k*4+3] * sy}
		if !insideImage(box, origW, origH) {
			continue
		}
		if box[2]-box[0] <= minPermutationSide || box[3]-box[1] <= minPermutationSide {
			continue
		}
		dets = append(dets, Detection{
			BBox:       box,
			Confidence: s,
			Landmarks:  scaleLandmarks(lms[k*10:k*10+10], origW, origH, inputSize, false),
		})
	}
	return dets
}

// scaleBox maps a box to original image pixels. Values all within [0,1] are
// treated as normalized coordinates, anything else as input-resolution pixels.
func scaleBox(raw []float32, origW, origH, inputSize int) [4]float32 {
	normalized := raw[0] <= 1 && raw[1] <= 1 && raw[2] <= 1 && raw[3] <= 1
	sx, sy := float32(origW)/float32(inputSize), float32(origH)/float32(inputSize)
	if normalized {
		sx, sy = float32(origW), float32(origH)
	}
	return [4]float32{raw[0] * sx, raw[1] * sy, raw[2] * sx, raw[3] * sy}
}

func scaleLandmarks(raw []float32, origW, origH, inputSize int, detect bool) [5][2]float32 {
	var lm [5][2]float32
	for p := 0; p < 5; p++ {
		x, y := raw[p*2], raw[p*2+1]
		sx, sy := float32(origW)/float32(inputSize), float32(origH)/float32(inputSize)
		if detect && x <= 1 && y <= 1 {
			sx, sy = float32(origW), float32(origH)
		}
		lm[p] = [2]float32{x * sx, y * sy}
	}
	return lm
}

func insideImage(box [4]float32, w, h int) bool {
	return box[0] >= 0 && box[1] >= 0 &&
		box[2] > box[0] && box[3] > box[1] &&
		box[2] <= float32(w) && box[3] <= float32(h)
}

// plausible drops boxes covering less than 0.1% or more than 80% of the image
// and boxes whose aspect ratio falls outside [0.5, 2].
func plausible(dets []Detection, w, h int) []Detection {
	imgArea := float32(w) * float32(h)
	var out []Detection
	for _, d := range dets {
		bw, bh := d.Width(), d.Height()
		if bh <= 0 {
			continue
		}
		frac := bw * bh / imgArea
		ratio := bw / bh
		if frac < 0.001 || frac > 0.8 || ratio < 0.5 || ratio > 2.0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if keep[j] && iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	intersection := max(0, x2-x1) * max(0, y2-y1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

// clampF bounds v to [lo, hi].
func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
