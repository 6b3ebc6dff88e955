package vision

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/your-org/facesearch/internal/imageio"
	"github.com/your-org/facesearch/internal/observability"
)

type Gender string

const (
	GenderMale   Gender = "nam"
	GenderFemale Gender = "nữ"
)

// AttributeEstimate is a predicted age and gender with a confidence in [0,1].
type AttributeEstimate struct {
	Age        int
	Gender     Gender
	Confidence float64
}

const (
	attrInputSize       = 96
	heuristicTrustLevel = 0.7
)

// AttributeEstimator predicts age and gender. The image heuristic runs first;
// the genderage model is consulted only when the heuristic is unsure.
type AttributeEstimator struct {
	model Model
}

// NewAttributeEstimator builds an estimator. model may be nil.
func NewAttributeEstimator(model Model) *AttributeEstimator {
	return &AttributeEstimator{model: model}
}

func (e *AttributeEstimator) Estimate(ctx context.Context, face AlignedFace) AttributeEstimate {
	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("attributes").Observe(time.Since(start).Seconds())
	}()

	heuristic := EstimateHeuristic(face)
	if heuristic.Confidence >= heuristicTrustLevel || e.model == nil || ctx.Err() != nil {
		return Arbitrate(heuristic, nil)
	}

	modelEst, err := e.runModel(face)
	if err != nil {
		slog.Warn("attribute model failed, using heuristic", "error", err)
		return Arbitrate(heuristic, nil)
	}
	return Arbitrate(heuristic, &modelEst)
}

func (e *AttributeEstimator) runModel(face AlignedFace) (AttributeEstimate, error) {
	input := imageio.CHW(face.Image, attrInputSize, attrInputSize,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
	outputs, err := e.model.Run(input, []int64{1, 3, attrInputSize, attrInputSize})
	if err != nil {
		return AttributeEstimate{}, err
	}
	names := sortedOutputs(outputs)
	if len(names) == 0 {
		return AttributeEstimate{}, fmt.Errorf("attribute model returned no outputs")
	}
	return InterpretAttributeOutput(outputs[names[0]])
}

// InterpretAttributeOutput maps the raw [age, g1, g2] genderage output to an estimate.
func InterpretAttributeOutput(out []float32) (AttributeEstimate, error) {
	if len(out) < 3 {
		return AttributeEstimate{}, fmt.Errorf("unexpected attribute output size: %d", len(out))
	}
	v1, v2, v3 := float64(out[0]), float64(out[1]), float64(out[2])

	age := 20
	if math.Abs(v1) < 2 {
		age = int(math.Round(clamp(v1*50+25, 15, 60)))
	}

	diff := v3 - v2
	var est AttributeEstimate
	if diff < 0.6 {
		est.Gender = GenderMale
		est.Confidence = math.Min(0.9, (0.6-diff)/0.6+0.4)
	} else {
		est.Gender = GenderFemale
		est.Confidence = math.Min(0.9, (diff-0.6)/0.4+0.4)
	}
	est.Confidence = math.Max(0.2, math.Min(0.95, est.Confidence+0.12))
	est.Age = age
	return est, nil
}

// Arbitrate combines the heuristic estimate with an optional model estimate.
func Arbitrate(h AttributeEstimate, m *AttributeEstimate) AttributeEstimate {
	if h.Confidence >= heuristicTrustLevel {
		return h
	}
	if m == nil {
		h.Confidence = math.Max(0.4, h.Confidence)
		return h
	}

	if h.Gender == m.Gender {
		age := (float64(h.Age)*h.Confidence + float64(m.Age)*m.Confidence) / (h.Confidence + m.Confidence)
		return AttributeEstimate{
			Age:        int(math.Round(age)),
			Gender:     h.Gender,
			Confidence: math.Min(0.95, (h.Confidence+m.Confidence)/2+0.2),
		}
	}

	age := int(math.Round(float64(h.Age+m.Age) / 2))
	switch {
	case m.Confidence > h.Confidence+0.1:
		return AttributeEstimate{Age: age, Gender: m.Gender, Confidence: math.Max(0.4, m.Confidence-0.1)}
	case h.Confidence > m.Confidence+0.1:
		return AttributeEstimate{Age: age, Gender: h.Gender, Confidence: math.Max(0.4, h.Confidence-0.1)}
	case m.Confidence >= 0.6:
		return AttributeEstimate{Age: age, Gender: m.Gender, Confidence: math.Max(0.5, m.Confidence-0.05)}
	default:
		return AttributeEstimate{Age: age, Gender: h.Gender, Confidence: math.Max(0.4, h.Confidence)}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
