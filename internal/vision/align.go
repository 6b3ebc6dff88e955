package vision

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/your-org/facesearch/internal/imageio"
)

// AlignedFace is a square face crop together with the detection it came from.
type AlignedFace struct {
	Image     *image.NRGBA
	Detection Detection
}

// Aligner crops a padded face region and resamples it to a canonical square.
type Aligner struct {
	size    int
	minCrop int
}

func NewAligner(size, minCrop int) *Aligner {
	if size <= 0 {
		size = 112
	}
	if minCrop <= 0 {
		minCrop = 50
	}
	return &Aligner{size: size, minCrop: minCrop}
}

// Align always returns a size×size face. Geometry it cannot use falls back to
// a center crop and finally to the whole image.
func (a *Aligner) Align(img image.Image, det Detection) AlignedFace {
	rect, err := a.cropRect(img.Bounds(), det)
	if err != nil {
		slog.Warn("face crop rejected, using whole image", "error", err, "bbox", det.BBox)
		return AlignedFace{Image: imageio.Fill(img, a.size, a.size), Detection: det}
	}
	return AlignedFace{Image: imageio.Fill(imageio.Crop(img, rect), a.size, a.size), Detection: det}
}

func (a *Aligner) cropRect(bounds image.Rectangle, det Detection) (image.Rectangle, error) {
	W, H := bounds.Dx(), bounds.Dy()
	bw, bh := float64(det.Width()), float64(det.Height())
	pad := math.Max(10, 0.2*math.Max(bw, bh))

	x := clampInt(int(float64(det.BBox[0])-pad), 0, W)
	y := clampInt(int(float64(det.BBox[1])-pad), 0, H)
	cw := int(bw + 2*pad)
	ch := int(bh + 2*pad)
	cw = min(cw, W-x)
	ch = min(ch, H-y)

	if cw < a.minCrop || ch < a.minCrop {
		side := int(0.8 * float64(min(W, H)))
		x, y = (W-side)/2, (H-side)/2
		cw, ch = side, side
	}

	x = max(0, x)
	y = max(0, y)
	cw = max(a.minCrop, min(cw, W-x))
	ch = max(a.minCrop, min(ch, H-y))

	if x+cw > W || y+ch > H || cw <= 0 || ch <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d at (%d,%d) in %dx%d", ErrInvalidCropGeometry, cw, ch, x, y, W, H)
	}
	return image.Rect(bounds.Min.X+x, bounds.Min.Y+y, bounds.Min.X+x+cw, bounds.Min.Y+y+ch), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
