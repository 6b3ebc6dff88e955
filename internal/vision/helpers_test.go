package vision

import (
	"errors"
	"image"
	"image/color"
)

type fakeModel struct {
	name    string
	outputs map[string][]float32
	err     error
	calls   int
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Run([]float32, []int64) (map[string][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.outputs, nil
}

var errInference = errors.New("inference failed")

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// patternImage is a deterministic textured image.
func patternImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*7 + y*13 + (x*y)%31) % 256)
			img.SetNRGBA(x, y, color.NRGBA{v, uint8(255 - int(v)), uint8((x + y) % 256), 255})
		}
	}
	return img
}
