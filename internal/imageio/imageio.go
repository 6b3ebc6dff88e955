// Package imageio holds the image decoding, resampling and pixel-buffer helpers
// shared by the vision pipeline.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var errEmptyImage = errors.New("empty image data")

// Decode decodes JPEG, PNG, GIF, BMP, TIFF or WebP bytes, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errEmptyImage
	}
	return img, nil
}

// ToNRGBA returns img as a zero-origin NRGBA copy.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

func Resize(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.Linear)
}

// Fill scales and center-crops img to exactly w×h.
func Fill(img image.Image, w, h int) *image.NRGBA {
	return imaging.Fill(img, w, h, imaging.Center, imaging.Linear)
}

func Crop(img image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, rect)
}

// Gray returns the luma plane of img, row-major.
func Gray(img image.Image) ([]uint8, int, int) {
	n := ToNRGBA(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := n.Pix[y*n.Stride:]
		for x := 0; x < w; x++ {
			r, g, b := float64(row[x*4]), float64(row[x*4+1]), float64(row[x*4+2])
			out[y*w+x] = uint8(0.299*r + 0.587*g + 0.114*b + 0.5)
		}
	}
	return out, w, h
}

// RGB returns interleaved 8-bit RGB pixels of img, row-major.
func RGB(img image.Image) ([]uint8, int, int) {
	n := ToNRGBA(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	out := make([]uint8, w*h*3)
	for y := 0; y < h; y++ {
		row := n.Pix[y*n.Stride:]
		for x := 0; x < w; x++ {
			copy(out[(y*w+x)*3:], row[x*4:x*4+3])
		}
	}
	return out, w, h
}

// CHW resizes img to w×h and lays it out channel-first as (pixel - mean) / std.
func CHW(img image.Image, w, h int, mean, std [3]float32) []float32 {
	resized := Resize(img, w, h)
	data := make([]float32, 3*w*h)
	plane := w * h
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			idx := y*w + x
			for c := 0; c < 3; c++ {
				data[c*plane+idx] = (float32(row[x*4+c]) - mean[c]) / std[c]
			}
		}
	}
	return data
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
