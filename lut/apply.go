package lut

import (
	"errors"
	"image"
)

// ErrEmptyFrame is returned when the transform cannot produce valid output
// geometry (zero-extent source). Callers treat this exactly like a dropped
// frame: skip, never surface.
var ErrEmptyFrame = errors.New("lut: empty frame extent")

// Apply runs the color transform over the full frame extent and returns a
// freshly allocated NRGBA image of the same size.
//
// Pure: identical inputs always yield identical output, and neither input
// is mutated. A nil filter (or an identity filter) is a pass-through copy,
// not an error. Alpha is preserved unchanged.
func Apply(src *image.NRGBA, f *Filter) (*image.NRGBA, error) {
	if src == nil || src.Rect.Dx() <= 0 || src.Rect.Dy() <= 0 {
		return nil, ErrEmptyFrame
	}

	dst := image.NewNRGBA(src.Rect)

	if f.IsIdentity() {
		copyPixels(dst, src)
		return dst, nil
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		drow := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			r := float32(srow[x]) / 255
			g := float32(srow[x+1]) / 255
			b := float32(srow[x+2]) / 255

			r, g, b = f.mapRGB(r, g, b)

			drow[x] = uint8(r*255 + 0.5)
			drow[x+1] = uint8(g*255 + 0.5)
			drow[x+2] = uint8(b*255 + 0.5)
			drow[x+3] = srow[x+3]
		}
	}
	return dst, nil
}

// copyPixels copies src into dst row by row, tolerating differing strides.
func copyPixels(dst, src *image.NRGBA) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], src.Pix[y*src.Stride:y*src.Stride+w*4])
	}
}
