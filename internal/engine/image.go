package engine

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
)

// decodeFrame decodes a raw camera frame (JPEG or PNG, the two codecs the
// capture side is expected to emit) and converts it to 8-bit grayscale. Any
// decode failure is reported as ErrDecodeFailed so callers can attribute it
// to the offending camera without inspecting the underlying image package
// error.
func decodeFrame(data []byte) (*image.Gray, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newInitError(ErrDecodeFailed, err.Error())
	}
	return toGray(img), nil
}

// toGray converts an arbitrary image.Image to *image.Gray, copying directly
// when possible.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// cropROI returns a new *image.Gray holding just the pixels inside roi,
// clamped to the source bounds. Detection never runs on the full frame past
// this point: every later stage works in ROI-local coordinates. Per
// spec.md §4.2, a degenerate ROI (empty, or entirely outside the image)
// falls back to the full source image instead of an empty crop, and
// fallback reports that via its third return value so the caller can
// surface CameraResult.Mask.ROIFallback.
func cropROI(src *image.Gray, roi Rect) (img *image.Gray, bounds Rect, fallback bool) {
	b := src.Bounds()
	clamped := Rect{
		X0: clampInt(roi.X0, b.Min.X, b.Max.X),
		Y0: clampInt(roi.Y0, b.Min.Y, b.Max.Y),
		X1: clampInt(roi.X1, b.Min.X, b.Max.X),
		Y1: clampInt(roi.Y1, b.Min.Y, b.Max.Y),
	}
	if clamped.empty() {
		full := Rect{X0: b.Min.X, Y0: b.Min.Y, X1: b.Max.X, Y1: b.Max.Y}
		return src, full, true
	}
	dst := image.NewGray(image.Rect(0, 0, clamped.w(), clamped.h()))
	srcRect := image.Rect(clamped.X0, clamped.Y0, clamped.X1, clamped.Y1)
	draw.Draw(dst, dst.Bounds(), src, srcRect.Min, draw.Src)
	return dst, clamped, false
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
