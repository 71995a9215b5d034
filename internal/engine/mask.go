package engine

import (
	"image"
	"image/color"
	"math"
)

// Bitmap is a dense width*height boolean mask in ROI-local coordinates.
type Bitmap struct {
	W, H int
	Bits []bool
}

func newBitmap(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, Bits: make([]bool, w*h)}
}

func (b *Bitmap) get(x, y int) bool {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return false
	}
	return b.Bits[y*b.W+x]
}

func (b *Bitmap) set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return
	}
	b.Bits[y*b.W+x] = v
}

func (b *Bitmap) count() int {
	n := 0
	for _, v := range b.Bits {
		if v {
			n++
		}
	}
	return n
}

// MaskConfig holds the hysteresis/morphology thresholds used to turn a
// signed frame difference into a motion mask.
type MaskConfig struct {
	BlurSigma      float64
	HighThreshold  float64 // strong-edge seed threshold, signed diff units
	LowThreshold   float64 // weak-edge growth threshold
	CloseRadius    int     // morphological close structuring radius
	DilatePrevMask int     // dilation radius applied to prevDartMask before subtraction
	// MinNewDartPixelRatio is the floor NewDartPixelRatio must clear for a
	// camera to be considered to have seen dart motion at all; below it
	// detectOneCamera reports ErrNoDartMotion instead of running C3 on noise.
	MinNewDartPixelRatio float64
}

// DefaultMaskConfig matches the thresholds exercised by the package tests;
// a deployment tunes these per rig lighting via config.
var DefaultMaskConfig = MaskConfig{
	BlurSigma:            1.0,
	HighThreshold:        28,
	LowThreshold:         12,
	CloseRadius:          1,
	DilatePrevMask:       3,
	MinNewDartPixelRatio: 0.02,
}

// gaussianBlur applies a separable Gaussian blur with the given sigma to an
// 8-bit grayscale image, returning a new image of the same bounds.
func gaussianBlur(img *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		out := image.NewGray(img.Bounds())
		copy(out.Pix, img.Pix)
		return out
	}
	radius := int(math.Ceil(sigma * 3))
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]float64, w*h)
	out := image.NewGray(b)

	at := func(x, y int) float64 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for i := -radius; i <= radius; i++ {
				acc += kernel[i+radius] * at(x+i, y)
			}
			tmp[y*w+x] = acc
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for i := -radius; i <= radius; i++ {
				yy := clampInt(y+i, 0, h-1)
				acc += kernel[i+radius] * tmp[yy*w+x]
			}
			out.SetGray(b.Min.X+x, b.Min.Y+y, grayClamp(acc))
		}
	}
	return out
}

func grayClamp(v float64) color.Gray {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return color.Gray{Y: uint8(v)}
}

// signedDiff computes cur-ref per pixel over the shared bounds.
func signedDiff(cur, ref *image.Gray) []float64 {
	b := cur.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cv := float64(cur.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			rv := float64(ref.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			out[y*w+x] = cv - rv
		}
	}
	return out
}

// buildMotionMask turns a signed difference field into a hysteresis mask
// plus the four-way pixel classification (new/old/moved/stationary) spec.md
// §4.2 asks the quality summary to carry, then subtracts a dilated
// prevDartMask so darts already scored on a prior throw don't get re-picked
// up as new motion.
func buildMotionMask(cur, ref *image.Gray, prevDartMask *Bitmap, cfg MaskConfig) (*Bitmap, MaskQuality) {
	curBlur := gaussianBlur(cur, cfg.BlurSigma)
	refBlur := gaussianBlur(ref, cfg.BlurSigma)
	diff := signedDiff(curBlur, refBlur)

	b := cur.Bounds()
	w, h := b.Dx(), b.Dy()

	var q MaskQuality
	strong := newBitmap(w, h)
	weak := newBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := diff[y*w+x]
			switch {
			case d >= cfg.HighThreshold:
				q.NewPixels++
				strong.set(x, y, true)
				weak.set(x, y, true)
			case d >= cfg.LowThreshold:
				q.MovedPixels++
				weak.set(x, y, true)
			case d <= -cfg.HighThreshold:
				q.OldPixels++
			default:
				q.StationaryPixels++
			}
		}
	}

	mask := hysteresisGrow(strong, weak)
	mask = morphClose(mask, cfg.CloseRadius)

	if prevDartMask != nil {
		prevDilated := dilate(prevDartMask, cfg.DilatePrevMask)
		for i := range mask.Bits {
			if prevDilated.Bits[i] {
				mask.Bits[i] = false
			}
		}
	}

	// spec.md §3: new_dart_pixel_ratio is new motion as a share of all motion
	// (new+old+moved), not a share of the whole frame — a tightly cropped ROI
	// with a small dart should still read as high quality.
	const epsilon = 1e-6
	q.NewDartPixelRatio = float64(q.NewPixels) / (float64(q.NewPixels+q.OldPixels+q.MovedPixels) + epsilon)
	return mask, q
}

// hysteresisGrow keeps every weak pixel reachable from a strong seed by
// 8-connectivity, discarding weak regions with no strong core.
func hysteresisGrow(strong, weak *Bitmap) *Bitmap {
	out := newBitmap(strong.W, strong.H)
	stack := make([][2]int, 0, 256)
	for y := 0; y < strong.H; y++ {
		for x := 0; x < strong.W; x++ {
			if strong.get(x, y) && !out.get(x, y) {
				stack = append(stack, [2]int{x, y})
				out.set(x, y, true)
				for len(stack) > 0 {
					p := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					for _, d := range neighbors8 {
						nx, ny := p[0]+d[0], p[1]+d[1]
						if weak.get(nx, ny) && !out.get(nx, ny) {
							out.set(nx, ny, true)
							stack = append(stack, [2]int{nx, ny})
						}
					}
				}
			}
		}
	}
	return out
}

var neighbors8 = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

func dilate(m *Bitmap, radius int) *Bitmap {
	if radius <= 0 {
		out := newBitmap(m.W, m.H)
		copy(out.Bits, m.Bits)
		return out
	}
	out := newBitmap(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if !m.get(x, y) {
				continue
			}
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					out.set(x+dx, y+dy, true)
				}
			}
		}
	}
	return out
}

func erode(m *Bitmap, radius int) *Bitmap {
	if radius <= 0 {
		out := newBitmap(m.W, m.H)
		copy(out.Bits, m.Bits)
		return out
	}
	out := newBitmap(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			all := true
			for dy := -radius; dy <= radius && all; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if !m.get(x+dx, y+dy) {
						all = false
						break
					}
				}
			}
			out.set(x, y, all)
		}
	}
	return out
}

// morphClose is dilate-then-erode, closing small gaps inside a dart's mask
// without growing its overall footprint.
func morphClose(m *Bitmap, radius int) *Bitmap {
	if radius <= 0 {
		return m
	}
	return erode(dilate(m, radius), radius)
}
