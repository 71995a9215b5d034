package engine

import "math"

// ShapeConfig gates which connected components are plausible dart regions
// before a line fit is even attempted, and how tightly the barrel candidate
// within a dart region is thresholded for line fitting.
type ShapeConfig struct {
	MinArea int
	MaxArea int
	// MinAspect is the bbox long-side/short-side a dart region must clear;
	// spec.md §4.4 default is 2.0.
	MinAspect float64
	// BarrelWidthCap is the max perpendicular cross-section (px, at
	// resolution_scale=1) a proj-bucket may have to stay in the barrel
	// candidate; callers scale it by CameraCalibration.ResolutionScale.
	BarrelWidthCap float64
}

var DefaultShapeConfig = ShapeConfig{
	MinArea:        10,
	MaxArea:        6000,
	MinAspect:      2.0,
	BarrelWidthCap: 6.0,
}

// selectDartRegion picks the single component most likely to be a thrown
// dart: passes area/aspect gates, then wins on largest area among survivors
// (a thrown dart is the largest new elongated shape in the ROI once
// stationary noise and prior darts are excluded by the motion mask). This is
// the full region — tip localization runs against it directly, per
// spec.md §4.4, since the flight end is part of the region but must not
// drag the line fit off the shaft axis.
func selectDartRegion(comps []component, cfg ShapeConfig) (component, bool) {
	best := component{}
	found := false
	for _, c := range comps {
		if c.Area < cfg.MinArea || c.Area > cfg.MaxArea {
			continue
		}
		w, h := c.Bounds.w(), c.Bounds.h()
		long, short := float64(w), float64(h)
		if short > long {
			long, short = short, long
		}
		if short < 1 {
			short = 1
		}
		if long/short < cfg.MinAspect {
			continue
		}
		if !found || c.Area > best.Area {
			best = c
			found = true
		}
	}
	return best, found
}

// extractBarrelCandidate narrows a dart region down to its barrel: the
// proj-buckets along the region's own PCA axis whose perpendicular spread
// is within widthCap. Per spec.md §4.4, the barrel candidate feeds the
// line fit while the full dart region remains available separately for
// tip-localization fallback and shaft-length diagnostics, since the flight
// is far wider than the barrel and would otherwise bias the fit.
func extractBarrelCandidate(region component, widthCap float64) (component, bool) {
	if region.Area == 0 {
		return component{}, false
	}
	vx, vy, _, cx, cy := pcaAxis(region.Pixels)
	px, py := -vy, vx

	type bucket struct{ lo, hi float64 }
	buckets := make(map[int]*bucket)
	for _, p := range region.Pixels {
		dx := float64(p.X) - cx
		dy := float64(p.Y) - cy
		proj := dx*vx + dy*vy
		perp := dx*px + dy*py
		key := int(math.Round(proj))
		b, ok := buckets[key]
		if !ok {
			buckets[key] = &bucket{lo: perp, hi: perp}
		} else {
			if perp < b.lo {
				b.lo = perp
			}
			if perp > b.hi {
				b.hi = perp
			}
		}
	}

	var out component
	minX, minY, maxX, maxY := math.MaxInt32, math.MaxInt32, math.MinInt32, math.MinInt32
	for _, p := range region.Pixels {
		dx := float64(p.X) - cx
		dy := float64(p.Y) - cy
		proj := dx*vx + dy*vy
		key := int(math.Round(proj))
		b := buckets[key]
		if b.hi-b.lo > widthCap {
			continue
		}
		out.Pixels = append(out.Pixels, p)
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X+1 > maxX {
			maxX = p.X + 1
		}
		if p.Y+1 > maxY {
			maxY = p.Y + 1
		}
	}
	out.Area = len(out.Pixels)
	if out.Area == 0 {
		return component{}, false
	}
	out.Bounds = Rect{X0: minX, Y0: minY, X1: maxX, Y1: maxY}
	return out, true
}

// thicknessProfile estimates the shaft's mean cross-sectional thickness by
// projecting every pixel onto the perpendicular of the fitted axis and
// averaging, per offset bucket along the axis, the spread between the
// extreme perpendicular offsets.
func thicknessProfile(c component, line ShaftLine) (mean float64, shaftLength float64) {
	if c.Area == 0 {
		return 0, 0
	}
	px, py := -line.Vy, line.Vx // perpendicular unit vector

	type bucket struct{ lo, hi float64 }
	buckets := make(map[int]*bucket)
	minProj, maxProj := math.Inf(1), math.Inf(-1)

	for _, p := range c.Pixels {
		dx := float64(p.X) - line.X0
		dy := float64(p.Y) - line.Y0
		proj := dx*line.Vx + dy*line.Vy
		perp := dx*px + dy*py
		if proj < minProj {
			minProj = proj
		}
		if proj > maxProj {
			maxProj = proj
		}
		key := int(math.Round(proj))
		b, ok := buckets[key]
		if !ok {
			b = &bucket{lo: perp, hi: perp}
			buckets[key] = b
		} else {
			if perp < b.lo {
				b.lo = perp
			}
			if perp > b.hi {
				b.hi = perp
			}
		}
	}

	if len(buckets) == 0 {
		return 0, 0
	}
	var sum float64
	for _, b := range buckets {
		sum += b.hi - b.lo
	}
	mean = sum / float64(len(buckets))
	if math.IsInf(minProj, 0) || math.IsInf(maxProj, 0) {
		shaftLength = 0
	} else {
		shaftLength = maxProj - minProj
	}
	return mean, shaftLength
}

func barrelAspect(c component) float64 {
	w, h := c.Bounds.w(), c.Bounds.h()
	long, short := float64(w), float64(h)
	if short > long {
		long, short = short, long
	}
	if short < 1 {
		short = 1
	}
	return long / short
}

// ridgeResidual computes the RMS perpendicular distance of every pixel in
// the component to the fitted line, a quick goodness-of-fit number carried
// in CameraResult for diagnostics and downstream confidence weighting.
func ridgeResidual(c component, line ShaftLine) float64 {
	if c.Area == 0 {
		return 0
	}
	px, py := -line.Vy, line.Vx
	var sumSq float64
	for _, p := range c.Pixels {
		dx := float64(p.X) - line.X0
		dy := float64(p.Y) - line.Y0
		perp := dx*px + dy*py
		sumSq += perp * perp
	}
	return math.Sqrt(sumSq / float64(c.Area))
}
