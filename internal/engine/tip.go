package engine

import "math"

// TipConfig controls how many buckets at each shaft end are compared when
// deciding which end is the tip, and how many are used for the sub-pixel
// parabola extrapolation.
type TipConfig struct {
	EndSampleBuckets int
	FitBuckets       int
}

var DefaultTipConfig = TipConfig{
	EndSampleBuckets: 4,
	FitBuckets:       6,
}

type axisBucket struct {
	proj      float64
	perpLo    float64
	perpHi    float64
}

// localizeTip walks the shaft's projected-thickness profile to find which
// end tapers to a point (the tip, as opposed to the flight end which stays
// wide or widens), then parabola-fits the last few buckets on that end to
// refine the along-axis position to sub-pixel precision.
func localizeTip(c component, line ShaftLine, cfg TipConfig) (tipInt Point, tipSub Point, ok bool) {
	if c.Area == 0 {
		return Point{}, Point{}, false
	}
	px, py := -line.Vy, line.Vx

	buckets := make(map[int]*axisBucket)
	for _, p := range c.Pixels {
		dx := float64(p.X) - line.X0
		dy := float64(p.Y) - line.Y0
		proj := dx*line.Vx + dy*line.Vy
		perp := dx*px + dy*py
		key := int(math.Round(proj))
		b, exists := buckets[key]
		if !exists {
			buckets[key] = &axisBucket{proj: float64(key), perpLo: perp, perpHi: perp}
		} else {
			if perp < b.perpLo {
				b.perpLo = perp
			}
			if perp > b.perpHi {
				b.perpHi = perp
			}
		}
	}
	if len(buckets) < 2 {
		return Point{}, Point{}, false
	}

	sorted := make([]*axisBucket, 0, len(buckets))
	for _, b := range buckets {
		sorted = append(sorted, b)
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].proj < sorted[j-1].proj; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	n := len(sorted)
	lowEnd := meanThickness(sorted[:minInt(cfg.EndSampleBuckets, n)])
	highEnd := meanThickness(sorted[maxInt(0, n-cfg.EndSampleBuckets):])

	var fitSet []*axisBucket
	var tipIsLow bool
	if lowEnd <= highEnd {
		tipIsLow = true
		fitSet = sorted[:minInt(cfg.FitBuckets, n)]
	} else {
		tipIsLow = false
		fitSet = sorted[maxInt(0, n-cfg.FitBuckets):]
	}

	tipProj := extrapolateTipProjection(fitSet, tipIsLow)

	intBucket := sorted[0]
	if !tipIsLow {
		intBucket = sorted[n-1]
	}
	mid := (intBucket.perpLo + intBucket.perpHi) / 2
	tipInt = Point{
		X: line.X0 + intBucket.proj*line.Vx + mid*px,
		Y: line.Y0 + intBucket.proj*line.Vy + mid*py,
	}
	tipSub = Point{
		X: line.X0 + tipProj*line.Vx,
		Y: line.Y0 + tipProj*line.Vy,
	}
	return tipInt, tipSub, true
}

func meanThickness(bs []*axisBucket) float64 {
	if len(bs) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, b := range bs {
		sum += b.perpHi - b.perpLo
	}
	return sum / float64(len(bs))
}

// extrapolateTipProjection fits a parabola (thickness as a function of
// along-axis position) to the last few buckets on the tapering end and
// returns the along-axis position where the fitted thickness reaches zero,
// i.e. the sub-pixel tip location projected onto the shaft axis.
func extrapolateTipProjection(bs []*axisBucket, tipIsLow bool) float64 {
	if len(bs) == 0 {
		return 0
	}
	if len(bs) < 3 {
		if tipIsLow {
			return bs[0].proj
		}
		return bs[len(bs)-1].proj
	}

	xs := make([]float64, len(bs))
	ys := make([]float64, len(bs))
	for i, b := range bs {
		xs[i] = b.proj
		ys[i] = b.perpHi - b.perpLo
	}

	a, b, c, ok := fitParabola(xs, ys)
	edgeProj := bs[0].proj
	if !tipIsLow {
		edgeProj = bs[len(bs)-1].proj
	}
	if !ok {
		return edgeProj
	}

	step := 0.1
	if tipIsLow {
		step = -0.1
	}
	t := edgeProj
	for i := 0; i < 200; i++ {
		v := a*t*t + b*t + c
		if v <= 0 {
			return t
		}
		t += step
	}
	return edgeProj
}

// fitParabola solves the least-squares quadratic y = a*x^2 + b*x + c via
// the normal equations (3x3), reusing solveLinearSystem.
func fitParabola(xs, ys []float64) (a, b, c float64, ok bool) {
	n := float64(len(xs))
	var sx, sx2, sx3, sx4, sy, sxy, sx2y float64
	for i := range xs {
		x := xs[i]
		y := ys[i]
		x2 := x * x
		sx += x
		sx2 += x2
		sx3 += x2 * x
		sx4 += x2 * x2
		sy += y
		sxy += x * y
		sx2y += x2 * y
	}
	m := [][]float64{
		{sx4, sx3, sx2},
		{sx3, sx2, sx},
		{sx2, sx, n},
	}
	rhs := []float64{sx2y, sxy, sy}
	sol, solved := solveLinearSystem(m, rhs)
	if !solved {
		return 0, 0, 0, false
	}
	return sol[0], sol[1], sol[2], true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
