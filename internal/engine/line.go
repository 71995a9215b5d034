package engine

import "math"

// pcaAxis returns the unit principal-axis direction of a pixel set via the
// closed-form eigendecomposition of its 2x2 covariance matrix, plus
// elongation = sqrt(lambda1/lambda2) (large for a thin dart shaft, near 1
// for a round blob).
func pcaAxis(pixels []image2DPoint) (vx, vy, elongation float64, cx, cy float64) {
	n := float64(len(pixels))
	if n == 0 {
		return 0, 1, 1, 0, 0
	}
	for _, p := range pixels {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= n
	cy /= n

	var sxx, syy, sxy float64
	for _, p := range pixels {
		dx := float64(p.X) - cx
		dy := float64(p.Y) - cy
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	sxx /= n
	syy /= n
	sxy /= n

	trace := sxx + syy
	det := sxx*syy - sxy*sxy
	disc := math.Sqrt(math.Max(trace*trace/4-det, 0))
	l1 := trace/2 + disc
	l2 := trace/2 - disc
	if l2 < 1e-9 {
		l2 = 1e-9
	}

	if sxy == 0 {
		if sxx >= syy {
			vx, vy = 1, 0
		} else {
			vx, vy = 0, 1
		}
	} else {
		vx, vy = l1-syy, sxy
	}
	vx, vy = normalizeDir(vx, vy)
	elongation = math.Sqrt(l1 / l2)
	return vx, vy, elongation, cx, cy
}

// ransacLine fits a line by repeated random sampling of point pairs,
// scoring by perpendicular-distance inliers, and returns the winning
// direction plus its inlier ratio. Deterministic: samples are drawn by a
// fixed stride rather than math/rand so the same component always produces
// the same fit, which the teacher's retrieval-determinism tests rely on.
func ransacLine(pixels []image2DPoint, threshold float64) (vx, vy, x0, y0, inlierRatio float64) {
	n := len(pixels)
	if n < 2 {
		return 0, 1, 0, 0, 0
	}
	bestScore := -1
	bestA, bestB := 0, 1
	step := n/37 + 1
	for i := 0; i < n; i += step {
		for j := i + step; j < n; j += step {
			ax, ay := float64(pixels[i].X), float64(pixels[i].Y)
			bx, by := float64(pixels[j].X), float64(pixels[j].Y)
			dx, dy := bx-ax, by-ay
			norm := math.Hypot(dx, dy)
			if norm < 1e-6 {
				continue
			}
			ux, uy := dx/norm, dy/norm
			score := 0
			for _, p := range pixels {
				px, py := float64(p.X)-ax, float64(p.Y)-ay
				perp := math.Abs(px*uy - py*ux)
				if perp <= threshold {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				bestA, bestB = i, j
			}
		}
	}

	ax, ay := float64(pixels[bestA].X), float64(pixels[bestA].Y)
	bx, by := float64(pixels[bestB].X), float64(pixels[bestB].Y)
	vx, vy = normalizeDir(bx-ax, by-ay)

	var sx, sy float64
	for _, p := range pixels {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	x0, y0 = sx/float64(n), sy/float64(n)
	if n > 0 {
		inlierRatio = float64(bestScore) / float64(n)
	}
	return vx, vy, x0, y0, inlierRatio
}

// ridgeLine fits x as a ridge-regularized linear function of y (the shaft
// is closer to vertical than horizontal in every rig geometry spec.md
// targets), returning a unit direction through the pixel centroid.
func ridgeLine(pixels []image2DPoint, lambda float64) (vx, vy, x0, y0 float64) {
	n := float64(len(pixels))
	if n == 0 {
		return 0, 1, 0, 0
	}
	var sx, sy float64
	for _, p := range pixels {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	x0, y0 = sx/n, sy/n

	var syy, sxy float64
	for _, p := range pixels {
		dx := float64(p.X) - x0
		dy := float64(p.Y) - y0
		syy += dy * dy
		sxy += dx * dy
	}
	slope := sxy / (syy + lambda)
	vx, vy = normalizeDir(slope, 1)
	return vx, vy, x0, y0
}

// lineInlierRatio is the fraction of pixels whose perpendicular distance to
// the line (x0,y0)+t*(vx,vy) is within threshold — a goodness-of-fit score
// shared by the ridge and PCA candidates so fitShaftLine can compare them on
// the same footing as RANSAC's own inlier ratio.
func lineInlierRatio(pixels []image2DPoint, vx, vy, x0, y0, threshold float64) float64 {
	if len(pixels) == 0 {
		return 0
	}
	px, py := -vy, vx
	count := 0
	for _, p := range pixels {
		dx := float64(p.X) - x0
		dy := float64(p.Y) - y0
		perp := dx*px + dy*py
		if math.Abs(perp) <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(pixels))
}

// fitShaftLine selects among ridge, PCA, and RANSAC per spec.md §4.5's
// stated priority: ridge wins if its own inlier ratio clears
// RidgeAcceptRatio, else PCA wins if its elongation clears
// PCAAcceptElongation, else RANSAC is the fallback of last resort. Every
// branch records a real InlierRatio so downstream confidence weighting never
// silently sees a zero from a ridge or PCA win.
func fitShaftLine(c component, cfg LineFitConfig) (ShaftLine, bool) {
	if c.Area < cfg.MinPixels {
		return ShaftLine{}, false
	}

	pvx, pvy, elongation, cx, cy := pcaAxis(c.Pixels)
	if elongation < cfg.MinElongation {
		return ShaftLine{}, false
	}

	rvx, rvy, rx0, ry0 := ridgeLine(c.Pixels, cfg.RidgeLambda)
	ridgeRatio := lineInlierRatio(c.Pixels, rvx, rvy, rx0, ry0, cfg.InlierThreshold)
	if ridgeRatio >= cfg.RidgeAcceptRatio {
		return ShaftLine{Vx: rvx, Vy: rvy, X0: rx0, Y0: ry0, Elongation: elongation, Method: LineRidge, InlierRatio: ridgeRatio}, true
	}

	if elongation >= cfg.PCAAcceptElongation {
		pcaRatio := lineInlierRatio(c.Pixels, pvx, pvy, cx, cy, cfg.InlierThreshold)
		return ShaftLine{Vx: pvx, Vy: pvy, X0: cx, Y0: cy, Elongation: elongation, Method: LinePCA, InlierRatio: pcaRatio}, true
	}

	svx, svy, sx0, sy0, ransacRatio := ransacLine(c.Pixels, cfg.RANSACThreshold)
	return ShaftLine{Vx: svx, Vy: svy, X0: sx0, Y0: sy0, Elongation: elongation, Method: LineRANSAC, InlierRatio: ransacRatio}, true
}

// LineFitConfig gates which components are even candidates for a shaft-line
// fit and how the three estimators are weighed against each other.
type LineFitConfig struct {
	MinPixels           int
	MinElongation       float64 // absolute reject gate: below this, not a line at all
	RidgeLambda         float64
	InlierThreshold     float64 // perpendicular distance, px, within which a pixel counts as an inlier
	RidgeAcceptRatio    float64 // ridge wins outright once its inlier ratio clears this
	PCAAcceptElongation float64 // else PCA wins once elongation clears this (stricter than MinElongation)
	RANSACThreshold     float64
}

var DefaultLineFitConfig = LineFitConfig{
	MinPixels:           12,
	MinElongation:       1.8,
	RidgeLambda:         1.0,
	InlierThreshold:     1.5,
	RidgeAcceptRatio:    0.85,
	PCAAcceptElongation: 2.5,
	RANSACThreshold:     1.5,
}
