package engine

import "math"

// tpsKernel is the thin-plate-spline radial basis function U(r) = r^2 log r,
// with U(0) = 0 by convention.
func tpsKernel(r2 float64) float64 {
	if r2 <= 1e-12 {
		return 0
	}
	return 0.5 * r2 * math.Log(r2)
}

// tpsWarp is a built-once, read-only 2D-to-2D thin-plate-spline map from
// image pixels to the normalized board frame (outer-double ring at unit
// radius, segment 20 centered on the positive y-axis). Evaluation is
// allocation-free on the hot path and only reads the fitted coefficients,
// so one warp can serve concurrent calls: the coefficients are solved once
// and evaluated many times, matching the teacher's tensor-reuse pattern in
// internal/vision (NewEmptyTensor once, Run() many times) applied here to a
// closed-form warp instead of a neural network.
type tpsWarp struct {
	ctrl   []Point // control points, image space
	wx, wy []float64
	ax     [3]float64 // affine coeffs for x: a0 + a1*px + a2*py
	ay     [3]float64
	lambda float64
}

// buildTPSWarp fits a thin-plate spline from image-space control points to
// their known board-frame targets. lambda is the regularization weight
// (small, proportional to control-point spacing) that keeps the system
// well-conditioned when ellipse samples are nearly collinear.
func buildTPSWarp(ctrl []Point, target []Point, lambda float64) (*tpsWarp, bool) {
	n := len(ctrl)
	if n < 4 || len(target) != n {
		return nil, false
	}

	size := n + 3
	k := make([][]float64, size)
	for i := range k {
		k[i] = make([]float64, size)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dx := ctrl[i].X - ctrl[j].X
			dy := ctrl[i].Y - ctrl[j].Y
			v := tpsKernel(dx*dx + dy*dy)
			if i == j {
				v += lambda
			}
			k[i][j] = v
		}
		k[i][n] = 1
		k[i][n+1] = ctrl[i].X
		k[i][n+2] = ctrl[i].Y
		k[n][i] = 1
		k[n+1][i] = ctrl[i].X
		k[n+2][i] = ctrl[i].Y
	}

	bx := make([]float64, size)
	by := make([]float64, size)
	for i := 0; i < n; i++ {
		bx[i] = target[i].X
		by[i] = target[i].Y
	}

	kx := cloneMatrix(k)
	solX, ok := solveLinearSystem(kx, bx)
	if !ok {
		return nil, false
	}
	ky := cloneMatrix(k)
	solY, ok := solveLinearSystem(ky, by)
	if !ok {
		return nil, false
	}

	w := &tpsWarp{
		ctrl:   append([]Point(nil), ctrl...),
		wx:     append([]float64(nil), solX[:n]...),
		wy:     append([]float64(nil), solY[:n]...),
		lambda: lambda,
	}
	copy(w.ax[:], solX[n:n+3])
	copy(w.ay[:], solY[n:n+3])
	return w, true
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// WarpPoint maps an image-space point into the normalized board frame.
func (w *tpsWarp) WarpPoint(p Point) Point {
	bx := w.ax[0] + w.ax[1]*p.X + w.ax[2]*p.Y
	by := w.ay[0] + w.ay[1]*p.X + w.ay[2]*p.Y
	for i, c := range w.ctrl {
		dx := p.X - c.X
		dy := p.Y - c.Y
		u := tpsKernel(dx*dx + dy*dy)
		bx += w.wx[i] * u
		by += w.wy[i] * u
	}
	return Point{X: bx, Y: by}
}

// WarpDirection warps a unit direction at image point p by transforming two
// points a small step apart along the line and differencing, then
// renormalizing — the method spec.md specifies explicitly rather than
// differentiating the warp analytically.
func (w *tpsWarp) WarpDirection(p Point, vx, vy float64) (float64, float64) {
	const step = 1.0
	p0 := w.WarpPoint(p)
	p1 := w.WarpPoint(Point{X: p.X + vx*step, Y: p.Y + vy*step})
	dx := p1.X - p0.X
	dy := p1.Y - p0.Y
	n := math.Hypot(dx, dy)
	if n == 0 {
		return 0, 1
	}
	return dx / n, dy / n
}
