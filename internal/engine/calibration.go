package engine

import (
	"encoding/json"
	"fmt"
	"math"
)

// RingRadiiMM are the WDF reference ring radii in millimetres, outer double
// = 170mm per spec.md §9 ("the spec here fixes the reference"). Any
// wire-width expansion belongs to the calibration that was fit to a real
// board image, not to these constants.
var RingRadiiMM = struct {
	InnerBull   float64
	OuterBull   float64
	TripleInner float64
	TripleOuter float64
	DoubleInner float64
	DoubleOuter float64
}{
	InnerBull:   6.35,
	OuterBull:   15.9,
	TripleInner: 99.0,
	TripleOuter: 107.0,
	DoubleInner: 162.0,
	DoubleOuter: 170.0,
}

// dartboardOrder is the standard clockwise segment sequence starting at 20,
// used to resolve segment_boundary_angles[i] into a physical segment value
// once segment_20_index anchors the array to "20".
var dartboardOrder = [20]int{20, 1, 18, 4, 13, 6, 10, 15, 2, 17, 3, 19, 7, 16, 8, 11, 14, 9, 12, 5}

// rawEllipse is the wire JSON shape for the six optional calibrated rings.
type rawEllipse struct {
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	RotateDeg float64 `json:"rotation_deg"`
}

func (r *rawEllipse) toEllipse() EllipseData {
	if r == nil {
		return EllipseData{}
	}
	return EllipseData{CenterX: r.CenterX, CenterY: r.CenterY, Width: r.Width, Height: r.Height, RotateDeg: r.RotateDeg}
}

// rawCalibration is the self-describing JSON shape for one camera's
// calibration record, per spec.md §6 ("a self-describing tagged format —
// JSON is the reference encoding").
type rawCalibration struct {
	Center                struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"center"`
	SegmentBoundaryAngles []float64   `json:"segment_boundary_angles"`
	Segment20Index        int         `json:"segment_20_index"`
	ImageHeight           int         `json:"image_height"`
	OuterDouble           *rawEllipse `json:"outer_double,omitempty"`
	InnerDouble           *rawEllipse `json:"inner_double,omitempty"`
	OuterTriple           *rawEllipse `json:"outer_triple,omitempty"`
	InnerTriple           *rawEllipse `json:"inner_triple,omitempty"`
	OuterBull             *rawEllipse `json:"outer_bull,omitempty"`
	InnerBull             *rawEllipse `json:"inner_bull,omitempty"`
}

// CameraCalibration is one camera's immutable, once-built calibration: the
// raw ellipses/angles supplied by the caller plus derived state (ROI,
// resolution scale, TPS cache) computed once at Init and never mutated.
type CameraCalibration struct {
	CenterX, CenterY      float64
	SegmentBoundaryAngles [20]float64
	Segment20Index        int
	ImageHeight           int

	OuterDouble EllipseData
	InnerDouble EllipseData
	OuterTriple EllipseData
	InnerTriple EllipseData
	OuterBull   EllipseData
	InnerBull   EllipseData
	HasEllipses bool

	BoardROI        Rect
	ResolutionScale float64

	// Normalized ring thresholds, in outer-double-radius units.
	innerBullNorm   float64
	outerBullNorm   float64
	tripleInnerNorm float64
	tripleOuterNorm float64
	doubleInnerNorm float64
	doubleOuterNorm float64

	tps *tpsWarp
}

// ParseCalibrationDocument parses the tagged calibration document (a JSON
// object mapping camera id to that camera's calibration record) into
// validated, derived CameraCalibration values. Returns an *InitError naming
// one of the init-time error kinds on rejection.
func ParseCalibrationDocument(doc []byte) (map[string]*CameraCalibration, error) {
	var raw map[string]rawCalibration
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, newInitError(ErrEmptyCalibration, err.Error())
	}
	if len(raw) == 0 {
		return nil, newInitError(ErrEmptyCalibration, "calibration document has no cameras")
	}

	out := make(map[string]*CameraCalibration, len(raw))
	for camID, rc := range raw {
		cal, err := buildCalibration(rc)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", camID, err)
		}
		out[camID] = cal
	}
	return out, nil
}

func buildCalibration(rc rawCalibration) (*CameraCalibration, error) {
	if len(rc.SegmentBoundaryAngles) != 20 {
		return nil, newInitError(ErrBadAngles, "segment_boundary_angles must have exactly 20 entries")
	}

	cal := &CameraCalibration{
		CenterX:        rc.Center.X,
		CenterY:        rc.Center.Y,
		Segment20Index: ((rc.Segment20Index % 20) + 20) % 20,
		ImageHeight:    rc.ImageHeight,
	}
	copy(cal.SegmentBoundaryAngles[:], rc.SegmentBoundaryAngles)
	if err := validateAngles(cal.SegmentBoundaryAngles); err != nil {
		return nil, err
	}

	cal.OuterDouble = rc.OuterDouble.toEllipse()
	cal.InnerDouble = rc.InnerDouble.toEllipse()
	cal.OuterTriple = rc.OuterTriple.toEllipse()
	cal.InnerTriple = rc.InnerTriple.toEllipse()
	cal.OuterBull = rc.OuterBull.toEllipse()
	cal.InnerBull = rc.InnerBull.toEllipse()
	cal.HasEllipses = cal.OuterDouble.valid() && cal.OuterBull.valid()
	if !cal.HasEllipses {
		return nil, newInitError(ErrMissingEllipses, "outer_double and outer_bull ellipses are required")
	}

	if cal.ImageHeight <= 0 {
		cal.ImageHeight = 1080
	}
	cal.ResolutionScale = float64(cal.ImageHeight) / 1080.0

	cal.innerBullNorm = RingRadiiMM.InnerBull / RingRadiiMM.DoubleOuter
	cal.outerBullNorm = RingRadiiMM.OuterBull / RingRadiiMM.DoubleOuter
	cal.tripleInnerNorm = RingRadiiMM.TripleInner / RingRadiiMM.DoubleOuter
	cal.tripleOuterNorm = RingRadiiMM.TripleOuter / RingRadiiMM.DoubleOuter
	cal.doubleInnerNorm = RingRadiiMM.DoubleInner / RingRadiiMM.DoubleOuter
	cal.doubleOuterNorm = 1.0

	cal.BoardROI = computeBoardROI(cal.OuterDouble, cal.ResolutionScale)

	tps, ok := buildCalibrationTPS(cal)
	if !ok {
		return nil, newInitError(ErrBadAngles, "failed to fit TPS warp from ellipse control points")
	}
	cal.tps = tps

	return cal, nil
}

func validateAngles(angles [20]float64) error {
	norm := make([]float64, 20)
	for i, a := range angles {
		norm[i] = math.Mod(math.Mod(a, 360)+360, 360)
	}
	for i := 1; i < 20; i++ {
		if norm[i] <= norm[i-1] {
			return newInitError(ErrBadAngles, "segment_boundary_angles must be strictly increasing modulo 360")
		}
	}
	return nil
}

// computeBoardROI derives the axis-aligned ROI from the outer-double
// ellipse plus a margin that scales with resolution (spec.md §4.2).
func computeBoardROI(outer EllipseData, resScale float64) Rect {
	if !outer.valid() {
		return Rect{}
	}
	margin := 24.0 * resScale
	halfW := outer.Width/2 + margin
	halfH := outer.Height/2 + margin
	return Rect{
		X0: int(math.Floor(outer.CenterX - halfW)),
		Y0: int(math.Floor(outer.CenterY - halfH)),
		X1: int(math.Ceil(outer.CenterX + halfW)),
		Y1: int(math.Ceil(outer.CenterY + halfH)),
	}
}

// SegmentAt resolves an angle (degrees, [0,360), board convention: top=0,
// clockwise positive) to a physical segment value 1..20 using
// segment_boundary_angles and segment_20_index.
func (c *CameraCalibration) SegmentAt(thetaDeg float64) int {
	theta := math.Mod(math.Mod(thetaDeg, 360)+360, 360)
	idx := 0
	for i, a := range c.SegmentBoundaryAngles {
		if theta < a {
			idx = i
			break
		}
		idx = (i + 1) % 20
	}
	offset := ((idx - c.Segment20Index) + 20) % 20
	return dartboardOrder[offset]
}

// BoundaryDistanceDeg returns the unsigned angular distance from theta to
// the nearest segment-boundary wire, in [0, 9] degrees (half a 18-degree
// wedge).
func (c *CameraCalibration) BoundaryDistanceDeg(thetaDeg float64) float64 {
	theta := math.Mod(math.Mod(thetaDeg, 360)+360, 360)
	best := math.Inf(1)
	for _, a := range c.SegmentBoundaryAngles {
		d := math.Abs(theta - a)
		if d > 180 {
			d = 360 - d
		}
		if d < best {
			best = d
		}
	}
	return best
}

// NormalizedRadius returns rho, the radius of an image-space point scaled
// so the outer-double boundary is rho=1, using the implicit-ellipse
// equation when ellipses are present and a polar fallback otherwise.
func (c *CameraCalibration) NormalizedRadius(p Point) float64 {
	if c.HasEllipses {
		return ellipseNormalizedRadius(c.OuterDouble, p)
	}
	d := math.Hypot(p.X-c.CenterX, p.Y-c.CenterY)
	return d / (RingRadiiMM.DoubleOuter)
}

// AngleDeg computes theta = atan2(dy,dx) expressed in the board convention
// (top = 0 degrees, clockwise positive), reduced to [0,360).
func (c *CameraCalibration) AngleDeg(p Point) float64 {
	dx := p.X - c.CenterX
	dy := p.Y - c.CenterY
	// Image y grows downward; "top" of the board is -y. atan2 measured from
	// -y axis, clockwise positive (x grows to the right under clockwise
	// rotation from -y).
	theta := math.Atan2(dx, -dy) * 180 / math.Pi
	return math.Mod(math.Mod(theta, 360)+360, 360)
}

func ellipseNormalizedRadius(e EllipseData, p Point) float64 {
	rot := -e.RotateDeg * math.Pi / 180
	dx := p.X - e.CenterX
	dy := p.Y - e.CenterY
	cosT, sinT := math.Cos(rot), math.Sin(rot)
	lx := dx*cosT - dy*sinT
	ly := dx*sinT + dy*cosT
	a := e.Width / 2
	b := e.Height / 2
	if a == 0 || b == 0 {
		return math.Inf(1)
	}
	return math.Hypot(lx/a, ly/b)
}

// WarpPoint maps an image-space point to the normalized board frame.
func (c *CameraCalibration) WarpPoint(p Point) Point {
	return c.tps.WarpPoint(p)
}

// WarpDirection maps a unit image-space direction at p to the board frame.
func (c *CameraCalibration) WarpDirection(p Point, vx, vy float64) (float64, float64) {
	return c.tps.WarpDirection(p, vx, vy)
}

// ellipseAngleSamples are the parametric angles (board convention, top=0,
// clockwise) sampled around each calibrated ring to build TPS control
// points. Eight per ring is enough to constrain the affine+RBF system
// without over-fitting to ellipse noise.
var ellipseAngleSamples = [8]float64{0, 45, 90, 135, 180, 225, 270, 315}

// ellipsePointAtBoardAngle approximates the image-space point where a ring
// at board angle thetaDeg crosses the calibrated ellipse: the ellipse's own
// local axes, rotated by its fitted RotateDeg, stand in for the true
// perspective-projected ring since the reference calibration only supplies
// axis-aligned ellipse fits per ring.
func ellipsePointAtBoardAngle(e EllipseData, thetaDeg float64) Point {
	t := thetaDeg * math.Pi / 180
	a, b := e.Width/2, e.Height/2
	lx := a * math.Sin(t)
	ly := -b * math.Cos(t)
	rot := e.RotateDeg * math.Pi / 180
	cosR, sinR := math.Cos(rot), math.Sin(rot)
	rx := lx*cosR - ly*sinR
	ry := lx*sinR + ly*cosR
	return Point{X: e.CenterX + rx, Y: e.CenterY + ry}
}

// boardTarget is the normalized board-frame point for a ring at the given
// normalized radius and board angle: outer-double radius is 1, segment 20's
// centerline is the positive-Y axis.
func boardTarget(rho, thetaDeg float64) Point {
	t := thetaDeg * math.Pi / 180
	return Point{X: rho * math.Sin(t), Y: rho * math.Cos(t)}
}

// buildCalibrationTPS assembles image-space/board-frame control point pairs
// from every calibrated ring and fits the warp that internal/engine uses to
// move per-camera detections into the shared board frame (spec.md's
// "camera-specific -> canonical" step).
func buildCalibrationTPS(cal *CameraCalibration) (*tpsWarp, bool) {
	type ring struct {
		e   EllipseData
		rho float64
	}
	rings := []ring{
		{cal.InnerBull, cal.innerBullNorm},
		{cal.OuterBull, cal.outerBullNorm},
		{cal.InnerTriple, cal.tripleInnerNorm},
		{cal.OuterTriple, cal.tripleOuterNorm},
		{cal.InnerDouble, cal.doubleInnerNorm},
		{cal.OuterDouble, cal.doubleOuterNorm},
	}

	ctrl := []Point{{X: cal.CenterX, Y: cal.CenterY}}
	target := []Point{{X: 0, Y: 0}}
	for _, r := range rings {
		if !r.e.valid() {
			continue
		}
		for _, theta := range ellipseAngleSamples {
			ctrl = append(ctrl, ellipsePointAtBoardAngle(r.e, theta))
			target = append(target, boardTarget(r.rho, theta))
		}
	}

	if len(ctrl) < 4 {
		return nil, false
	}
	spacing := cal.OuterDouble.Width / 20
	if spacing <= 0 {
		spacing = 1
	}
	lambda := 1e-3 * spacing * spacing
	return buildTPSWarp(ctrl, target, lambda)
}
