package engine

import "math"

// Point is a 2D double-precision point, used for both image-space and
// board-frame coordinates depending on context.
type Point struct {
	X, Y float64
}

// EllipseData represents one concentric ring as it appears in a camera
// image: center, axes, and rotation (degrees).
type EllipseData struct {
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	RotateDeg float64 `json:"rotation_deg"`
}

func (e EllipseData) valid() bool {
	return e.Width > 0 && e.Height > 0
}

// Rect is an axis-aligned image-space rectangle.
type Rect struct {
	X0, Y0, X1, Y1 int
}

func (r Rect) empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }
func (r Rect) w() int      { return r.X1 - r.X0 }
func (r Rect) h() int      { return r.Y1 - r.Y0 }

// LineMethod tags which estimator produced a ShaftLine.
type LineMethod string

const (
	LineRidge  LineMethod = "ridge"
	LinePCA    LineMethod = "pca"
	LineRANSAC LineMethod = "ransac"
)

// ShaftLine is a 2D oriented line: unit direction (Vx,Vy) with Vy>=0 by
// convention, origin at the barrel centroid, plus fit diagnostics.
type ShaftLine struct {
	Vx, Vy       float64
	X0, Y0       float64
	Elongation   float64
	Method       LineMethod
	InlierRatio  float64
}

func normalizeDir(vx, vy float64) (float64, float64) {
	n := math.Hypot(vx, vy)
	if n == 0 {
		return 0, 1
	}
	vx, vy = vx/n, vy/n
	if vy < 0 {
		vx, vy = -vx, -vy
	}
	return vx, vy
}

// Zone is a scored zone on the board.
type Zone string

const (
	ZoneSingle    Zone = "single"
	ZoneDouble    Zone = "double"
	ZoneTriple    Zone = "triple"
	ZoneOuterBull Zone = "outer_bull"
	ZoneInnerBull Zone = "inner_bull"
	ZoneMiss      Zone = "miss"
)

// ScoreResult is one scorer's interpretation of a board-frame or
// image-frame point: segment, multiplier, zone and confidence.
type ScoreResult struct {
	Segment             int     `json:"segment"`
	Multiplier          int     `json:"multiplier"`
	Score               int     `json:"score"`
	Zone                Zone    `json:"zone"`
	BoundaryDistanceDeg float64 `json:"boundary_distance_deg"`
	Confidence          float64 `json:"confidence"`
}

func missScore() ScoreResult {
	return ScoreResult{Segment: 0, Multiplier: 0, Score: 0, Zone: ZoneMiss}
}

// MaskQuality summarizes how much signal a camera's motion mask carried.
type MaskQuality struct {
	NewPixels          int
	OldPixels          int
	MovedPixels        int
	StationaryPixels   int
	NewDartPixelRatio  float64
	ROIFallback        bool
}

// CameraResult is everything one camera's branch (C1-C6) produced.
type CameraResult struct {
	CameraID       string
	TipInt         Point
	TipSub         Point
	HasTip         bool
	Mask           MaskQuality
	Line           ShaftLine
	HasLine        bool
	Score          ScoreResult
	HasScore       bool
	BarrelPixels   int
	BarrelAspect   float64
	RidgeResidual  float64
	MeanThickness  float64
	ShaftLength    float64
	LineAngleDelta float64
	Err            ErrorKind

	// barrelMask is the selected candidate's rasterized mask, kept only long
	// enough for the caller to fold it into the board's accumulated
	// prevDartMasks; it never appears in the JSON-facing result.
	barrelMask *Bitmap
}

// Diagnostics carries informational flags from the triangulator that are
// not required to reproduce the final score.
type Diagnostics struct {
	RadialClamped        bool     `json:"radial_clamped"`
	SegmentLabelCorrected bool    `json:"segment_label_corrected"`
	CameraDropped         bool     `json:"camera_dropped"`
	DroppedCameraID       string   `json:"dropped_camera_id,omitempty"`
	WireAmbiguous         bool     `json:"wire_ambiguous"`
	WinnerPct             float64  `json:"winner_pct,omitempty"`
}

// Method tags how the final result was produced.
type Method string

const (
	MethodUnanimous           Method = "unanimous"
	MethodMajority            Method = "majority"
	MethodWeighted            Method = "weighted"
	MethodIntersection        Method = "intersection"
	MethodInsufficientCameras Method = "insufficient_cameras"
	MethodNoDetection         Method = "no_detection"
)

// IntersectionResult is the final, triangulated detection record.
type IntersectionResult struct {
	Segment      int                     `json:"segment"`
	Multiplier   int                     `json:"multiplier"`
	Score        int                     `json:"score"`
	Method       Method                  `json:"method"`
	Reason       string                  `json:"reason,omitempty"`
	Confidence   float64                 `json:"confidence"`
	Point        Point                   `json:"point"`
	Residual     float64                 `json:"residual"`
	PerCamera    map[string]CameraResult `json:"per_camera"`
	Diagnostics  Diagnostics             `json:"diagnostics"`
}

func noDetection(reason string) IntersectionResult {
	r := IntersectionResult{Method: MethodNoDetection, Reason: reason, PerCamera: map[string]CameraResult{}}
	return r
}
