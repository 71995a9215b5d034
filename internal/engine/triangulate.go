package engine

import (
	"math"
	"sort"
)

// TriangulateConfig tunes the cross-camera consensus step: how far a pair's
// intersection may sit from the overall consensus point before it drags
// confidence down, and how aggressively a single disagreeing camera gets
// dropped.
type TriangulateConfig struct {
	MinCameras       int
	ResidualScale    float64 // board-frame units; outer double ring has radius 1
	DropRatio        float64 // a camera's mean pair residual must exceed this multiple of the next-worst to be dropped
	WireAmbiguousDeg float64 // per-camera BoundaryDistanceDeg below this counts as "near a wire" for voting purposes
	// UnanimityConfidenceThreshold is the per-camera confidence every
	// participating camera must clear for a unanimous segment/multiplier
	// agreement to short-circuit straight to Confidence = min(participants),
	// per spec.md §4.9. Below it, unanimous agreement still wins the
	// segment but falls through to the blended confidence formula.
	UnanimityConfidenceThreshold float64
}

var DefaultTriangulateConfig = TriangulateConfig{
	MinCameras:                   2,
	ResidualScale:                0.05,
	DropRatio:                    1.8,
	WireAmbiguousDeg:             1.5,
	UnanimityConfidenceThreshold: 0.6,
}

type cameraLine struct {
	id        string
	origin    Point
	dx, dy    float64
	score     ScoreResult
}

// Triangulate fans the per-camera results (C1-C6) into the final scored
// result (C7-C8): pairwise line intersection in the shared board frame,
// outlier camera dropping, segment-agreement voting with wire-boundary tie
// breaking, and the blended confidence score.
func Triangulate(results map[string]CameraResult, cals map[string]*CameraCalibration, cfg TriangulateConfig) IntersectionResult {
	var usable []cameraLine
	perCamera := make(map[string]CameraResult, len(results))
	for id, r := range results {
		perCamera[id] = r
		if !r.HasLine || !r.HasTip || !r.HasScore {
			continue
		}
		cal, ok := cals[id]
		if !ok {
			continue
		}
		o := cal.WarpPoint(r.TipSub)
		dvx, dvy := cal.WarpDirection(r.TipSub, r.Line.Vx, r.Line.Vy)
		usable = append(usable, cameraLine{id: id, origin: o, dx: dvx, dy: dvy, score: r.Score})
	}

	if len(usable) == 0 {
		res := noDetection("no camera produced a usable tip")
		res.PerCamera = perCamera
		return res
	}
	if len(usable) < cfg.MinCameras {
		res := IntersectionResult{
			Method:    MethodInsufficientCameras,
			Reason:    "fewer than the minimum number of cameras detected a tip",
			PerCamera: perCamera,
		}
		single := usable[0]
		res.Segment = single.score.Segment
		res.Multiplier = single.score.Multiplier
		res.Score = single.score.Score
		res.Point = single.origin
		res.Confidence = single.score.Confidence * 0.5
		return res
	}

	points, residualByCam := pairwiseConsensus(usable)
	consensus := centroidOf(points)

	dropped, droppedID := maybeDropCamera(usable, residualByCam, cfg)
	if dropped {
		filtered := usable[:0:0]
		for _, u := range usable {
			if u.id != droppedID {
				filtered = append(filtered, u)
			}
		}
		usable = filtered
		if len(usable) < cfg.MinCameras {
			res := noDetection("dropping the outlier camera left too few cameras")
			res.PerCamera = perCamera
			res.Diagnostics = Diagnostics{CameraDropped: true, DroppedCameraID: droppedID}
			return res
		}
		points, residualByCam = pairwiseConsensus(usable)
		consensus = centroidOf(points)
	}

	meanResidual := meanOf(residualDistances(points, consensus))
	pairConfidence := clamp01(1 - meanResidual/cfg.ResidualScale)

	segment, multiplier, method, wireAmbiguous, winnerPct := voteSegment(usable, cfg)

	medianConf := medianConfidence(usable)
	wireVoteMargin := 1.0
	if wireAmbiguous {
		wireVoteMargin = winnerPct
	}
	confidence := 0.5*pairConfidence + 0.3*medianConf + 0.2*wireVoteMargin

	// spec.md §4.9: when every participating camera agrees on segment and
	// multiplier AND each individually clears UnanimityConfidenceThreshold,
	// the blended formula is bypassed: confidence is simply the weakest
	// participant, since unanimity plus high per-camera confidence is
	// already as strong a signal as the detector produces.
	if method == MethodUnanimous {
		minConf := math.Inf(1)
		for _, u := range usable {
			if u.score.Confidence < minConf {
				minConf = u.score.Confidence
			}
		}
		if minConf > cfg.UnanimityConfidenceThreshold {
			confidence = minConf
		}
	}

	res := IntersectionResult{
		Segment:    segment,
		Multiplier: multiplier,
		Score:      segment * multiplier,
		Method:     method,
		Confidence: clamp01(confidence),
		Point:      consensus,
		Residual:   meanResidual,
		PerCamera:  perCamera,
		Diagnostics: Diagnostics{
			CameraDropped:   dropped,
			DroppedCameraID: droppedID,
			WireAmbiguous:   wireAmbiguous,
			WinnerPct:       winnerPct,
		},
	}
	return res
}

// pairwiseConsensus intersects every pair of board-frame lines and returns
// the intersection points plus, per camera, the list of residual distances
// from each of that camera's pair intersections to the running centroid.
func pairwiseConsensus(lines []cameraLine) ([]Point, map[string][]float64) {
	var points []Point
	type pairPoint struct {
		a, b string
		p    Point
	}
	var pairs []pairPoint
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			p, ok := intersectLines(lines[i], lines[j])
			if !ok {
				continue
			}
			points = append(points, p)
			pairs = append(pairs, pairPoint{a: lines[i].id, b: lines[j].id, p: p})
		}
	}
	if len(points) == 0 {
		// All pairs parallel or degenerate: fall back to averaging origins.
		for _, l := range lines {
			points = append(points, l.origin)
		}
	}
	centroid := centroidOf(points)

	byCam := make(map[string][]float64)
	for _, pp := range pairs {
		d := math.Hypot(pp.p.X-centroid.X, pp.p.Y-centroid.Y)
		byCam[pp.a] = append(byCam[pp.a], d)
		byCam[pp.b] = append(byCam[pp.b], d)
	}
	return points, byCam
}

func intersectLines(a, b cameraLine) (Point, bool) {
	det := a.dx*(-b.dy) - (-b.dx)*a.dy
	if math.Abs(det) < 1e-9 {
		return Point{}, false
	}
	ex := b.origin.X - a.origin.X
	ey := b.origin.Y - a.origin.Y
	t := (ex*(-b.dy) - (-b.dx)*ey) / det
	return Point{X: a.origin.X + t*a.dx, Y: a.origin.Y + t*a.dy}, true
}

func centroidOf(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point{X: sx / n, Y: sy / n}
}

func residualDistances(pts []Point, ref Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = math.Hypot(p.X-ref.X, p.Y-ref.Y)
	}
	return out
}

func meanOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var s float64
	for _, v := range vs {
		s += v
	}
	return s / float64(len(vs))
}

// maybeDropCamera drops a single camera if its mean pairwise residual
// clearly stands out from the rest, per cfg.DropRatio. Only ever drops one
// camera — the design favors a conservative, explainable clamp over
// iterative outlier removal.
func maybeDropCamera(lines []cameraLine, residualByCam map[string][]float64, cfg TriangulateConfig) (bool, string) {
	if len(lines) < 3 {
		return false, ""
	}
	type camMean struct {
		id   string
		mean float64
	}
	var means []camMean
	for id, rs := range residualByCam {
		means = append(means, camMean{id: id, mean: meanOf(rs)})
	}
	sort.Slice(means, func(i, j int) bool { return means[i].mean > means[j].mean })
	if len(means) < 2 {
		return false, ""
	}
	worst, next := means[0], means[1]
	if next.mean < 1e-9 {
		return false, ""
	}
	if worst.mean >= cfg.DropRatio*next.mean {
		return true, worst.id
	}
	return false, ""
}

// voteSegment resolves a final segment/multiplier across cameras: unanimous
// if every camera agrees, majority if one segment/multiplier holds more than
// half of the confidence-weighted vote, and weighted otherwise. Disagreements where the losing
// cameras are all within WireAmbiguousDeg of a segment wire are flagged as
// wire-ambiguous so the caller can fold the winning weight share into the
// confidence blend.
func voteSegment(lines []cameraLine, cfg TriangulateConfig) (segment, multiplier int, method Method, wireAmbiguous bool, winnerPct float64) {
	type key struct {
		seg, mult int
	}
	weights := make(map[key]float64)
	nearWire := make(map[key]bool)
	var totalWeight float64
	for _, l := range lines {
		k := key{l.score.Segment, l.score.Multiplier}
		w := math.Max(l.score.Confidence, 0.05)
		weights[k] += w
		totalWeight += w
		if l.score.BoundaryDistanceDeg <= cfg.WireAmbiguousDeg {
			nearWire[k] = true
		}
	}

	var bestKey key
	var bestWeight float64
	for k, w := range weights {
		if w > bestWeight {
			bestWeight = w
			bestKey = k
		}
	}

	if len(weights) == 1 {
		method = MethodUnanimous
	} else if bestWeight > totalWeight/2 {
		method = MethodMajority
	} else {
		method = MethodWeighted
	}

	if len(weights) > 1 {
		wireAmbiguous = true
		for k := range weights {
			if k != bestKey && !nearWire[k] {
				wireAmbiguous = false
				break
			}
		}
	}
	if totalWeight > 0 {
		winnerPct = bestWeight / totalWeight
	}
	return bestKey.seg, bestKey.mult, method, wireAmbiguous, winnerPct
}

func medianConfidence(lines []cameraLine) float64 {
	vals := make([]float64, len(lines))
	for i, l := range lines {
		vals[i] = l.score.Confidence
	}
	sort.Float64s(vals)
	n := len(vals)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
