package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unanimousScoreCamera(id string, tip Point) CameraResult {
	return CameraResult{
		CameraID: id,
		TipSub:   tip,
		HasTip:   true,
		Line:     ShaftLine{Vx: 0, Vy: 1, X0: tip.X, Y0: tip.Y - 10},
		HasLine:  true,
		Score:    ScoreResult{Segment: 20, Multiplier: 3, Score: 60, Zone: ZoneTriple, BoundaryDistanceDeg: 5, Confidence: 0.9},
		HasScore: true,
	}
}

func TestTriangulateUnanimousTriple20(t *testing.T) {
	cal := newTestCalibration()
	cals := map[string]*CameraCalibration{"cam1": cal, "cam2": cal, "cam3": cal}

	results := map[string]CameraResult{
		"cam1": unanimousScoreCamera("cam1", Point{X: 520, Y: 380}),
		"cam2": unanimousScoreCamera("cam2", Point{X: 470, Y: 390}),
		"cam3": unanimousScoreCamera("cam3", Point{X: 500, Y: 360}),
	}

	res := Triangulate(results, cals, DefaultTriangulateConfig)

	assert.Equal(t, MethodUnanimous, res.Method)
	assert.Equal(t, 20, res.Segment)
	assert.Equal(t, 3, res.Multiplier)
	assert.Equal(t, 60, res.Score)
	assert.False(t, res.Diagnostics.CameraDropped)
	assert.False(t, res.Diagnostics.WireAmbiguous)
	// spec.md §8 scenario 1: three cameras unanimously agreeing, each with
	// high individual confidence, must report confidence >= 0.9.
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
}

func TestTriangulateWireDisputeBetween20And1(t *testing.T) {
	cal := newTestCalibration()
	cals := map[string]*CameraCalibration{"cam1": cal, "cam2": cal, "cam3": cal}

	near20 := ScoreResult{Segment: 20, Multiplier: 1, Score: 20, Zone: ZoneSingle, BoundaryDistanceDeg: 0.4, Confidence: 0.8}
	near1 := ScoreResult{Segment: 1, Multiplier: 1, Score: 1, Zone: ZoneSingle, BoundaryDistanceDeg: 0.4, Confidence: 0.8}

	results := map[string]CameraResult{
		// The three shaft lines meet at one image point (500, 404), so no
		// camera stands out on residual and all three take part in the vote.
		"cam1": {CameraID: "cam1", TipSub: Point{505, 392}, HasTip: true, Line: ShaftLine{Vx: -5.0 / 13, Vy: 12.0 / 13, X0: 510, Y0: 380}, HasLine: true, Score: near20, HasScore: true},
		"cam2": {CameraID: "cam2", TipSub: Point{495, 392}, HasTip: true, Line: ShaftLine{Vx: 5.0 / 13, Vy: 12.0 / 13, X0: 490, Y0: 380}, HasLine: true, Score: near20, HasScore: true},
		"cam3": {CameraID: "cam3", TipSub: Point{500, 388}, HasTip: true, Line: ShaftLine{Vx: 0, Vy: 1, X0: 500, Y0: 378}, HasLine: true, Score: near1, HasScore: true},
	}

	res := Triangulate(results, cals, DefaultTriangulateConfig)

	assert.Equal(t, MethodMajority, res.Method)
	assert.Equal(t, 20, res.Segment)
	assert.Equal(t, 1, res.Multiplier)
	assert.True(t, res.Diagnostics.WireAmbiguous)
	assert.InDelta(t, 2.0/3.0, res.Diagnostics.WinnerPct, 1e-9)
}

func TestTriangulateInsufficientCamerasHalvesConfidence(t *testing.T) {
	cal := newTestCalibration()
	cals := map[string]*CameraCalibration{"cam1": cal, "cam2": cal}

	score := ScoreResult{Segment: 20, Multiplier: 3, Score: 60, Zone: ZoneTriple, Confidence: 0.8}
	results := map[string]CameraResult{
		"cam1": {CameraID: "cam1", TipSub: Point{520, 380}, HasTip: true, Line: ShaftLine{Vx: 0, Vy: 1}, HasLine: true, Score: score, HasScore: true},
		"cam2": {CameraID: "cam2", Err: ErrNoTip},
	}

	res := Triangulate(results, cals, DefaultTriangulateConfig)

	assert.Equal(t, MethodInsufficientCameras, res.Method)
	assert.Equal(t, 20, res.Segment)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	require.Len(t, res.PerCamera, 2)
}

func TestTriangulateUnanimousMiss(t *testing.T) {
	cal := newTestCalibration()
	cals := map[string]*CameraCalibration{"cam1": cal, "cam2": cal}

	miss := missScore()
	miss.BoundaryDistanceDeg = 9

	results := map[string]CameraResult{
		"cam1": {CameraID: "cam1", TipSub: Point{900, 900}, HasTip: true, Line: ShaftLine{Vx: 0, Vy: 1}, HasLine: true, Score: miss, HasScore: true},
		"cam2": {CameraID: "cam2", TipSub: Point{920, 880}, HasTip: true, Line: ShaftLine{Vx: 0.1, Vy: 0.99}, HasLine: true, Score: miss, HasScore: true},
	}

	res := Triangulate(results, cals, DefaultTriangulateConfig)

	assert.Equal(t, MethodUnanimous, res.Method)
	assert.Equal(t, 0, res.Segment)
	assert.Equal(t, 0, res.Multiplier)
	assert.Equal(t, 0, res.Score)
}

func TestTriangulateNoUsableCamerasIsNoDetection(t *testing.T) {
	cal := newTestCalibration()
	cals := map[string]*CameraCalibration{"cam1": cal}

	results := map[string]CameraResult{
		"cam1": {CameraID: "cam1", Err: ErrNoTip},
	}

	res := Triangulate(results, cals, DefaultTriangulateConfig)

	assert.Equal(t, MethodNoDetection, res.Method)
	assert.NotEmpty(t, res.Reason)
}

func TestMaybeDropCameraDropsClearOutlier(t *testing.T) {
	lines := []cameraLine{{id: "cam1"}, {id: "cam2"}, {id: "cam3"}}
	residuals := map[string][]float64{
		"cam1": {0.01, 0.01},
		"cam2": {0.01, 0.02},
		"cam3": {0.2, 0.2},
	}

	dropped, id := maybeDropCamera(lines, residuals, DefaultTriangulateConfig)

	assert.True(t, dropped)
	assert.Equal(t, "cam3", id)
}

func TestMaybeDropCameraKeepsAllWhenResidualsAreClose(t *testing.T) {
	lines := []cameraLine{{id: "cam1"}, {id: "cam2"}, {id: "cam3"}}
	residuals := map[string][]float64{
		"cam1": {0.01},
		"cam2": {0.012},
		"cam3": {0.013},
	}

	dropped, _ := maybeDropCamera(lines, residuals, DefaultTriangulateConfig)

	assert.False(t, dropped)
}

func TestMaybeDropCameraNeverDropsWithOnlyTwoCameras(t *testing.T) {
	lines := []cameraLine{{id: "cam1"}, {id: "cam2"}}
	residuals := map[string][]float64{
		"cam1": {0.01},
		"cam2": {1.0},
	}

	dropped, _ := maybeDropCamera(lines, residuals, DefaultTriangulateConfig)

	assert.False(t, dropped)
}
