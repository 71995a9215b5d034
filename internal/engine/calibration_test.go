package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCalibrationDocumentRoundTrip(t *testing.T) {
	doc := sampleCalibrationDoc(t)

	cals, err := ParseCalibrationDocument(doc)

	require.NoError(t, err)
	require.Contains(t, cals, "cam1")
	assert.True(t, cals["cam1"].HasEllipses)
}

func TestParseCalibrationDocumentRejectsEmptyDocument(t *testing.T) {
	_, err := ParseCalibrationDocument([]byte(`{}`))
	assert.Error(t, err)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, ErrEmptyCalibration, initErr.Kind)
}

func TestParseCalibrationDocumentRejectsNonIncreasingAngles(t *testing.T) {
	raw := map[string]rawCalibration{
		"cam1": {
			SegmentBoundaryAngles: []float64{9, 27, 20, 63, 81, 99, 117, 135, 153, 171, 189, 207, 225, 243, 261, 279, 297, 315, 333, 351},
			ImageHeight:           1080,
			OuterDouble:           &rawEllipse{CenterX: 500, CenterY: 500, Width: 340, Height: 340},
			OuterBull:             &rawEllipse{CenterX: 500, CenterY: 500, Width: 31.8, Height: 31.8},
		},
	}
	doc, _ := json.Marshal(raw)

	_, err := ParseCalibrationDocument(doc)
	assert.Error(t, err)
}

func TestParseCalibrationDocumentRejectsMissingEllipses(t *testing.T) {
	var angles [20]float64
	for i := range angles {
		angles[i] = 9 + float64(i)*18
	}
	raw := map[string]rawCalibration{
		"cam1": {SegmentBoundaryAngles: angles[:], ImageHeight: 1080},
	}
	doc, _ := json.Marshal(raw)

	_, err := ParseCalibrationDocument(doc)
	require.Error(t, err)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, ErrMissingEllipses, initErr.Kind)
}

func sampleCalibrationDoc(t *testing.T) []byte {
	t.Helper()
	var angles [20]float64
	for i := range angles {
		angles[i] = 9 + float64(i)*18
	}
	rc := rawCalibration{
		SegmentBoundaryAngles: angles[:],
		ImageHeight:           1080,
		OuterDouble:           &rawEllipse{CenterX: 500, CenterY: 500, Width: 340, Height: 340},
		OuterBull:             &rawEllipse{CenterX: 500, CenterY: 500, Width: 31.8, Height: 31.8},
	}
	rc.Center.X, rc.Center.Y = 500, 500
	doc, err := json.Marshal(map[string]rawCalibration{"cam1": rc})
	require.NoError(t, err)
	return doc
}

// BoundaryDistanceDeg must be symmetric around a wire and bounded to
// [0, 9] (half an 18-degree wedge), regardless of which side of the wire
// the angle sits on.
func TestBoundaryDistanceDegSymmetricAroundWire(t *testing.T) {
	cal := newTestCalibration()

	wire := cal.SegmentBoundaryAngles[0] // 9 degrees
	below := cal.BoundaryDistanceDeg(wire - 2)
	above := cal.BoundaryDistanceDeg(wire + 2)

	assert.InDelta(t, below, above, 1e-9)
	assert.GreaterOrEqual(t, below, 0.0)
	assert.LessOrEqual(t, below, 9.0)
}

func TestBoundaryDistanceDegZeroOnWire(t *testing.T) {
	cal := newTestCalibration()
	d := cal.BoundaryDistanceDeg(cal.SegmentBoundaryAngles[5])
	assert.InDelta(t, 0, d, 1e-9)
}

func TestSegmentAtCoversAllTwentySegmentsExactlyOnce(t *testing.T) {
	cal := newTestCalibration()

	seen := make(map[int]bool)
	for i := 0; i < 20; i++ {
		// Sample the midpoint of each wedge.
		lo := cal.SegmentBoundaryAngles[(i+19)%20]
		hi := cal.SegmentBoundaryAngles[i]
		if i == 0 {
			lo -= 360
		}
		mid := (lo + hi) / 2
		seg := cal.SegmentAt(mid)
		seen[seg] = true
	}
	assert.Len(t, seen, 20)
	for s := 1; s <= 20; s++ {
		assert.True(t, seen[s], "segment %d never produced", s)
	}
}

func TestWarpPointMapsBoardCenterNearOrigin(t *testing.T) {
	cal := newTestCalibration()
	p := cal.WarpPoint(Point{X: cal.CenterX, Y: cal.CenterY})
	assert.InDelta(t, 0, p.X, 0.2)
	assert.InDelta(t, 0, p.Y, 0.2)
}

func TestWarpPointMapsOuterDoubleRingNearUnitRadius(t *testing.T) {
	cal := newTestCalibration()
	top := Point{X: cal.CenterX, Y: cal.CenterY - cal.OuterDouble.Width/2}

	warped := cal.WarpPoint(top)
	rho := warped.X*warped.X + warped.Y*warped.Y

	assert.InDelta(t, 1.0, rho, 0.1)
}
