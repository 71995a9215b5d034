package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// normalizeDir must enforce the Vy>=0 shaft-line convention regardless of
// which quadrant the raw direction points into.
func TestNormalizeDirEnforcesVyNonNegative(t *testing.T) {
	cases := []struct{ vx, vy float64 }{
		{1, 1}, {1, -1}, {-1, 1}, {-1, -1}, {0, -5}, {0, 5}, {3, 0}, {-3, 0},
	}
	for _, c := range cases {
		nx, ny := normalizeDir(c.vx, c.vy)
		assert.GreaterOrEqual(t, ny, 0.0, "vx=%v vy=%v", c.vx, c.vy)
		assert.InDelta(t, 1.0, nx*nx+ny*ny, 1e-9, "not unit: vx=%v vy=%v", c.vx, c.vy)
	}
}

func TestNormalizeDirZeroVectorDefaultsToDown(t *testing.T) {
	nx, ny := normalizeDir(0, 0)
	assert.Equal(t, 0.0, nx)
	assert.Equal(t, 1.0, ny)
}

func verticalShaftPixels() []image2DPoint {
	var pts []image2DPoint
	for y := 0; y < 30; y++ {
		pts = append(pts, image2DPoint{X: 10, Y: y})
		if y%5 == 0 {
			pts = append(pts, image2DPoint{X: 11, Y: y})
		}
	}
	return pts
}

func TestPCAAxisOnVerticalShaftIsElongatedAndDownward(t *testing.T) {
	vx, vy, elongation, _, _ := pcaAxis(verticalShaftPixels())

	assert.Greater(t, elongation, 1.5)
	assert.GreaterOrEqual(t, vy, 0.0)
	assert.InDelta(t, 1.0, vx*vx+vy*vy, 1e-9)
}

func TestRidgeLineFollowsVerticalShaft(t *testing.T) {
	vx, vy, x0, y0 := ridgeLine(verticalShaftPixels(), DefaultLineFitConfig.RidgeLambda)

	assert.GreaterOrEqual(t, vy, 0.0)
	assert.InDelta(t, 1.0, vx*vx+vy*vy, 1e-9)
	assert.Greater(t, x0, 9.0)
	assert.Greater(t, y0, 0.0)
}

func TestRansacLineOnVerticalShaftHasHighInlierRatio(t *testing.T) {
	vx, vy, _, _, inlierRatio := ransacLine(verticalShaftPixels(), DefaultLineFitConfig.RANSACThreshold)

	assert.GreaterOrEqual(t, vy, 0.0)
	assert.InDelta(t, 1.0, vx*vx+vy*vy, 1e-9)
	assert.Greater(t, inlierRatio, 0.8)
}

func TestFitShaftLineRejectsTooFewPixels(t *testing.T) {
	c := component{Pixels: []image2DPoint{{X: 0, Y: 0}, {X: 1, Y: 1}}, Area: 2}
	_, ok := fitShaftLine(c, DefaultLineFitConfig)
	assert.False(t, ok)
}

func TestFitShaftLineRejectsRoundBlob(t *testing.T) {
	var pts []image2DPoint
	for y := -5; y <= 5; y++ {
		for x := -5; x <= 5; x++ {
			if x*x+y*y <= 25 {
				pts = append(pts, image2DPoint{X: x + 20, Y: y + 20})
			}
		}
	}
	c := component{Pixels: pts, Area: len(pts), Bounds: Rect{X0: 15, Y0: 15, X1: 26, Y1: 26}}

	_, ok := fitShaftLine(c, DefaultLineFitConfig)
	assert.False(t, ok)
}

func TestFitShaftLineOnVerticalShaftSatisfiesConvention(t *testing.T) {
	c := component{Pixels: verticalShaftPixels(), Area: len(verticalShaftPixels()), Bounds: Rect{X0: 10, Y0: 0, X1: 12, Y1: 30}}

	line, ok := fitShaftLine(c, DefaultLineFitConfig)

	require.True(t, ok)
	assert.GreaterOrEqual(t, line.Vy, 0.0)
	assert.InDelta(t, 1.0, line.Vx*line.Vx+line.Vy*line.Vy, 1e-6)
	assert.Greater(t, line.Elongation, 1.0)
}
