package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A cone-shaped component tapering from wide (y=0) to a single pixel
// (y=19) must localize its tip at the narrow end, not the wide one.
func taperingConePixels() []image2DPoint {
	var pts []image2DPoint
	for y := 0; y <= 19; y++ {
		width := 20 - y
		half := width / 2
		for x := -half; x <= half; x++ {
			pts = append(pts, image2DPoint{X: x, Y: y})
		}
	}
	return pts
}

func TestLocalizeTipPicksTaperingEnd(t *testing.T) {
	c := component{Pixels: taperingConePixels()}
	c.Area = len(c.Pixels)
	line := ShaftLine{Vx: 0, Vy: 1, X0: 0, Y0: 9.5}

	tipInt, tipSub, ok := localizeTip(c, line, DefaultTipConfig)

	require.True(t, ok)
	assert.Greater(t, tipSub.Y, 10.0, "tip should localize near the narrow (high-y) end")
	assert.Greater(t, tipInt.Y, 10.0)
}

func TestLocalizeTipRejectsEmptyComponent(t *testing.T) {
	_, _, ok := localizeTip(component{}, ShaftLine{Vx: 0, Vy: 1}, DefaultTipConfig)
	assert.False(t, ok)
}

func TestFitParabolaRecoversExactCoefficients(t *testing.T) {
	xs := []float64{-2, -1, 0, 1, 2}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 2*x*x - 3*x + 5
	}

	a, b, c, ok := fitParabola(xs, ys)

	require.True(t, ok)
	assert.InDelta(t, 2, a, 1e-6)
	assert.InDelta(t, -3, b, 1e-6)
	assert.InDelta(t, 5, c, 1e-6)
}
