package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectComponent(x0, y0, x1, y1 int) component {
	c := component{Bounds: Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.Pixels = append(c.Pixels, image2DPoint{X: x, Y: y})
		}
	}
	c.Area = len(c.Pixels)
	return c
}

// selectDartRegion must reject round blobs (aspect below MinAspect) and
// blobs outside the area gate, then pick the largest surviving elongated
// shape — a round noise blob never outranks a genuine dart-shaped candidate
// no matter its size.
func TestSelectDartRegionPicksLargestElongatedSurvivor(t *testing.T) {
	cfg := DefaultShapeConfig

	roundBlob := rectComponent(0, 0, 20, 20)   // aspect 1, rejected regardless of area
	smallShaft := rectComponent(30, 0, 33, 20) // 3x20, aspect ~6.7, area 60
	largerShaft := rectComponent(40, 0, 44, 40) // 4x40, aspect 10, area 160
	tooBig := rectComponent(0, 50, 100, 150)   // area 10000 > MaxArea, rejected

	comps := []component{roundBlob, smallShaft, largerShaft, tooBig}

	best, found := selectDartRegion(comps, cfg)

	require.True(t, found)
	assert.Equal(t, largerShaft.Area, best.Area)
}

func TestSelectDartRegionNoneFoundWhenAllFailGates(t *testing.T) {
	cfg := DefaultShapeConfig
	onlyRound := []component{rectComponent(0, 0, 10, 10)}

	_, found := selectDartRegion(onlyRound, cfg)

	assert.False(t, found)
}

// extractBarrelCandidate must narrow a dart region to the thin part of its
// shaft: a region with a wide "flight" block fused to a narrow "barrel"
// column keeps only the narrow buckets once widthCap is tighter than the
// flight's cross-section.
func TestExtractBarrelCandidateDropsWideFlightBuckets(t *testing.T) {
	var region component
	for y := 0; y < 30; y++ {
		for x := 0; x < 2; x++ {
			region.Pixels = append(region.Pixels, image2DPoint{X: x, Y: y}) // narrow barrel, width 2
		}
	}
	for y := 30; y < 40; y++ {
		for x := -5; x < 7; x++ {
			region.Pixels = append(region.Pixels, image2DPoint{X: x, Y: y}) // wide flight, width 12
		}
	}
	region.Area = len(region.Pixels)
	region.Bounds = Rect{X0: -5, Y0: 0, X1: 7, Y1: 40}

	barrel, ok := extractBarrelCandidate(region, 4)

	require.True(t, ok)
	assert.Less(t, barrel.Area, region.Area)
	for _, p := range barrel.Pixels {
		assert.Less(t, p.Y, 30, "flight pixels must not survive the width cap")
	}
}

func TestBarrelAspectMatchesBoundsRatio(t *testing.T) {
	c := rectComponent(0, 0, 4, 20)
	assert.InDelta(t, 5.0, barrelAspect(c), 1e-9)
}

func TestRidgeResidualZeroForPerfectlyColinearPixels(t *testing.T) {
	var c component
	for y := 0; y < 20; y++ {
		c.Pixels = append(c.Pixels, image2DPoint{X: 10, Y: y})
	}
	c.Area = len(c.Pixels)
	line := ShaftLine{Vx: 0, Vy: 1, X0: 10, Y0: 9.5}

	assert.InDelta(t, 0, ridgeResidual(c, line), 1e-9)
}
