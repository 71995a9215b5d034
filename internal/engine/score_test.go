package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// perfectMask and perfectLineRatio hold the mask-quality/line-fit terms at
// their ceiling so tests that exercise the angular/radial behavior aren't
// also dragged down by the newer confidence signals.
var perfectMask = MaskQuality{NewDartPixelRatio: 1.0}

const perfectLineRatio = 1.0

func TestScoreTipRanges(t *testing.T) {
	cal := newTestCalibration()

	tip := Point{X: cal.CenterX, Y: cal.CenterY}
	res := scoreTip(cal, tip, perfectMask, perfectLineRatio, DefaultScoreConfig)

	assert.Equal(t, ZoneInnerBull, res.Zone)
	assert.Equal(t, 50, res.Score)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestScoreTipMissIsAlwaysZeroScoreZeroConfidence(t *testing.T) {
	cal := newTestCalibration()

	tip := Point{X: cal.CenterX + 1000, Y: cal.CenterY}
	res := scoreTip(cal, tip, perfectMask, perfectLineRatio, DefaultScoreConfig)

	assert.Equal(t, ZoneMiss, res.Zone)
	assert.Equal(t, 0, res.Segment)
	assert.Equal(t, 0, res.Multiplier)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0.0, res.Confidence)
}

// A tip sitting exactly on the board's top centerline (segment 20 under this
// fixture's calibration) at a radius comfortably inside the triple ring
// should score a clean triple 20, matching the calibration's own
// SegmentAt/AngleDeg for that same point.
func TestScoreTipAgreesWithSegmentAt(t *testing.T) {
	cal := newTestCalibration()

	tripleRadius := (cal.tripleInnerNorm + cal.tripleOuterNorm) / 2 * (cal.OuterDouble.Width / 2)
	tip := Point{X: cal.CenterX, Y: cal.CenterY - tripleRadius}

	res := scoreTip(cal, tip, perfectMask, perfectLineRatio, DefaultScoreConfig)
	theta := cal.AngleDeg(tip)

	assert.Equal(t, ZoneTriple, res.Zone)
	assert.Equal(t, 3, res.Multiplier)
	assert.Equal(t, cal.SegmentAt(theta), res.Segment)
}

func TestWireConfidenceIsBoundedAndMonotoneInWireDistance(t *testing.T) {
	cfg := DefaultScoreConfig

	onWire := wireConfidence(0, 0, perfectMask, perfectLineRatio, cfg)
	nearWire := wireConfidence(cfg.AngularMarginDeg/4, cfg.RadialMarginNorm, perfectMask, perfectLineRatio, cfg)
	farFromWire := wireConfidence(cfg.AngularMarginDeg*10, cfg.RadialMarginNorm*10, perfectMask, perfectLineRatio, cfg)

	assert.Equal(t, 0.0, onWire)
	assert.Equal(t, 1.0, farFromWire)
	assert.Less(t, onWire, nearWire)
	assert.LessOrEqual(t, nearWire, farFromWire)
}

// Confidence must also be monotone increasing in mask quality and shaft-line
// inlier ratio, per spec.md §4.7 — a poor mask or a poorly-fit line caps
// confidence even when the tip lands dead center of a segment.
func TestWireConfidenceIsMonotoneInMaskQualityAndLineFit(t *testing.T) {
	cfg := DefaultScoreConfig

	poorMask := MaskQuality{NewDartPixelRatio: 0.01}
	poorConfidence := wireConfidence(cfg.AngularMarginDeg*10, cfg.RadialMarginNorm*10, poorMask, perfectLineRatio, cfg)
	goodConfidence := wireConfidence(cfg.AngularMarginDeg*10, cfg.RadialMarginNorm*10, perfectMask, perfectLineRatio, cfg)
	assert.Less(t, poorConfidence, goodConfidence)

	poorLine := wireConfidence(cfg.AngularMarginDeg*10, cfg.RadialMarginNorm*10, perfectMask, 0.05, cfg)
	goodLine := wireConfidence(cfg.AngularMarginDeg*10, cfg.RadialMarginNorm*10, perfectMask, perfectLineRatio, cfg)
	assert.Less(t, poorLine, goodLine)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-5))
	assert.Equal(t, 1.0, clamp01(5))
	assert.Equal(t, 0.5, clamp01(0.5))
}
