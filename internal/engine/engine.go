package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CameraFrame is one camera's raw encoded frame for a single Detect or
// InitBoard call.
type CameraFrame struct {
	CameraID string
	Data     []byte
}

// Config bundles the tunables for every detection stage. Zero value is
// replaced with DefaultConfig by New.
type Config struct {
	Mask        MaskConfig
	Shape       ShapeConfig
	Line        LineFitConfig
	Tip         TipConfig
	Score       ScoreConfig
	Triangulate TriangulateConfig
}

// DefaultConfig is the configuration exercised by the package tests and the
// host service's default wiring.
var DefaultConfig = Config{
	Mask:        DefaultMaskConfig,
	Shape:       DefaultShapeConfig,
	Line:        DefaultLineFitConfig,
	Tip:         DefaultTipConfig,
	Score:       DefaultScoreConfig,
	Triangulate: DefaultTriangulateConfig,
}

// Engine is the single stateless-per-call root object: a read-only
// calibration map built once by Init, and a mutable, per-board-locked board
// cache registry. There is no other package-level mutable state.
type Engine struct {
	cfg Config

	mu          sync.RWMutex
	calibration map[string]*CameraCalibration
	initialized bool

	registry *boardRegistry
}

// New constructs an Engine with the given configuration. Init must be
// called once, successfully, before InitBoard/Detect/ClearBoard will do
// anything but return ErrNotInitializedErr.
func New(cfg Config) *Engine {
	if cfg == (Config{}) {
		cfg = DefaultConfig
	}
	return &Engine{cfg: cfg, registry: newBoardRegistry()}
}

// Init validates and builds the calibration for every camera in doc,
// replacing any calibration from a prior call. A rejected document leaves
// the Engine exactly as it was before the call.
func (e *Engine) Init(doc []byte) error {
	cal, err := ParseCalibrationDocument(doc)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calibration = cal
	e.initialized = true
	return nil
}

func (e *Engine) requireInitialized() (map[string]*CameraCalibration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, ErrNotInitializedErr
	}
	return e.calibration, nil
}

// InitBoard establishes a board's per-camera baseline (dart-free) frames.
// Cameras absent from baseline keep whatever reference they already had, if
// any; a board with no stored reference for a camera treats that camera as
// having no usable detection until a baseline is supplied.
func (e *Engine) InitBoard(boardID string, baseline []CameraFrame) error {
	cal, err := e.requireInitialized()
	if err != nil {
		return err
	}
	bc := e.registry.getOrCreate(boardID)
	for _, f := range baseline {
		c, ok := cal[f.CameraID]
		if !ok {
			continue
		}
		img, err := decodeFrame(f.Data)
		if err != nil {
			return fmt.Errorf("camera %s: %w", f.CameraID, err)
		}
		roi, _, _ := cropROI(img, c.BoardROI)
		bc.setReference(f.CameraID, roi)
	}
	return nil
}

// ClearBoard discards a board's cache entirely: reference frames and
// accumulated dart masks.
func (e *Engine) ClearBoard(boardID string) error {
	if _, err := e.requireInitialized(); err != nil {
		return err
	}
	e.registry.clear(boardID)
	return nil
}

// Detect runs the full pipeline: per-camera motion/shape/line/tip/score
// (C1-C6) fanned out with errgroup, then synchronous cross-camera
// triangulation (C7-C8). Per spec.md §4.1, an unrecognized board_id is not
// an error: a fresh, empty board cache is created lazily and simply drives
// every camera to no_dart_motion until InitBoard supplies a reference.
func (e *Engine) Detect(ctx context.Context, boardID string, frames []CameraFrame) (IntersectionResult, error) {
	cal, err := e.requireInitialized()
	if err != nil {
		return IntersectionResult{}, err
	}
	bc := e.registry.getOrCreate(boardID)

	results := make([]CameraResult, len(frames))
	g, _ := errgroup.WithContext(ctx)
	for i, f := range frames {
		i, f := i, f
		g.Go(func() error {
			results[i] = e.detectOneCamera(cal, bc, f)
			return nil
		})
	}
	_ = g.Wait()

	perCamera := make(map[string]CameraResult, len(results))
	for _, r := range results {
		if r.CameraID == "" {
			continue
		}
		perCamera[r.CameraID] = r
	}

	res := Triangulate(perCamera, cal, e.cfg.Triangulate)

	for _, r := range results {
		if r.HasTip && r.barrelMask != nil {
			bc.accumulateMask(r.CameraID, r.barrelMask)
		}
	}

	return res, nil
}

// detectOneCamera runs C1-C6 for a single camera frame and never returns an
// error: a failure at any stage degrades to a CameraResult carrying an
// ErrorKind, so one bad camera never aborts the others.
func (e *Engine) detectOneCamera(cal map[string]*CameraCalibration, bc *BoardCache, f CameraFrame) CameraResult {
	r := CameraResult{CameraID: f.CameraID}

	c, ok := cal[f.CameraID]
	if !ok {
		r.Err = ErrInternal
		return r
	}

	img, err := decodeFrame(f.Data)
	if err != nil {
		r.Err = ErrDecodeFailed
		return r
	}
	roi, roiBounds, roiFallback := cropROI(img, c.BoardROI)

	ref, haveRef := bc.reference(f.CameraID)
	if !haveRef {
		r.Err = ErrNoDartMotion
		return r
	}
	prevMask := bc.prevMask(f.CameraID)

	mask, quality := buildMotionMask(roi, ref, prevMask, e.cfg.Mask)
	quality.ROIFallback = roiFallback
	r.Mask = quality
	if quality.NewDartPixelRatio <= e.cfg.Mask.MinNewDartPixelRatio {
		r.Err = ErrNoDartMotion
		return r
	}

	comps := labelComponents(mask)
	dartRegion, found := selectDartRegion(comps, e.cfg.Shape)
	if !found {
		r.Err = ErrNoDartMotion
		return r
	}

	// Per spec.md §4.4, the barrel candidate (a resolution-scaled,
	// thickness-thresholded subset of the dart region) feeds the line fit;
	// the full dart region stays available for tip localization, which must
	// still see the flight end to anchor against.
	widthCap := e.cfg.Shape.BarrelWidthCap * c.ResolutionScale
	barrel, barrelOK := extractBarrelCandidate(dartRegion, widthCap)
	if !barrelOK {
		r.Err = ErrNoLine
		return r
	}
	r.BarrelPixels = barrel.Area
	r.BarrelAspect = barrelAspect(barrel)

	line, ok := fitShaftLine(barrel, e.cfg.Line)
	if !ok {
		r.Err = ErrNoLine
		return r
	}
	r.Line = line
	r.HasLine = true
	r.RidgeResidual = ridgeResidual(barrel, line)
	barrelThickness, _ := thicknessProfile(barrel, line)
	_, regionLength := thicknessProfile(dartRegion, line)
	r.MeanThickness = barrelThickness
	r.ShaftLength = regionLength

	tipInt, tipSub, ok := localizeTip(dartRegion, line, e.cfg.Tip)
	if !ok {
		r.Err = ErrNoTip
		return r
	}
	// Translate back from ROI-local to full-frame image coordinates so the
	// calibration's angle/radius/TPS all operate in the space they were fit
	// against. Use the bounds cropROI actually produced, not the
	// calibration's static BoardROI, since a fallback crop uses the full
	// frame instead.
	offset := Point{X: float64(roiBounds.X0), Y: float64(roiBounds.Y0)}
	r.TipInt = Point{X: tipInt.X + offset.X, Y: tipInt.Y + offset.Y}
	r.TipSub = Point{X: tipSub.X + offset.X, Y: tipSub.Y + offset.Y}
	r.HasTip = true

	r.Score = scoreTip(c, r.TipSub, r.Mask, r.Line.InlierRatio, e.cfg.Score)
	r.HasScore = true
	r.barrelMask = dartRegion.toBitmap(mask.W, mask.H)

	return r
}
