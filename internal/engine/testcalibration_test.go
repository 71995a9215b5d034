package engine

// newTestCalibration builds a synthetic but internally consistent
// CameraCalibration for one camera: a circular board centered at (500,500)
// with segment 20 on the top centerline (board angle 0) and standard
// 18-degree wedges, so geometry tests don't need a real calibration file.
func newTestCalibration() *CameraCalibration {
	var angles [20]float64
	for i := range angles {
		angles[i] = 9 + float64(i)*18
	}
	rc := rawCalibration{
		SegmentBoundaryAngles: angles[:],
		Segment20Index:        0,
		ImageHeight:           1080,
		OuterDouble:           &rawEllipse{CenterX: 500, CenterY: 500, Width: 340, Height: 340},
		OuterBull:             &rawEllipse{CenterX: 500, CenterY: 500, Width: 31.8, Height: 31.8},
	}
	rc.Center.X, rc.Center.Y = 500, 500

	cal, err := buildCalibration(rc)
	if err != nil {
		panic(err)
	}
	return cal
}
