package device

// OpenHandLandmarks returns a right hand facing the camera with every finger
// extended, in MediaPipe image coordinates.
func OpenHandLandmarks() Landmarks {
	lm := Landmarks{Handedness: "Right", Score: 0.95}

	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	lm.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	lm.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	lm.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	lm.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	lm.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68}
	lm.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55}
	lm.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45}
	lm.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35}

	lm.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66}
	lm.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52}
	lm.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40}
	lm.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28}

	lm.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68}
	lm.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55}
	lm.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45}
	lm.Points[RingTip] = Point3D{X: 0.42, Y: 0.35}

	lm.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70}
	lm.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60}
	lm.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50}
	lm.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42}

	return lm
}

// PinchLandmarks returns the open hand with the thumb tip touching the index tip.
func PinchLandmarks() Landmarks {
	lm := OpenHandLandmarks()
	lm.Points[ThumbIP] = Point3D{X: 0.64, Y: 0.50, Z: 0.02}
	lm.Points[ThumbTip] = Point3D{X: 0.59, Y: 0.37, Z: 0.01}
	return lm
}

// PointingLandmarks returns a hand with only the index finger extended.
func PointingLandmarks() Landmarks {
	lm := OpenHandLandmarks()
	curl(&lm, MiddlePIP, MiddleDIP, MiddleTip, 0.50)
	curl(&lm, RingPIP, RingDIP, RingTip, 0.45)
	curl(&lm, PinkyPIP, PinkyDIP, PinkyTip, 0.40)
	return lm
}

// FistLandmarks returns a closed hand with the thumb up.
func FistLandmarks() Landmarks {
	lm := PointingLandmarks()
	curl(&lm, IndexPIP, IndexDIP, IndexTip, 0.55)
	lm.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50}
	lm.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35}
	return lm
}

// curl folds a finger back toward the palm.
func curl(lm *Landmarks, pip, dip, tip int, x float64) {
	lm.Points[pip] = Point3D{X: x, Y: 0.60, Z: -0.05}
	lm.Points[dip] = Point3D{X: x - 0.02, Y: 0.66, Z: -0.04}
	lm.Points[tip] = Point3D{X: x - 0.03, Y: 0.72, Z: -0.02}
}
