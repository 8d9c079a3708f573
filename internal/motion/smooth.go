// Package motion provides the damping, interpolation and rotation helpers
// shared by the hand and gaze filters.
//
// Coordinates follow a left-handed, y-up frame: +X right, +Y up, +Z forward.
package motion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minSmoothTime keeps the spring constant finite for tiny smooth times.
const minSmoothTime = 1e-4

// Up, Forward and Right are the unit axes of the tracking frame.
var (
	Up      = r3.Vec{Y: 1}
	Forward = r3.Vec{Z: 1}
	Right   = r3.Vec{X: 1}
)

// SmoothDamp moves current toward target with a critically damped spring.
// velocity is read and written so successive calls continue the same motion.
// smoothTime is roughly the time needed to reach the target; dt is the frame time
// in seconds. The result never overshoots the target.
func SmoothDamp(current, target float64, velocity *float64, smoothTime, dt float64) float64 {
	if dt <= 0 {
		return current
	}
	smoothTime = math.Max(minSmoothTime, smoothTime)
	omega := 2 / smoothTime
	x := omega * dt
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := current - target
	originalTo := target
	target = current - change

	temp := (*velocity + omega*change) * dt
	*velocity = (*velocity - omega*temp) * exp
	output := target + (change+temp)*exp

	if (originalTo-current > 0) == (output > originalTo) {
		output = originalTo
		*velocity = (output - originalTo) / dt
	}
	return output
}

// SmoothDampVec is SmoothDamp applied to a 3D position.
func SmoothDampVec(current, target r3.Vec, velocity *r3.Vec, smoothTime, dt float64) r3.Vec {
	if dt <= 0 {
		return current
	}
	smoothTime = math.Max(minSmoothTime, smoothTime)
	omega := 2 / smoothTime
	x := omega * dt
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := r3.Sub(current, target)
	originalTo := target
	target = r3.Sub(current, change)

	temp := r3.Scale(dt, r3.Add(*velocity, r3.Scale(omega, change)))
	*velocity = r3.Scale(exp, r3.Sub(*velocity, r3.Scale(omega, temp)))
	output := r3.Add(target, r3.Scale(exp, r3.Add(change, temp)))

	// overshoot
	if r3.Dot(r3.Sub(originalTo, current), r3.Sub(output, originalTo)) > 0 {
		output = originalTo
		*velocity = r3.Vec{}
	}
	return output
}

// SmoothDampAngle is SmoothDamp for angles in degrees, taking the short way round.
func SmoothDampAngle(current, target float64, velocity *float64, smoothTime, dt float64) float64 {
	target = current + DeltaAngle(current, target)
	return SmoothDamp(current, target, velocity, smoothTime, dt)
}

// DeltaAngle returns the shortest signed difference between two angles in degrees.
func DeltaAngle(current, target float64) float64 {
	delta := math.Mod(target-current, 360)
	if delta < 0 {
		delta += 360
	}
	if delta > 180 {
		delta -= 360
	}
	return delta
}

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Lerp interpolates between a and b with t clamped to [0,1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*Clamp01(t)
}

// LerpVec interpolates between two positions with t clamped to [0,1].
func LerpVec(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(Clamp01(t), r3.Sub(b, a)))
}
