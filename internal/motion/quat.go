package motion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// minQuatNorm is the smallest 4-vector length that still defines a rotation.
const minQuatNorm = 1e-9

// QuatDot returns the 4D dot product of two quaternions.
func QuatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// NormalizeQuat scales q to unit length. A degenerate q yields Identity.
func NormalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < minQuatNorm {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// QuatAngleDeg returns the angle in degrees of the rotation taking a to b.
func QuatAngleDeg(a, b quat.Number) float64 {
	dot := math.Min(math.Abs(QuatDot(a, b)), 1)
	if dot > 1-1e-6 {
		return 0
	}
	return 2 * math.Acos(dot) * degPerRad
}

// Slerp interpolates along the shortest arc between a and b with t clamped to [0,1].
func Slerp(a, b quat.Number, t float64) quat.Number {
	t = Clamp01(t)
	dot := QuatDot(a, b)
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	if dot > 0.9995 {
		return NormalizeQuat(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}
	theta := math.Acos(dot)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return NormalizeQuat(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}

// SmoothDampQuat moves current toward target with a critically damped spring
// applied to each quaternion component, then renormalizes the result.
//
// q and -q describe the same rotation, so target is first flipped into the
// hemisphere of current. velocity holds the per-component rate of change and is
// rewritten as (result - current) / dt for the next call; a non-positive dt
// leaves it untouched. When current already equals target the target is
// returned and velocity is left as it was.
func SmoothDampQuat(current, target quat.Number, velocity *quat.Number, duration, dt float64) quat.Number {
	if QuatDot(current, target) < 0 {
		target = quat.Scale(-1, target)
	}
	if current == target {
		return target
	}
	if dt <= 0 {
		return current
	}

	damped := quat.Number{
		Real: SmoothDamp(current.Real, target.Real, &velocity.Real, duration, dt),
		Imag: SmoothDamp(current.Imag, target.Imag, &velocity.Imag, duration, dt),
		Jmag: SmoothDamp(current.Jmag, target.Jmag, &velocity.Jmag, duration, dt),
		Kmag: SmoothDamp(current.Kmag, target.Kmag, &velocity.Kmag, duration, dt),
	}

	n := quat.Abs(damped)
	if n < minQuatNorm {
		return current
	}
	result := quat.Scale(1/n, damped)

	*velocity = quat.Scale(1/dt, quat.Sub(result, current))
	return result
}
