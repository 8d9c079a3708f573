package motion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	degPerRad = 180 / math.Pi
	// epsilonNormal is the squared length below which a vector has no usable direction.
	epsilonNormal = 1e-15
)

// Identity is the rotation that leaves vectors unchanged.
var Identity = quat.Number{Real: 1}

// Pose is a position and an orientation in the tracking frame.
type Pose struct {
	Position r3.Vec      `json:"position"`
	Rotation quat.Number `json:"rotation"`
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: Identity}
}

// Forward returns the +Z axis of the pose.
func (p Pose) Forward() r3.Vec {
	return Rotate(p.Rotation, Forward)
}

// Up returns the +Y axis of the pose.
func (p Pose) Up() r3.Vec {
	return Rotate(p.Rotation, Up)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Normalize returns the unit vector along v, or the zero vector when v has no length.
func Normalize(v r3.Vec) r3.Vec {
	if r3.Norm2(v) < epsilonNormal {
		return r3.Vec{}
	}
	return r3.Unit(v)
}

// AngleDeg returns the unsigned angle between two vectors in degrees.
// Degenerate vectors yield zero.
func AngleDeg(a, b r3.Vec) float64 {
	denom := math.Sqrt(r3.Norm2(a) * r3.Norm2(b))
	if denom < epsilonNormal {
		return 0
	}
	cos := math.Max(-1, math.Min(1, r3.Dot(a, b)/denom))
	return math.Acos(cos) * degPerRad
}

// ProjectOnPlane removes the component of v along the plane normal.
func ProjectOnPlane(v, normal r3.Vec) r3.Vec {
	n2 := r3.Norm2(normal)
	if n2 < epsilonNormal {
		return v
	}
	return r3.Sub(v, r3.Scale(r3.Dot(v, normal)/n2, normal))
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// WorldPosition maps a point expressed in the local frame of (origin, rotation)
// into the tracking frame.
func WorldPosition(origin r3.Vec, rotation quat.Number, local r3.Vec) r3.Vec {
	return r3.Add(origin, Rotate(NormalizeQuat(rotation), local))
}

// LookRotation returns the rotation whose +Z axis points along forward and whose
// +Y axis is as close to up as possible. A zero forward yields Identity.
func LookRotation(forward, up r3.Vec) quat.Number {
	f := Normalize(forward)
	if f == (r3.Vec{}) {
		return Identity
	}
	r := Normalize(r3.Cross(up, f))
	if r == (r3.Vec{}) {
		// up is parallel to forward; pick any perpendicular axis
		r = Normalize(r3.Cross(Right, f))
		if r == (r3.Vec{}) {
			r = Normalize(r3.Cross(Forward, f))
		}
	}
	u := r3.Cross(f, r)

	m00, m01, m02 := r.X, u.X, f.X
	m10, m11, m12 := r.Y, u.Y, f.Y
	m20, m21, m22 := r.Z, u.Z, f.Z

	var q quat.Number
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{Real: 0.25 / s, Imag: (m21 - m12) * s, Jmag: (m02 - m20) * s, Kmag: (m10 - m01) * s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{Real: (m21 - m12) / s, Imag: 0.25 * s, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: 0.25 * s, Kmag: (m12 + m21) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: 0.25 * s}
	}
	return NormalizeQuat(q)
}
