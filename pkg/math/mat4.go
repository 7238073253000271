package math

import "math"

// Mat4 is a 4x4 affine transform in column-major order.
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
//
// Entries are float64 so that single-precision geometry run through a
// transform rounds exactly once, on the way back to float32.
type Mat4 [16]float64

// RotateX returns a rotation matrix around the X axis.
// angle is in radians.
func RotateX(angle float64) Mat4 {
	c := math.Cos(angle)
	s := math.Sin(angle)

	return Mat4{
		1, 0, 0, 0,
		0, c, s, 0,
		0, -s, c, 0,
		0, 0, 0, 1,
	}
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// TransformVec3 transforms a point by this matrix (assumes w=1).
func (m Mat4) TransformVec3(v Vec3) Vec3 {
	px, py, pz := float64(v.X), float64(v.Y), float64(v.Z)
	x := m[0]*px + m[4]*py + m[8]*pz + m[12]
	y := m[1]*px + m[5]*py + m[9]*pz + m[13]
	z := m[2]*px + m[6]*py + m[10]*pz + m[14]
	w := m[3]*px + m[7]*py + m[11]*pz + m[15]
	if w != 0 && w != 1 {
		x, y, z = x/w, y/w, z/w
	}
	return Vec3{float32(x), float32(y), float32(z)}
}
