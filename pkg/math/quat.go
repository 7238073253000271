package math

import "fmt"

// Quat represents a rotation quaternion.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// String formats the quaternion as "(w; x, y, z)".
func (q Quat) String() string {
	return fmt.Sprintf("(%g; %g, %g, %g)", q.W, q.X, q.Y, q.Z)
}
