package avatar

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is a rotation expressed as the unit quaternion W + Xi + Yj + Zk.
//
// An Orientation is a value: every operation returns a new Orientation and
// leaves its operands untouched. The zero value is not a rotation; use Identity
// as the neutral element.
type Orientation struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the neutral element of Compose.
var Identity = Orientation{W: 1}

// AngleAxis returns the rotation of angle radians about the axis (x, y, z). The
// axis need not be normalised. A zero-length axis yields Identity.
func AngleAxis(angle, x, y, z float64) Orientation {
	n := math.Sqrt(x*x + y*y + z*z)
	if n == 0 {
		return Identity
	}
	s := math.Sin(angle/2) / n
	return Orientation{W: math.Cos(angle / 2), X: x * s, Y: y * s, Z: z * s}
}

// FromQuat converts a gonum quaternion into an Orientation. The quaternion is
// taken as is; callers are expected to provide a unit quaternion.
func FromQuat(q quat.Number) Orientation {
	return Orientation{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// Quat returns o as a gonum quaternion.
func (o Orientation) Quat() quat.Number {
	return quat.Number{Real: o.W, Imag: o.X, Jmag: o.Y, Kmag: o.Z}
}

// Compose returns the Hamilton product a·b, the orientation of a followed by b.
// Composition is not commutative.
func Compose(a, b Orientation) Orientation {
	return FromQuat(quat.Mul(a.Quat(), b.Quat()))
}

// Inverse returns the orientation that undoes o, such that Compose(o,
// Inverse(o)) is Identity.
func Inverse(o Orientation) Orientation {
	return FromQuat(quat.Inv(o.Quat()))
}

// RelativeTo converts an absolute orientation into one expressed relative to
// the given absolute orientation of the parent, i.e. Compose(absolute,
// Inverse(parent)). With an Identity parent the result equals absolute.
func RelativeTo(absolute, parent Orientation) Orientation {
	return Compose(absolute, Inverse(parent))
}

// Norm returns the length of o, which is 1 for every valid orientation (within
// floating point tolerance).
func (o Orientation) Norm() float64 {
	return quat.Abs(o.Quat())
}

// ApproxEqual reports whether every component of o is within tol of the
// respective component of p.
//
// Note that q and -q describe the same rotation, yet ApproxEqual treats them as
// different values.
func (o Orientation) ApproxEqual(p Orientation, tol float64) bool {
	return math.Abs(o.W-p.W) <= tol &&
		math.Abs(o.X-p.X) <= tol &&
		math.Abs(o.Y-p.Y) <= tol &&
		math.Abs(o.Z-p.Z) <= tol
}
