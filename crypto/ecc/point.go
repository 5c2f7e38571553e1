// Package ecc defines the elliptic curve group interface used by the
// homomorphic encryption layer. Implementations live in the subpackages and
// are instantiated through the curves factory.
package ecc

import "math/big"

// Point represents the affine coordinates of an elliptic curve group element
// and provides the arithmetic, serialization and comparison operations the
// aggregation layer needs.
type Point interface {
	// New returns a fresh point on the same curve as the receiver.
	New() Point

	// Order returns the order of the elliptic curve group.
	Order() *big.Int

	// Add sets the receiver to a+b.
	Add(a, b Point)

	// SafeAdd sets the receiver to a+b with exclusive access to the
	// receiver during the operation.
	SafeAdd(a, b Point)

	// ScalarMult sets the receiver to scalar*a.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to scalar*G, where G is the
	// generator point.
	ScalarBaseMult(scalar *big.Int)

	// Marshal serializes the point into a byte slice.
	Marshal() []byte

	// Unmarshal deserializes a byte slice into the receiver. The input
	// must represent a valid serialized point.
	Unmarshal(buf []byte) error

	// Equal reports whether the receiver and a are the same element.
	Equal(a Point) bool

	// Neg sets the receiver to -a.
	Neg(a Point)

	// SetZero sets the receiver to the identity element.
	SetZero()

	// Set sets the receiver to a.
	Set(a Point)

	// SetGenerator sets the receiver to the generator point.
	SetGenerator()

	// String returns a human-readable representation of the point.
	String() string

	// Point returns the X and Y affine coordinates.
	Point() (*big.Int, *big.Int)

	// SetPoint builds a point from X and Y affine coordinates. Coordinates
	// that do not form a valid group element are rejected.
	SetPoint(x, y *big.Int) (Point, error)

	// Type returns the curve type identifier.
	Type() string
}

// BigToFF returns the finite field representation of the provided big.Int,
// reducing it modulo the given base field when needed.
func BigToFF(baseField, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(baseField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, baseField)
}
