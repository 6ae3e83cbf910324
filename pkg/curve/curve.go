// Copyright 2025 ZKIPS Chain Contributors
//
// Package curve wraps the bls12-381 G1 group: the prime-order subgroup used
// for public keys, signature R-components, and Pedersen-style commitments.
package curve

import (
	"encoding/hex"
	"fmt"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/zkipschain/zkips/pkg/field"
)

// CompressedSize is the canonical compressed serialization length of a G1
// point, derived from the curve rather than hardcoded (see spec's signature
// serialization open question, resolved the same way here).
const CompressedSize = bls12381.SizeOfG1AffineCompressed

var (
	genOnce sync.Once
	gen     bls12381.G1Affine
)

func generator() bls12381.G1Affine {
	genOnce.Do(func() {
		_, _, g1, _ := bls12381.Generators()
		gen = g1
	})
	return gen
}

// Point is an affine point on the bls12-381 G1 curve.
type Point struct {
	inner bls12381.G1Affine
}

// Generator returns the canonical base point g.
func Generator() Point {
	return Point{inner: generator()}
}

// Identity returns the point at infinity.
func Identity() Point {
	var p Point
	p.inner.X.SetZero()
	p.inner.Y.SetZero()
	return p
}

// ScalarBaseMul returns g·s.
func ScalarBaseMul(s field.Element) Point {
	var p Point
	g := generator()
	p.inner.ScalarMultiplication(&g, s.BigInt())
	return p
}

// ScalarMul returns p·s.
func (p Point) ScalarMul(s field.Element) Point {
	var r Point
	r.inner.ScalarMultiplication(&p.inner, s.BigInt())
	return r
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	var pj, qj, rj bls12381.G1Jac
	pj.FromAffine(&p.inner)
	qj.FromAffine(&q.inner)
	rj.Set(&pj).AddAssign(&qj)
	var r Point
	r.inner.FromJacobian(&rj)
	return r
}

// Neg returns -p.
func (p Point) Neg() Point {
	var r Point
	r.inner.Neg(&p.inner)
	return r
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return p.Add(q.Neg())
}

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool {
	return p.inner.Equal(&q.inner)
}

// IsIdentity reports whether p is the point at infinity.
func (p Point) IsIdentity() bool {
	return p.inner.IsInfinity()
}

// IsValid reports whether p is on the curve, in the correct subgroup, and
// not the identity: the three checks a point needs before it is trusted as
// a public key or signature component.
func (p Point) IsValid() bool {
	return p.inner.IsOnCurve() && p.inner.IsInSubGroup() && !p.inner.IsInfinity()
}

// Bytes returns the canonical compressed serialization of p.
func (p Point) Bytes() []byte {
	b := p.inner.Bytes()
	return b[:]
}

// Hex returns the compressed point as a hex string.
func (p Point) Hex() string {
	return hex.EncodeToString(p.Bytes())
}

// FromBytes deserializes a compressed G1 point, validating it lies on the
// curve and in the correct subgroup.
func FromBytes(data []byte) (Point, error) {
	if len(data) != CompressedSize {
		return Point{}, fmt.Errorf("curve: invalid point size: got %d, want %d", len(data), CompressedSize)
	}
	var p Point
	if _, err := p.inner.SetBytes(data); err != nil {
		return Point{}, fmt.Errorf("curve: deserialize point: %w", err)
	}
	if !p.inner.IsInSubGroup() {
		return Point{}, fmt.Errorf("curve: point not in prime-order subgroup")
	}
	return p, nil
}

// FromHex deserializes a hex-encoded compressed point.
func FromHex(s string) (Point, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, fmt.Errorf("curve: decode hex: %w", err)
	}
	return FromBytes(data)
}
