// Copyright 2025 ZKIPS Chain Contributors
//
// Package field wraps the bls12-381 scalar field Fr as the single prime
// field F used throughout the core for hashes-to-field, state roots, block
// hashes, and commitments.
package field

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Size is the canonical serialized byte length of an element of F.
const Size = fr.Bytes

// Element is a scalar in the bls12-381 Fr field.
type Element struct {
	inner fr.Element
}

// Zero returns the additive identity.
func Zero() Element {
	var e Element
	e.inner.SetZero()
	return e
}

// One returns the multiplicative identity.
func One() Element {
	var e Element
	e.inner.SetOne()
	return e
}

// FromUint64 builds an element from a small non-negative integer.
func FromUint64(v uint64) Element {
	var e Element
	e.inner.SetUint64(v)
	return e
}

// FromBytesLE interprets data as a little-endian integer and reduces it
// modulo the field prime, returning the resulting element. Never fails:
// oversized input is reduced, exactly like the hash-to-field contract.
func FromBytesLE(data []byte) Element {
	be := reversed(data)
	var e Element
	e.inner.SetBytes(be)
	return e
}

// ToBytesLE returns the canonical little-endian encoding at fixed Size.
func (e Element) ToBytesLE() []byte {
	be := e.inner.Bytes()
	return reversed(be[:])
}

// Equal reports whether two elements represent the same residue.
func (e Element) Equal(other Element) bool {
	return e.inner.Equal(&other.inner)
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool {
	return e.inner.IsZero()
}

// Add returns e + other.
func (e Element) Add(other Element) Element {
	var r Element
	r.inner.Add(&e.inner, &other.inner)
	return r
}

// Sub returns e - other.
func (e Element) Sub(other Element) Element {
	var r Element
	r.inner.Sub(&e.inner, &other.inner)
	return r
}

// Mul returns e * other.
func (e Element) Mul(other Element) Element {
	var r Element
	r.inner.Mul(&e.inner, &other.inner)
	return r
}

// BigInt returns the non-Montgomery big.Int representation of e.
func (e Element) BigInt() *big.Int {
	var b big.Int
	e.inner.BigInt(&b)
	return &b
}

// String renders e as a hex string of its canonical LE bytes, for logging.
func (e Element) String() string {
	return hex.EncodeToString(e.ToBytesLE())
}

// Hex is an alias for String kept for symmetry with the curve/schnorr packages.
func (e Element) Hex() string {
	return e.String()
}

// ParseHex parses a hex string produced by Hex/String.
func ParseHex(s string) (Element, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return Element{}, fmt.Errorf("decode field element hex: %w", err)
	}
	return FromBytesLE(data), nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
