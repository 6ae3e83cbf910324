// Copyright 2025 ZKIPS Chain Contributors
//
// Package xhash provides the variant-parameterized hash used across the
// core: plain byte hashing plus a hash-to-field reduction into pkg/field's
// scalar field.
package xhash

import (
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/zkipschain/zkips/pkg/field"
)

// Variant selects the underlying digest algorithm.
type Variant int

const (
	// SHA3_256 is the default variant used for Merkle paths and block hashes.
	SHA3_256 Variant = iota
	SHA3_512
	Blake2b
	Blake2s
)

func (v Variant) String() string {
	switch v {
	case SHA3_256:
		return "sha3-256"
	case SHA3_512:
		return "sha3-512"
	case Blake2b:
		return "blake2b"
	case Blake2s:
		return "blake2s"
	default:
		return "unknown"
	}
}

func (v Variant) newHasher() (hash.Hash, error) {
	switch v {
	case SHA3_256:
		return sha3.New256(), nil
	case SHA3_512:
		return sha3.New512(), nil
	case Blake2b:
		return blake2b.New512(nil)
	case Blake2s:
		return blake2s.New256(nil)
	default:
		return nil, fmt.Errorf("xhash: unknown variant %d", v)
	}
}

// Hasher performs the two public operations spec'd for the crypto suite's
// Hash primitive: hash-bytes and hash-to-field.
type Hasher struct {
	variant Variant
}

// New constructs a Hasher for the given variant. Construction never fails;
// an unknown variant falls back to SHA3-256 so callers always get a
// deterministic, non-failing hasher, matching the "must return a
// deterministic non-failing element for every input" contract.
func New(variant Variant) *Hasher {
	return &Hasher{variant: variant}
}

// Default returns a SHA3-256 hasher, the variant used for Merkle path
// derivation and block hashing unless a node is configured otherwise.
func Default() *Hasher {
	return New(SHA3_256)
}

// Hash returns the raw digest of data under this hasher's variant.
func (h *Hasher) Hash(data []byte) []byte {
	hasher, err := h.variant.newHasher()
	if err != nil {
		hasher = sha3.New256()
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}

// HashToField reduces the digest of data into an element of F, interpreting
// the digest as the first ceil(log2|F|) bits and reducing modulo the prime.
func (h *Hasher) HashToField(data ...[]byte) field.Element {
	hasher, err := h.variant.newHasher()
	if err != nil {
		hasher = sha3.New256()
	}
	for _, d := range data {
		hasher.Write(d)
	}
	digest := hasher.Sum(nil)
	// Keep the first fr.Bits bits of the digest, read little-endian (bytes
	// in order, least significant bit first within each byte).
	nBytes := (fr.Bits + 7) / 8
	if len(digest) >= nBytes {
		digest = digest[:nBytes]
		if extra := nBytes*8 - fr.Bits; extra > 0 {
			digest[nBytes-1] &= 0xff >> extra
		}
	}
	return field.FromBytesLE(digest)
}

// leafPrefix distinguishes a leaf hash from an internal-node hash so a
// second-preimage attacker cannot pass off an internal node as a leaf.
const leafPrefix = 0x00

// HashLeaf computes H(0x00 || value), the sparse Merkle tree's leaf hash.
func (h *Hasher) HashLeaf(value []byte) []byte {
	buf := make([]byte, 0, len(value)+1)
	buf = append(buf, leafPrefix)
	buf = append(buf, value...)
	return h.Hash(buf)
}

// HashNodes computes H(left || right), the sparse Merkle tree's internal
// node hash.
func (h *Hasher) HashNodes(left, right []byte) []byte {
	buf := make([]byte, 0, len(left)+len(right))
	buf = append(buf, left...)
	buf = append(buf, right...)
	return h.Hash(buf)
}
