// Copyright 2025 ZKIPS Chain Contributors
//
// Package schnorr implements the core's Schnorr-like signature scheme over
// G1, key-pair management, and non-hardened HD key derivation.
package schnorr

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zkipschain/zkips/pkg/curve"
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/xhash"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// MinSecurityLevel is the bit-security floor the whole crypto suite enforces
// at every primitive's construction.
const MinSecurityLevel = 128

// SignatureSize is derived from the curve's actual compressed-G1 length and
// the scalar field's byte length, never hardcoded, so it stays correct if
// either size changes.
const SignatureSize = curve.CompressedSize + field.Size

// Scheme binds a hasher and a declared security level to the sign/verify
// operations. Construction fails below the 128-bit floor.
type Scheme struct {
	hasher        *xhash.Hasher
	securityLevel int
}

// NewScheme constructs a Scheme, rejecting securityLevel below MinSecurityLevel.
func NewScheme(securityLevel int, hasher *xhash.Hasher) (*Scheme, error) {
	if securityLevel < MinSecurityLevel {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoParameter,
			fmt.Sprintf("security level %d below minimum %d", securityLevel, MinSecurityLevel), nil)
	}
	if hasher == nil {
		hasher = xhash.Default()
	}
	return &Scheme{hasher: hasher, securityLevel: securityLevel}, nil
}

// KeyPair holds a secret scalar and its derived public point.
type KeyPair struct {
	SecretKey field.Element
	PublicKey curve.Point
}

// KeyPairFromSecret derives a key pair from a caller-supplied secret key.
// Randomness itself is out of this package's scope (wallet/key lifecycle is
// a spec non-goal); callers supply a secret scalar from whatever entropy
// source they trust.
func KeyPairFromSecret(sk field.Element) KeyPair {
	return KeyPair{SecretKey: sk, PublicKey: curve.ScalarBaseMul(sk)}
}

// Verify recomputes g·sk and compares against the stored public key.
func (kp KeyPair) Verify() bool {
	return curve.ScalarBaseMul(kp.SecretKey).Equal(kp.PublicKey)
}

// Signature is the (R, s) pair produced by Sign.
type Signature struct {
	R curve.Point
	S field.Element
}

// Bytes returns the canonical serialize(R) || serialize(s) encoding.
func (sig Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureSize)
	out = append(out, sig.R.Bytes()...)
	out = append(out, sig.S.ToBytesLE()...)
	return out
}

// Hex renders the signature as a hex string.
func (sig Signature) Hex() string {
	return hex.EncodeToString(sig.Bytes())
}

// SignatureFromBytes deserializes a canonical-encoded signature.
func SignatureFromBytes(data []byte) (Signature, error) {
	if len(data) != SignatureSize {
		return Signature{}, zkerrors.NewCryptoError(zkerrors.CryptoSignature,
			fmt.Sprintf("invalid signature length: got %d, want %d", len(data), SignatureSize), nil)
	}
	r, err := curve.FromBytes(data[:curve.CompressedSize])
	if err != nil {
		return Signature{}, zkerrors.NewCryptoError(zkerrors.CryptoSignature, "deserialize R", err)
	}
	s := field.FromBytesLE(data[curve.CompressedSize:])
	return Signature{R: r, S: s}, nil
}

// Sign implements: k = H_to_F(sk || m); R = g·k; h = H_to_F(serialize(R) || m); s = k - h·sk.
func (s *Scheme) Sign(message []byte, sk field.Element) Signature {
	k := s.hasher.HashToField(sk.ToBytesLE(), message)
	r := curve.ScalarBaseMul(k)
	h := s.hasher.HashToField(r.Bytes(), message)
	signature := k.Sub(h.Mul(sk))
	return Signature{R: r, S: signature}
}

// Verify implements: h = H_to_F(serialize(R) || m); accept iff g·s = R - pk·h.
func (s *Scheme) Verify(message []byte, sig Signature, pk curve.Point) bool {
	h := s.hasher.HashToField(sig.R.Bytes(), message)
	lhs := curve.ScalarBaseMul(sig.S)
	rhs := sig.R.Sub(pk.ScalarMul(h))
	return lhs.Equal(rhs)
}

// BatchSign signs every message independently, in order.
func (s *Scheme) BatchSign(messages [][]byte, sk field.Element) []Signature {
	out := make([]Signature, len(messages))
	for i, m := range messages {
		out[i] = s.Sign(m, sk)
	}
	return out
}

// BatchVerify verifies each (message, signature) pair in order, short
// circuiting on the first failure.
func (s *Scheme) BatchVerify(messages [][]byte, signatures []Signature, pk curve.Point) (bool, error) {
	if len(messages) != len(signatures) {
		return false, zkerrors.NewCryptoError(zkerrors.CryptoSignature,
			"number of messages and signatures must match", nil)
	}
	for i := range messages {
		if !s.Verify(messages[i], signatures[i], pk) {
			return false, nil
		}
	}
	return true, nil
}

// DeriveChild computes the non-hardened HD child key at the given index:
// child_sk = parent_sk + H_to_F(serialize(parent_pk) || LE32(index)).
// Derivation is reversible given any child secret plus the parent public
// key.
func (s *Scheme) DeriveChild(parent KeyPair, index uint32) KeyPair {
	idxLE := make([]byte, 4)
	binary.LittleEndian.PutUint32(idxLE, index)
	delta := s.hasher.HashToField(parent.PublicKey.Bytes(), idxLE)
	childSK := parent.SecretKey.Add(delta)
	return KeyPairFromSecret(childSK)
}
