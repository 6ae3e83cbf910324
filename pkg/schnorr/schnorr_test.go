package schnorr

import (
	"testing"

	"github.com/zkipschain/zkips/pkg/field"
)

func mustScheme(t *testing.T) *Scheme {
	t.Helper()
	s, err := NewScheme(MinSecurityLevel, nil)
	if err != nil {
		t.Fatalf("NewScheme: %v", err)
	}
	return s
}

func TestNewSchemeRejectsWeakSecurityLevel(t *testing.T) {
	if _, err := NewScheme(64, nil); err == nil {
		t.Fatal("expected error for security level below 128 bits")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := mustScheme(t)
	kp := KeyPairFromSecret(field.FromUint64(424242))
	msg := []byte("S1 transfer A->B value=100 nonce=0")

	sig := s.Sign(msg, kp.SecretKey)
	if !s.Verify(msg, sig, kp.PublicKey) {
		t.Fatal("signature failed to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	s := mustScheme(t)
	kp := KeyPairFromSecret(field.FromUint64(7))
	sig := s.Sign([]byte("original"), kp.SecretKey)
	if s.Verify([]byte("tampered"), sig, kp.PublicKey) {
		t.Fatal("signature verified against a different message")
	}
}

func TestBatchVerifyShortCircuits(t *testing.T) {
	s := mustScheme(t)
	kp := KeyPairFromSecret(field.FromUint64(99))
	msgs := [][]byte{[]byte("m1"), []byte("m2"), []byte("m3")}
	sigs := s.BatchSign(msgs, kp.SecretKey)

	ok, err := s.BatchVerify(msgs, sigs, kp.PublicKey)
	if err != nil || !ok {
		t.Fatalf("expected all-valid batch to verify, got ok=%v err=%v", ok, err)
	}

	sigs[1] = s.Sign([]byte("wrong"), kp.SecretKey)
	ok, err = s.BatchVerify(msgs, sigs, kp.PublicKey)
	if err != nil || ok {
		t.Fatalf("expected batch with a bad signature to fail, got ok=%v err=%v", ok, err)
	}
}

func TestSignatureSerializationRoundTrip(t *testing.T) {
	s := mustScheme(t)
	kp := KeyPairFromSecret(field.FromUint64(55))
	sig := s.Sign([]byte("payload"), kp.SecretKey)

	encoded := sig.Bytes()
	if len(encoded) != SignatureSize {
		t.Fatalf("expected %d bytes, got %d", SignatureSize, len(encoded))
	}
	decoded, err := SignatureFromBytes(encoded)
	if err != nil {
		t.Fatalf("SignatureFromBytes: %v", err)
	}
	if !decoded.R.Equal(sig.R) || !decoded.S.Equal(sig.S) {
		t.Fatal("signature round-trip changed R or s")
	}
}

func TestHDDerivation(t *testing.T) {
	s := mustScheme(t)
	parent := KeyPairFromSecret(field.FromUint64(1000))

	child := s.DeriveChild(parent, 3)
	if !child.Verify() {
		t.Fatal("derived child key pair failed g*sk == pk check")
	}

	// Same parent and index must derive the same child (property 6).
	again := s.DeriveChild(parent, 3)
	if !again.SecretKey.Equal(child.SecretKey) {
		t.Fatal("HD derivation is not deterministic")
	}

	// Different index must derive a different child.
	other := s.DeriveChild(parent, 4)
	if other.SecretKey.Equal(child.SecretKey) {
		t.Fatal("different indices derived the same child key")
	}
}

func TestKeyPairVerify(t *testing.T) {
	kp := KeyPairFromSecret(field.FromUint64(42))
	if !kp.Verify() {
		t.Fatal("freshly constructed key pair failed verification")
	}
	tampered := KeyPair{SecretKey: kp.SecretKey, PublicKey: KeyPairFromSecret(field.FromUint64(43)).PublicKey}
	if tampered.Verify() {
		t.Fatal("mismatched key pair unexpectedly verified")
	}
}
