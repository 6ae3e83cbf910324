package account

import (
	"testing"

	"github.com/zkipschain/zkips/pkg/curve"
	"github.com/zkipschain/zkips/pkg/field"
)

func testKey() curve.Point {
	return curve.ScalarBaseMul(field.FromUint64(4242))
}

func TestNewAccountDefaults(t *testing.T) {
	a := New(ID("alice"), testKey())
	if a.Nonce != 0 || a.Balance != 0 {
		t.Fatal("fresh account must start at zero nonce and balance")
	}
	if a.IsContract() {
		t.Fatal("New must not produce a contract account")
	}
}

func TestIncrementNonce(t *testing.T) {
	a := New(ID("alice"), testKey())
	a.IncrementNonce()
	a.IncrementNonce()
	if a.Nonce != 2 {
		t.Fatalf("expected nonce 2, got %d", a.Nonce)
	}
}

func TestSubBalanceRejectsOverdraft(t *testing.T) {
	a := New(ID("alice"), testKey())
	a.SetBalance(100)
	if err := a.SubBalance(150); err == nil {
		t.Fatal("expected an error for insufficient balance")
	}
	if a.Balance != 100 {
		t.Fatal("failed SubBalance must not mutate the account")
	}
	if err := a.SubBalance(100); err != nil {
		t.Fatalf("SubBalance: %v", err)
	}
	if a.Balance != 0 {
		t.Fatalf("expected balance 0, got %d", a.Balance)
	}
}

func TestSetStorageRejectsNonContract(t *testing.T) {
	a := New(ID("alice"), testKey())
	if err := a.SetStorage(field.FromUint64(1), field.FromUint64(2)); err == nil {
		t.Fatal("expected an error setting storage on a non-contract account")
	}
}

func TestContractStorageRoundTrip(t *testing.T) {
	c := NewContract(ID("contract-1"), testKey(), field.FromUint64(0xc0de))
	if !c.IsContract() {
		t.Fatal("NewContract must produce a contract account")
	}
	key := field.FromUint64(7)
	val := field.FromUint64(99)
	if err := c.SetStorage(key, val); err != nil {
		t.Fatalf("SetStorage: %v", err)
	}
	got, ok := c.GetStorage(key)
	if !ok || !got.Equal(val) {
		t.Fatal("storage slot did not round-trip")
	}
	if _, ok := c.GetStorage(field.FromUint64(404)); ok {
		t.Fatal("expected no value for an unset storage key")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewContract(ID("contract-1"), testKey(), field.FromUint64(1))
	a.SetStorage(field.FromUint64(1), field.FromUint64(1))

	clone := a.Clone()
	clone.SetBalance(500)
	clone.SetStorage(field.FromUint64(1), field.FromUint64(999))

	if a.Balance == clone.Balance {
		t.Fatal("mutating the clone must not affect the original balance")
	}
	origVal, _ := a.GetStorage(field.FromUint64(1))
	if origVal.Equal(field.FromUint64(999)) {
		t.Fatal("mutating the clone's storage must not affect the original")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	a := NewContract(ID("contract-xyz"), testKey(), field.FromUint64(77))
	a.IncrementNonce()
	a.SetBalance(12345)
	a.SetStorage(field.FromUint64(1), field.FromUint64(111))
	a.SetStorage(field.FromUint64(2), field.FromUint64(222))

	encoded := a.Serialize()
	decoded, err := Deserialize(encoded)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if !decoded.ID.Equal(a.ID) {
		t.Fatal("id mismatch after round trip")
	}
	if decoded.Nonce != a.Nonce || decoded.Balance != a.Balance {
		t.Fatal("nonce/balance mismatch after round trip")
	}
	if !decoded.PublicKey.Equal(a.PublicKey) {
		t.Fatal("pubkey mismatch after round trip")
	}
	if !decoded.HasCode || !decoded.CodeHash.Equal(a.CodeHash) {
		t.Fatal("code hash mismatch after round trip")
	}
	v1, ok1 := decoded.GetStorage(field.FromUint64(1))
	v2, ok2 := decoded.GetStorage(field.FromUint64(2))
	if !ok1 || !ok2 || !v1.Equal(field.FromUint64(111)) || !v2.Equal(field.FromUint64(222)) {
		t.Fatal("storage entries did not survive round trip")
	}
}

func TestSerializeIsDeterministic(t *testing.T) {
	a := NewContract(ID("contract-xyz"), testKey(), field.FromUint64(5))
	a.SetStorage(field.FromUint64(9), field.FromUint64(1))
	a.SetStorage(field.FromUint64(2), field.FromUint64(2))
	a.SetStorage(field.FromUint64(5), field.FromUint64(3))

	first := a.Serialize()
	second := a.Serialize()
	if string(first) != string(second) {
		t.Fatal("Serialize must be deterministic across calls regardless of map iteration order")
	}
}

func TestIDEqual(t *testing.T) {
	a := ID("alice")
	b := ID("alice")
	c := ID("bob")
	if !a.Equal(b) {
		t.Fatal("equal ids must compare equal")
	}
	if a.Equal(c) {
		t.Fatal("different ids must not compare equal")
	}
}
