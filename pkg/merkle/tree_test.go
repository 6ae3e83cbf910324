// Copyright 2025 ZKIPS Chain Contributors
//
// Sparse Merkle tree tests

package merkle

import (
	"testing"

	"github.com/zkipschain/zkips/pkg/xhash"
)

func TestEmptyTreeRootIsDeterministic(t *testing.T) {
	a := New(32, nil)
	b := New(32, nil)
	if string(a.Root()) != string(b.Root()) {
		t.Fatal("two empty trees of the same depth produced different roots")
	}
}

func TestUpdateChangesRoot(t *testing.T) {
	tree := New(32, nil)
	before := tree.Root()
	after := tree.Update([]byte("account-a"), []byte("value-a"))
	if string(before) == string(after) {
		t.Fatal("Update did not change the root")
	}
}

func TestGetReturnsLastWrittenValue(t *testing.T) {
	tree := New(32, nil)
	tree.Update([]byte("k"), []byte("v1"))
	tree.Update([]byte("k"), []byte("v2"))
	got := tree.Get([]byte("k"))
	if string(got) != "v2" {
		t.Fatalf("expected v2, got %q", got)
	}
	if tree.Get([]byte("absent")) != nil {
		t.Fatal("expected nil for an unset key")
	}
}

func TestProofVerifiesAgainstRoot(t *testing.T) {
	tree := New(32, nil)
	root := tree.Update([]byte("k1"), []byte("v1"))
	root = tree.Update([]byte("k2"), []byte("v2"))

	proof := tree.Proof([]byte("k1"))
	if !tree.VerifyProof([]byte("k1"), []byte("v1"), proof, root) {
		t.Fatal("valid proof failed to verify")
	}
	if tree.VerifyProof([]byte("k1"), []byte("wrong-value"), proof, root) {
		t.Fatal("proof verified against the wrong value")
	}
}

func TestProofForUnsetKeyProvesAbsence(t *testing.T) {
	tree := New(32, nil)
	root := tree.Update([]byte("present"), []byte("value"))
	proof := tree.Proof([]byte("absent"))
	if !tree.VerifyProof([]byte("absent"), nil, proof, root) {
		t.Fatal("absence proof failed to verify for an unset key")
	}
}

func TestUpdateToEmptyRestoresDefault(t *testing.T) {
	tree := New(16, nil)
	empty := tree.Root()
	tree.Update([]byte("k"), []byte("v"))
	restored := tree.Update([]byte("k"), nil)
	if string(restored) != string(empty) {
		t.Fatal("clearing the only written key did not restore the empty root")
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	hasher := xhash.Default()
	tree := New(24, hasher)
	root := tree.Update([]byte("acct-1"), []byte("balance=1000"))

	r := NewReceipt(tree, []byte("acct-1"), []byte("balance=1000"), 7)
	if r.Anchor == "" || len(r.Entries) != tree.Depth() {
		t.Fatalf("unexpected receipt shape: anchor=%q entries=%d", r.Anchor, len(r.Entries))
	}
	if err := r.Validate(hasher); err != nil {
		t.Fatalf("receipt failed to validate: %v", err)
	}

	encoded, err := r.ToBinary()
	if err != nil {
		t.Fatalf("ToBinary: %v", err)
	}
	decoded, err := ReceiptFromBinary(encoded)
	if err != nil {
		t.Fatalf("ReceiptFromBinary: %v", err)
	}
	if err := decoded.Validate(hasher); err != nil {
		t.Fatalf("decoded receipt failed to validate: %v", err)
	}
	if decoded.Anchor != hex(root) {
		t.Fatalf("decoded anchor mismatch")
	}
}

func hex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0xf]
	}
	return string(out)
}
