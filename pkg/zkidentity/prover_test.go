package zkidentity

import (
	"path/filepath"
	"testing"

	"github.com/zkipschain/zkips/pkg/field"
)

func TestIdentityCircuitProveVerify(t *testing.T) {
	keys, err := SetupIdentity()
	if err != nil {
		t.Fatalf("SetupIdentity: %v", err)
	}

	identity := field.FromUint64(42)
	randomness := field.FromUint64(123)
	commitment := identity.Mul(field.FromUint64(commitmentGenerator)).
		Add(randomness.Mul(field.FromUint64(commitmentBlindingBase)))

	proof, err := ProveIdentity(keys, commitment, identity, randomness)
	if err != nil {
		t.Fatalf("ProveIdentity: %v", err)
	}

	ok, err := VerifyIdentity(keys, proof)
	if err != nil {
		t.Fatalf("VerifyIdentity: %v", err)
	}
	if !ok {
		t.Fatal("valid identity proof failed to verify")
	}
}

func TestIdentityCircuitRejectsWrongCommitment(t *testing.T) {
	keys, err := SetupIdentity()
	if err != nil {
		t.Fatalf("SetupIdentity: %v", err)
	}

	identity := field.FromUint64(1)
	randomness := field.FromUint64(2)
	wrongCommitment := field.FromUint64(9999)

	if _, err := ProveIdentity(keys, wrongCommitment, identity, randomness); err == nil {
		t.Fatal("expected proving to fail for an unsatisfied commitment constraint")
	}
}

func TestStakeCircuitProveVerify(t *testing.T) {
	keys, err := SetupStake()
	if err != nil {
		t.Fatalf("SetupStake: %v", err)
	}

	stakeProof := field.FromUint64(10)
	stakeAmount := stakeProof.Mul(stakeProof) // 100
	minStake := field.FromUint64(50)

	proof, err := ProveStake(keys, stakeAmount, minStake, stakeProof)
	if err != nil {
		t.Fatalf("ProveStake: %v", err)
	}

	ok, err := VerifyStake(keys, proof)
	if err != nil {
		t.Fatalf("VerifyStake: %v", err)
	}
	if !ok {
		t.Fatal("valid stake proof failed to verify")
	}
}

func TestStakeCircuitRejectsBelowMinimum(t *testing.T) {
	keys, err := SetupStake()
	if err != nil {
		t.Fatalf("SetupStake: %v", err)
	}

	stakeProof := field.FromUint64(5)
	stakeAmount := stakeProof.Mul(stakeProof) // 25
	minStake := field.FromUint64(100)

	if _, err := ProveStake(keys, stakeAmount, minStake, stakeProof); err == nil {
		t.Fatal("expected proving to fail when stake does not exceed the minimum")
	}
}

func TestVerifyIdentityRejectsMalformedPublicInputs(t *testing.T) {
	keys, err := SetupIdentity()
	if err != nil {
		t.Fatalf("SetupIdentity: %v", err)
	}
	bad := &Proof{Blob: []byte{1, 2, 3}, PublicInputs: nil}
	if _, err := VerifyIdentity(keys, bad); err == nil {
		t.Fatal("expected an error for a proof with no public inputs")
	}
}

func TestSaveLoadKeysRoundTrip(t *testing.T) {
	keys, err := SetupIdentity()
	if err != nil {
		t.Fatalf("SetupIdentity: %v", err)
	}

	dir := t.TempDir()
	csPath := filepath.Join(dir, "identity.cs")
	pkPath := filepath.Join(dir, "identity.pk")
	vkPath := filepath.Join(dir, "identity.vk")

	if err := keys.SaveKeys(csPath, pkPath, vkPath); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	loaded, err := LoadKeys(csPath, pkPath, vkPath)
	if err != nil {
		t.Fatalf("LoadKeys: %v", err)
	}

	identity := field.FromUint64(7)
	randomness := field.FromUint64(11)
	commitment := identity.Mul(field.FromUint64(commitmentGenerator)).
		Add(randomness.Mul(field.FromUint64(commitmentBlindingBase)))

	proof, err := ProveIdentity(loaded, commitment, identity, randomness)
	if err != nil {
		t.Fatalf("ProveIdentity with loaded keys: %v", err)
	}
	ok, err := VerifyIdentity(loaded, proof)
	if err != nil {
		t.Fatalf("VerifyIdentity with loaded keys: %v", err)
	}
	if !ok {
		t.Fatal("proof produced with round-tripped keys failed to verify")
	}
}

func TestLoadKeysWithoutProvingKey(t *testing.T) {
	keys, err := SetupIdentity()
	if err != nil {
		t.Fatalf("SetupIdentity: %v", err)
	}

	dir := t.TempDir()
	csPath := filepath.Join(dir, "identity.cs")
	pkPath := filepath.Join(dir, "identity.pk")
	vkPath := filepath.Join(dir, "identity.vk")
	if err := keys.SaveKeys(csPath, pkPath, vkPath); err != nil {
		t.Fatalf("SaveKeys: %v", err)
	}

	verifyOnly, err := LoadKeys(csPath, "", vkPath)
	if err != nil {
		t.Fatalf("LoadKeys with empty pkPath: %v", err)
	}
	if verifyOnly.pk != nil {
		t.Fatal("expected nil proving key when pkPath is empty")
	}
	if verifyOnly.vk == nil {
		t.Fatal("expected a non-nil verifying key")
	}
}
