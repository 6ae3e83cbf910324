package consensus

import (
	"testing"

	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/zkidentity"
)

func setupVerifierFixture(t *testing.T) (*IdentityVerifier, *zkidentity.Keys, field.Element, field.Element, field.Element) {
	t.Helper()
	keys, err := zkidentity.SetupIdentity()
	if err != nil {
		t.Fatalf("SetupIdentity: %v", err)
	}
	identity := field.FromUint64(3)
	randomness := field.FromUint64(5)
	commitment := identity.Mul(field.FromUint64(2)).Add(randomness.Mul(field.FromUint64(3)))
	return NewIdentityVerifier(keys, 1), keys, identity, randomness, commitment
}

func TestIdentityVerifierAcceptsEligibleProducer(t *testing.T) {
	verifier, keys, identity, randomness, commitment := setupVerifierFixture(t)

	proof, err := zkidentity.ProveIdentity(keys, commitment, identity, randomness)
	if err != nil {
		t.Fatalf("ProveIdentity: %v", err)
	}

	vs := validator.NewSet()
	v := &validator.Validator{ID: validator.ID("v1"), Stake: 1000, IdentityCommitment: commitment}
	if err := vs.Add(v, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	block := &Block{Height: 10, Producer: validator.ID("v1"), IdentityProof: proof, ValidatorSetRoot: vs.Root()}
	if err := verifier.Verify(block, vs); err != nil {
		t.Fatalf("expected an eligible producer to verify, got %v", err)
	}
}

func TestIdentityVerifierRejectsNonValidatorProducer(t *testing.T) {
	verifier, keys, identity, randomness, commitment := setupVerifierFixture(t)
	proof, err := zkidentity.ProveIdentity(keys, commitment, identity, randomness)
	if err != nil {
		t.Fatalf("ProveIdentity: %v", err)
	}

	vs := validator.NewSet()
	block := &Block{Height: 10, Producer: validator.ID("ghost"), IdentityProof: proof, ValidatorSetRoot: vs.Root()}
	if err := verifier.Verify(block, vs); err == nil {
		t.Fatal("expected rejection of a producer absent from the validator set")
	}
}

func TestIdentityVerifierRejectsMissingCommitmentInPublicInputs(t *testing.T) {
	verifier, keys, identity, randomness, commitment := setupVerifierFixture(t)
	proof, err := zkidentity.ProveIdentity(keys, commitment, identity, randomness)
	if err != nil {
		t.Fatalf("ProveIdentity: %v", err)
	}

	vs := validator.NewSet()
	v := &validator.Validator{ID: validator.ID("v1"), Stake: 1000, IdentityCommitment: field.FromUint64(424242)}
	if err := vs.Add(v, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	block := &Block{Height: 10, Producer: validator.ID("v1"), IdentityProof: proof, ValidatorSetRoot: vs.Root()}
	if err := verifier.Verify(block, vs); err == nil {
		t.Fatal("expected rejection when the validator's on-record commitment is absent from the proof")
	}
}

func TestIdentityVerifierRejectsWithinMinGap(t *testing.T) {
	verifier, keys, identity, randomness, commitment := setupVerifierFixture(t)
	proof, err := zkidentity.ProveIdentity(keys, commitment, identity, randomness)
	if err != nil {
		t.Fatalf("ProveIdentity: %v", err)
	}

	vs := validator.NewSet()
	v := &validator.Validator{ID: validator.ID("v1"), Stake: 1000, IdentityCommitment: commitment, LastProducedHeight: 10}
	if err := vs.Add(v, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	block := &Block{Height: 10, Producer: validator.ID("v1"), IdentityProof: proof, ValidatorSetRoot: vs.Root()}
	if err := verifier.Verify(block, vs); err == nil {
		t.Fatal("expected rejection for producing within the minimum gap")
	}
}

func TestIdentityVerifierRejectsValidatorSetRootMismatch(t *testing.T) {
	verifier, keys, identity, randomness, commitment := setupVerifierFixture(t)
	proof, err := zkidentity.ProveIdentity(keys, commitment, identity, randomness)
	if err != nil {
		t.Fatalf("ProveIdentity: %v", err)
	}

	vs := validator.NewSet()
	v := &validator.Validator{ID: validator.ID("v1"), Stake: 1000, IdentityCommitment: commitment}
	if err := vs.Add(v, 0); err != nil {
		t.Fatalf("Add: %v", err)
	}

	block := &Block{Height: 10, Producer: validator.ID("v1"), IdentityProof: proof, ValidatorSetRoot: field.FromUint64(999)}
	if err := verifier.Verify(block, vs); err == nil {
		t.Fatal("expected rejection when the block's validator_set_root does not match the current committee")
	}
}
