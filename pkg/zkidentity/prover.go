// Copyright 2025 ZKIPS Chain Contributors
//
// Groth16 setup, proving, and verification for the identity and stake
// circuits. Each circuit gets its own one-time trusted setup yielding a
// (proving_key, verifying_key) pair; proof generation and verification
// otherwise follow the gnark groth16/bn254 backend directly.
package zkidentity

import (
	"bytes"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// Curve is the scalar field the circuits are compiled over. gnark's Groth16
// backend requires a distinct "outer" curve from the data being proven
// about; BN254 is the curve this prover targets.
var Curve = ecc.BN254

// Keys holds one circuit's compiled constraint system and its trusted-setup
// proving/verifying key pair.
type Keys struct {
	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey
}

// Proof is a Groth16 proof plus the public inputs it was produced against,
// exactly the "byte blob + vector of public inputs in F" shape a Block
// attaches.
type Proof struct {
	Blob         []byte
	PublicInputs []field.Element
}

// SetupIdentity runs the one-time trusted setup for IdentityCircuit.
func SetupIdentity() (*Keys, error) {
	return setup(&IdentityCircuit{})
}

// SetupStake runs the one-time trusted setup for StakeCircuit.
func SetupStake() (*Keys, error) {
	return setup(&StakeCircuit{})
}

func setup(circuit frontend.Circuit) (*Keys, error) {
	cs, err := frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "compile circuit", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "groth16 setup", err)
	}
	return &Keys{cs: cs, pk: pk, vk: vk}, nil
}

// ProveIdentity produces a proof that commitment = identity*g_param +
// randomness*h_param, without revealing identity or randomness.
func ProveIdentity(keys *Keys, commitment, identity, randomness field.Element) (*Proof, error) {
	assignment := &IdentityCircuit{
		Commitment: commitment.BigInt(),
		Identity:   identity.BigInt(),
		Randomness: randomness.BigInt(),
	}
	return prove(keys, assignment, []field.Element{commitment})
}

// ProveStake produces a proof that stakeAmount exceeds minStake, bound to
// stakeProof (the private witness satisfying stakeProof^2 == stakeAmount).
func ProveStake(keys *Keys, stakeAmount, minStake, stakeProof field.Element) (*Proof, error) {
	assignment := &StakeCircuit{
		StakeAmount: stakeAmount.BigInt(),
		MinStake:    minStake.BigInt(),
		StakeProof:  stakeProof.BigInt(),
	}
	return prove(keys, assignment, []field.Element{stakeAmount, minStake})
}

var proveMu sync.Mutex

func prove(keys *Keys, assignment frontend.Circuit, publicInputs []field.Element) (*Proof, error) {
	proveMu.Lock()
	defer proveMu.Unlock()

	witness, err := frontend.NewWitness(assignment, Curve.ScalarField())
	if err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "build witness", err)
	}

	groth16Proof, err := groth16.Prove(keys.cs, keys.pk, witness)
	if err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "groth16 prove", err)
	}

	var buf bytes.Buffer
	if _, err := groth16Proof.WriteTo(&buf); err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "serialize proof", err)
	}

	return &Proof{Blob: buf.Bytes(), PublicInputs: publicInputs}, nil
}

// VerifyIdentity verifies an identity proof against keys' verifying key.
// The caller is responsible for checking that proof.PublicInputs[0] equals
// the validator's on-record identity commitment (spec's producer-eligibility
// check), not just that the proof itself is internally consistent.
func VerifyIdentity(keys *Keys, proof *Proof) (bool, error) {
	if len(proof.PublicInputs) != 1 {
		return false, &zkerrors.InvalidIdentityProofError{Reason: "expected exactly one public input (commitment)"}
	}
	assignment := &IdentityCircuit{Commitment: proof.PublicInputs[0].BigInt()}
	return verify(keys, assignment, proof)
}

// VerifyStake verifies a stake proof against keys' verifying key.
func VerifyStake(keys *Keys, proof *Proof) (bool, error) {
	if len(proof.PublicInputs) != 2 {
		return false, &zkerrors.InvalidIdentityProofError{Reason: "expected exactly two public inputs (stake amount, min stake)"}
	}
	assignment := &StakeCircuit{StakeAmount: proof.PublicInputs[0].BigInt(), MinStake: proof.PublicInputs[1].BigInt()}
	return verify(keys, assignment, proof)
}

func verify(keys *Keys, assignment frontend.Circuit, proof *Proof) (bool, error) {
	publicWitness, err := frontend.NewWitness(assignment, Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, zkerrors.NewCryptoError(zkerrors.CryptoProof, "build public witness", err)
	}

	groth16Proof := groth16.NewProof(Curve)
	if _, err := groth16Proof.ReadFrom(bytes.NewReader(proof.Blob)); err != nil {
		return false, zkerrors.NewCryptoError(zkerrors.CryptoProof, "deserialize proof", err)
	}

	if err := groth16.Verify(groth16Proof, keys.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

// VerifyingKey returns keys' verifying key, the piece a node persists and
// distributes independently of the proving key.
func (k *Keys) VerifyingKey() groth16.VerifyingKey {
	return k.vk
}

// SaveKeys persists the constraint system, proving key, and verifying key
// each to their own file, so a node can load a verifying key without
// pulling the (much larger) proving key into memory unless it intends to
// produce blocks itself.
func (k *Keys) SaveKeys(csPath, pkPath, vkPath string) error {
	csFile, err := os.Create(csPath)
	if err != nil {
		return zkerrors.NewCryptoError(zkerrors.CryptoProof, "create constraint system file", err)
	}
	defer csFile.Close()
	if _, err := k.cs.WriteTo(csFile); err != nil {
		return zkerrors.NewCryptoError(zkerrors.CryptoProof, "write constraint system", err)
	}

	pkFile, err := os.Create(pkPath)
	if err != nil {
		return zkerrors.NewCryptoError(zkerrors.CryptoProof, "create proving key file", err)
	}
	defer pkFile.Close()
	if _, err := k.pk.WriteTo(pkFile); err != nil {
		return zkerrors.NewCryptoError(zkerrors.CryptoProof, "write proving key", err)
	}

	vkFile, err := os.Create(vkPath)
	if err != nil {
		return zkerrors.NewCryptoError(zkerrors.CryptoProof, "create verifying key file", err)
	}
	defer vkFile.Close()
	if _, err := k.vk.WriteTo(vkFile); err != nil {
		return zkerrors.NewCryptoError(zkerrors.CryptoProof, "write verifying key", err)
	}
	return nil
}

// LoadKeys reads a Keys previously written by SaveKeys. A node that only
// verifies (never produces) blocks may pass an empty pkPath; the returned
// Keys then has a nil proving key and can only be used with VerifyIdentity
// or VerifyStake, never ProveIdentity or ProveStake.
func LoadKeys(csPath, pkPath, vkPath string) (*Keys, error) {
	csFile, err := os.Open(csPath)
	if err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "open constraint system file", err)
	}
	defer csFile.Close()
	cs := groth16.NewCS(Curve)
	if _, err := cs.ReadFrom(csFile); err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "read constraint system", err)
	}

	keys := &Keys{cs: cs}

	if pkPath != "" {
		pkFile, err := os.Open(pkPath)
		if err != nil {
			return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "open proving key file", err)
		}
		defer pkFile.Close()
		pk := groth16.NewProvingKey(Curve)
		if _, err := pk.ReadFrom(pkFile); err != nil {
			return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "read proving key", err)
		}
		keys.pk = pk
	}

	vkFile, err := os.Open(vkPath)
	if err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "open verifying key file", err)
	}
	defer vkFile.Close()
	vk := groth16.NewVerifyingKey(Curve)
	if _, err := vk.ReadFrom(vkFile); err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoProof, "read verifying key", err)
	}
	keys.vk = vk

	return keys, nil
}
