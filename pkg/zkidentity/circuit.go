// Copyright 2025 ZKIPS Chain Contributors
//
// Zero-knowledge identity and stake circuits attached to every block: an
// IdentityCircuit proves knowledge of the opening of a Pedersen-style
// commitment without revealing it, and a StakeCircuit proves a validator's
// stake exceeds a public minimum without revealing the binding witness.
//
// Uses gnark for ZK-SNARK circuit definition (Groth16 proving system).
package zkidentity

import (
	"github.com/consensys/gnark/frontend"
)

// commitmentGenerator and commitmentBlindingBase are the fixed public
// parameters g_param/h_param of the Pedersen-style identity commitment:
// commitment = identity*g_param + randomness*h_param.
const (
	commitmentGenerator    = 2
	commitmentBlindingBase = 3
)

// IdentityCircuit proves commitment = identity*g_param + randomness*h_param
// for a public commitment and private (identity, randomness).
type IdentityCircuit struct {
	Commitment frontend.Variable `gnark:",public"`

	Identity   frontend.Variable
	Randomness frontend.Variable
}

// Define implements the circuit constraints.
func (c *IdentityCircuit) Define(api frontend.API) error {
	computed := api.Add(
		api.Mul(c.Identity, commitmentGenerator),
		api.Mul(c.Randomness, commitmentBlindingBase),
	)
	api.AssertIsEqual(c.Commitment, computed)
	return nil
}

// StakeCircuit proves StakeAmount > MinStake and a binding relation between
// a private witness and the public stake (StakeProof^2 == StakeAmount).
type StakeCircuit struct {
	StakeAmount frontend.Variable `gnark:",public"`
	MinStake    frontend.Variable `gnark:",public"`

	StakeProof frontend.Variable
}

// Define implements the circuit constraints.
func (c *StakeCircuit) Define(api frontend.API) error {
	// StakeAmount > MinStake, i.e. MinStake + 1 <= StakeAmount.
	api.AssertIsLessOrEqual(api.Add(c.MinStake, 1), c.StakeAmount)

	verified := api.Mul(c.StakeProof, c.StakeProof)
	api.AssertIsEqual(verified, c.StakeAmount)
	return nil
}
