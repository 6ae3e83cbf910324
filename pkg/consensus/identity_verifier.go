// Copyright 2025 ZKIPS Chain Contributors
package consensus

import (
	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/zkidentity"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// DefaultMinGap is the minimum number of blocks a validator must wait
// between productions.
const DefaultMinGap = 1

// IdentityVerifier checks a block's attached ZK identity proof and the
// producer-eligibility conditions alongside it: validator set membership,
// commitment consistency, the minimum block gap since the producer's last
// block, and that the block's committed ValidatorSetRoot matches the
// committee it is being checked against.
type IdentityVerifier struct {
	Keys   *zkidentity.Keys
	MinGap uint64
}

// NewIdentityVerifier builds an IdentityVerifier against keys, with the
// given min_gap (0 is treated as DefaultMinGap).
func NewIdentityVerifier(keys *zkidentity.Keys, minGap uint64) *IdentityVerifier {
	if minGap == 0 {
		minGap = DefaultMinGap
	}
	return &IdentityVerifier{Keys: keys, MinGap: minGap}
}

// Verify checks block.IdentityProof against v.Keys and the four
// eligibility conditions: the block's committed validator-set root matches
// validators' current membership, producer is a current validator, the
// producer's identity commitment appears among the proof's public inputs,
// and the producer has not produced a block within the last MinGap blocks.
func (v *IdentityVerifier) Verify(block *Block, validators *validator.Set) error {
	if !block.ValidatorSetRoot.Equal(validators.Root()) {
		return &zkerrors.InvalidValidatorSetError{Reason: "block's validator_set_root does not match the current committee"}
	}

	ok, err := zkidentity.VerifyIdentity(v.Keys, block.IdentityProof)
	if err != nil {
		return &zkerrors.InvalidIdentityProofError{Reason: "proof verification failed", Err: err}
	}
	if !ok {
		return &zkerrors.InvalidIdentityProofError{Reason: "proof did not verify against the registered key"}
	}

	producer := validators.Get(block.Producer)
	if producer == nil {
		return &zkerrors.InvalidIdentityProofError{Reason: "producer is not a current validator"}
	}

	var commitmentPresent bool
	for _, input := range block.IdentityProof.PublicInputs {
		if input.Equal(producer.IdentityCommitment) {
			commitmentPresent = true
			break
		}
	}
	if !commitmentPresent {
		return &zkerrors.InvalidIdentityProofError{Reason: "producer's identity commitment is absent from the proof's public inputs"}
	}

	if producer.LastProducedHeight != 0 && block.Height-producer.LastProducedHeight < v.MinGap {
		return &zkerrors.InvalidIdentityProofError{Reason: "producer has produced a block within the minimum gap"}
	}

	return nil
}
