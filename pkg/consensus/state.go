// Copyright 2025 ZKIPS Chain Contributors
package consensus

import (
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/validator"
)

// ConsensusState is the chain-tip bookkeeping BlockProducer and
// IdentityVerifier read and advance: current epoch and height, the hash of
// the last accepted block, a commitment to the validator set in effect,
// the wall-clock time the last block was produced at, and the epoch length
// governing validator-set rollover.
type ConsensusState struct {
	Epoch            uint64
	Height           uint64
	LastBlockHash    field.Element
	ValidatorSetRoot field.Element
	LastBlockTime    uint64
	EpochLength      uint64
}

// NewConsensusState builds the genesis ConsensusState: epoch 0, height 0, a
// zero last-block-hash and validator-set root, production starting at
// genesisTime.
func NewConsensusState(epochLength uint64, genesisTime uint64) *ConsensusState {
	return &ConsensusState{
		Epoch:            0,
		Height:           0,
		LastBlockHash:    field.Zero(),
		ValidatorSetRoot: field.Zero(),
		LastBlockTime:    genesisTime,
		EpochLength:      epochLength,
	}
}

// Clone returns a value copy, used so a candidate block can be assembled
// against a scratch ConsensusState before the real one is committed.
func (cs *ConsensusState) Clone() *ConsensusState {
	clone := *cs
	return &clone
}

// Advance records block as the new chain tip after it has passed
// BlockProducer.Verify, bumps Epoch if block.Height lands on an epoch
// boundary, and recommits ValidatorSetRoot to validators' current
// membership.
func (cs *ConsensusState) Advance(block *Block, validators *validator.Set) {
	cs.Height = block.Height
	cs.LastBlockHash = block.Hash
	cs.LastBlockTime = block.Timestamp
	if cs.IsEpochBoundary(block.Height) {
		cs.Epoch++
	}
	cs.ValidatorSetRoot = validators.Root()
}

// IsEpochBoundary reports whether height marks the start of a new epoch.
func (cs *ConsensusState) IsEpochBoundary(height uint64) bool {
	if cs.EpochLength == 0 {
		return false
	}
	return height%cs.EpochLength == 0
}
