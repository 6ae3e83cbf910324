// Copyright 2025 ZKIPS Chain Contributors
package consensus

import (
	"sync"

	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// Vote is a single validator's endorsement of a block hash.
type Vote struct {
	Voter     validator.ID
	Signature []byte
}

// VotingManager tracks per-block-hash vote sets and validator weights, and
// reports weighted-quorum consensus once submitted weight crosses the
// configured threshold.
type VotingManager struct {
	mu sync.RWMutex

	votes   map[string][]Vote
	weights map[string]uint64

	// firstSeenHeight is the side index ClearOldVotes consults: the height
	// a block hash was first submitted a vote for.
	firstSeenHeight map[string]uint64

	Threshold float64
}

// NewVotingManager constructs an empty VotingManager with the given
// weighted-quorum threshold.
func NewVotingManager(threshold float64) *VotingManager {
	return &VotingManager{
		votes:           make(map[string][]Vote),
		weights:         make(map[string]uint64),
		firstSeenHeight: make(map[string]uint64),
		Threshold:       threshold,
	}
}

// Submit records voter's vote for blockHash at height, rejecting an empty
// signature or a duplicate voter, and returns whether this vote brought the
// block to weighted-quorum consensus.
func (vm *VotingManager) Submit(blockHash field.Element, voter validator.ID, signature []byte, height uint64) (bool, error) {
	if len(signature) == 0 {
		return false, &zkerrors.VotingError{Reason: zkerrors.VotingMissingSignature}
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	key := string(blockHash.ToBytesLE())

	for _, v := range vm.votes[key] {
		if string(v.Voter) == string(voter) {
			return false, &zkerrors.VotingError{Reason: zkerrors.VotingDuplicate}
		}
	}

	vm.votes[key] = append(vm.votes[key], Vote{Voter: voter, Signature: signature})
	if _, seen := vm.firstSeenHeight[key]; !seen {
		vm.firstSeenHeight[key] = height
	}

	return vm.reachedLocked(key), nil
}

func (vm *VotingManager) reachedLocked(key string) bool {
	var total uint64
	for _, w := range vm.weights {
		total += w
	}
	if total == 0 {
		return false
	}

	var sum uint64
	for _, v := range vm.votes[key] {
		sum += vm.weights[string(v.Voter)]
	}

	return float64(sum)/float64(total) >= vm.Threshold
}

// Reached reports whether blockHash currently has weighted-quorum consensus,
// without submitting a new vote.
func (vm *VotingManager) Reached(blockHash field.Element) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.reachedLocked(string(blockHash.ToBytesLE()))
}

// Votes returns the ordered vote list recorded for blockHash.
func (vm *VotingManager) Votes(blockHash field.Element) []Vote {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	key := string(blockHash.ToBytesLE())
	out := make([]Vote, len(vm.votes[key]))
	copy(out, vm.votes[key])
	return out
}

// UpdateWeights replaces the full weights mapping, the operation callers
// perform at epoch boundaries when the active validator set's stakes change.
func (vm *VotingManager) UpdateWeights(weights map[string]uint64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.weights = make(map[string]uint64, len(weights))
	for k, w := range weights {
		vm.weights[k] = w
	}
}

// ClearOldVotes drops every tracked block hash first seen strictly before
// beforeHeight, consulting the first-seen side index rather than a no-op
// retention pass.
func (vm *VotingManager) ClearOldVotes(beforeHeight uint64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for key, seenAt := range vm.firstSeenHeight {
		if seenAt < beforeHeight {
			delete(vm.votes, key)
			delete(vm.firstSeenHeight, key)
		}
	}
}
