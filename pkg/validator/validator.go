// Copyright 2025 ZKIPS Chain Contributors
//
// Package validator holds the validator record and the active validator
// set, including the incrementally-maintained total-stake invariant.
package validator

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"

	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/xhash"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// ID identifies a validator, distinct from account.ID though typically
// derived from one.
type ID []byte

func (id ID) String() string { return fmt.Sprintf("%x", []byte(id)) }

func (id ID) key() string { return string(id) }

// Performance tracks a validator's production record.
type Performance struct {
	BlocksProduced uint64
	BlocksMissed   uint64
	Uptime         float64 // in [0, 1]
}

// Validator is a single committee member.
type Validator struct {
	ID                 ID
	Stake              uint64
	IdentityCommitment field.Element
	LastProducedHeight uint64
	Performance        Performance
}

// Clone returns a value copy with its own copy of the ID slice; every other
// field of Validator is a value.
func (v *Validator) Clone() *Validator {
	clone := *v
	clone.ID = append(ID(nil), v.ID...)
	return &clone
}

// Set is the active validator committee: a map plus a cached total stake
// maintained as a running delta on every mutation, per the invariant
// total_stake == Σ stake.
type Set struct {
	members    map[string]*Validator
	totalStake uint64
}

// NewSet returns an empty validator set.
func NewSet() *Set {
	return &Set{members: make(map[string]*Validator)}
}

// TotalStake returns the cached aggregate stake.
func (s *Set) TotalStake() uint64 {
	return s.totalStake
}

// Len returns the number of active validators.
func (s *Set) Len() int {
	return len(s.members)
}

// Get returns the validator for id, or nil if absent.
func (s *Set) Get(id ID) *Validator {
	return s.members[id.key()]
}

// Has reports whether id is a current member.
func (s *Set) Has(id ID) bool {
	_, ok := s.members[id.key()]
	return ok
}

// Add inserts a new validator, failing if id is already a member or the
// set is at maxValidators capacity.
func (s *Set) Add(v *Validator, maxValidators int) error {
	if s.Has(v.ID) {
		return &zkerrors.InvalidValidatorSetError{Reason: fmt.Sprintf("validator %s already a member", v.ID)}
	}
	if maxValidators > 0 && len(s.members) >= maxValidators {
		return &zkerrors.InvalidValidatorSetError{Reason: fmt.Sprintf("at capacity %d", maxValidators)}
	}
	s.members[v.ID.key()] = v
	s.totalStake = saturatingAdd(s.totalStake, v.Stake)
	return nil
}

// Remove deletes a validator, failing if it is not a member.
func (s *Set) Remove(id ID) error {
	v, ok := s.members[id.key()]
	if !ok {
		return &zkerrors.InvalidValidatorSetError{Reason: fmt.Sprintf("validator %s absent", id)}
	}
	delete(s.members, id.key())
	s.totalStake = saturatingSub(s.totalStake, v.Stake)
	return nil
}

// UpdateStake sets id's stake to newStake, folding the delta into
// total_stake rather than resumming the whole set.
func (s *Set) UpdateStake(id ID, newStake uint64) error {
	v, ok := s.members[id.key()]
	if !ok {
		return &zkerrors.InvalidValidatorSetError{Reason: fmt.Sprintf("validator %s absent", id)}
	}
	if newStake >= v.Stake {
		s.totalStake = saturatingAdd(s.totalStake, newStake-v.Stake)
	} else {
		s.totalStake = saturatingSub(s.totalStake, v.Stake-newStake)
	}
	v.Stake = newStake
	return nil
}

// RecordProduced updates a validator's production bookkeeping after it
// successfully produces a block at height.
func (s *Set) RecordProduced(id ID, height uint64) error {
	v, ok := s.members[id.key()]
	if !ok {
		return &zkerrors.InvalidValidatorSetError{Reason: fmt.Sprintf("validator %s absent", id)}
	}
	v.LastProducedHeight = height
	v.Performance.BlocksProduced++
	return nil
}

// RecordMissed updates a validator's bookkeeping after it fails to produce
// in its turn.
func (s *Set) RecordMissed(id ID) error {
	v, ok := s.members[id.key()]
	if !ok {
		return &zkerrors.InvalidValidatorSetError{Reason: fmt.Sprintf("validator %s absent", id)}
	}
	v.Performance.BlocksMissed++
	return nil
}

// Members returns every current validator, in no particular order.
func (s *Set) Members() []*Validator {
	out := make([]*Validator, 0, len(s.members))
	for _, v := range s.members {
		out = append(out, v)
	}
	return out
}

// Root computes a deterministic commitment over the active validator set:
// each member's id, stake, and identity commitment, in id order so the
// result does not depend on map iteration order. ConsensusState stores
// this as ValidatorSetRoot, binding block validity to a known committee.
func (s *Set) Root() field.Element {
	members := s.Members()
	sort.Slice(members, func(i, j int) bool {
		return string(members[i].ID) < string(members[j].ID)
	})

	var buf []byte
	var stakeLE [8]byte
	for _, v := range members {
		binary.LittleEndian.PutUint64(stakeLE[:], v.Stake)
		buf = append(buf, byte(len(v.ID)))
		buf = append(buf, v.ID...)
		buf = append(buf, stakeLE[:]...)
		buf = append(buf, v.IdentityCommitment.ToBytesLE()...)
	}
	return xhash.Default().HashToField(buf)
}

// VerifyTotalStake recomputes Σ stake from scratch and reports whether it
// matches the cached total_stake.
func (s *Set) VerifyTotalStake() bool {
	var sum uint64
	for _, v := range s.members {
		sum = saturatingAdd(sum, v.Stake)
	}
	return sum == s.totalStake
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
