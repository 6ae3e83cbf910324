// Copyright 2025 ZKIPS Chain Contributors
//
// Package state holds the world-state model: the in-memory account set, its
// Merkle-committed root, and the persistence interface used to load/save it.
package state

import (
	"fmt"

	"github.com/zkipschain/zkips/pkg/account"
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/merkle"
	"github.com/zkipschain/zkips/pkg/xhash"
)

// TreeDepth is the sparse Merkle tree depth used for the account state root.
const TreeDepth = merkle.DefaultDepth

// State is a snapshot of every account, plus the bookkeeping fields that
// accompany a committed block.
type State struct {
	Accounts    map[string]*account.Account
	Root        field.Element
	Version     uint64
	BlockHeight uint64
	Timestamp   int64

	tree *merkle.Tree
}

// New returns an empty state at version 0 with the default-depth empty tree.
func New() *State {
	return &State{
		Accounts: make(map[string]*account.Account),
		tree:     merkle.New(TreeDepth, xhash.Default()),
	}
}

// Clone returns a deep copy: every state transition is computed against a
// clone, never the caller's original, matching the pure-transition
// requirement enforced by pkg/txn.
func (s *State) Clone() *State {
	clone := &State{
		Accounts:    make(map[string]*account.Account, len(s.Accounts)),
		Root:        s.Root,
		Version:     s.Version,
		BlockHeight: s.BlockHeight,
		Timestamp:   s.Timestamp,
		tree:        merkle.New(TreeDepth, xhash.Default()),
	}
	for id, acc := range s.Accounts {
		clone.Accounts[id] = acc.Clone()
		clone.tree.Update([]byte(id), acc.Serialize())
	}
	return clone
}

// GetAccount returns the account for id, or nil if absent.
func (s *State) GetAccount(id account.ID) *account.Account {
	return s.Accounts[string(id)]
}

// PutAccount inserts or overwrites an account and folds its serialized
// record into the state's Merkle tree, recomputing Root.
func (s *State) PutAccount(acc *account.Account) {
	key := string(acc.ID)
	s.Accounts[key] = acc
	rootBytes := s.tree.Update([]byte(key), acc.Serialize())
	s.Root = field.FromBytesLE(rootBytes)
	s.Version++
}

// DeleteAccount removes an account and its Merkle leaf.
func (s *State) DeleteAccount(id account.ID) {
	key := string(id)
	delete(s.Accounts, key)
	rootBytes := s.tree.Update([]byte(key), nil)
	s.Root = field.FromBytesLE(rootBytes)
	s.Version++
}

// RecomputeRoot rebuilds the Merkle tree from Accounts from scratch and
// updates Root. Used after a block is fully applied, so an incremental
// per-account cache can never silently drift from a full rebuild.
func (s *State) RecomputeRoot() field.Element {
	s.tree = merkle.New(TreeDepth, xhash.Default())
	for key, acc := range s.Accounts {
		s.tree.Update([]byte(key), acc.Serialize())
	}
	rootBytes := s.tree.Root()
	s.Root = field.FromBytesLE(rootBytes)
	return s.Root
}

// Proof returns an inclusion (or absence) receipt for id against the
// current Merkle root, at the given block height.
func (s *State) Proof(id account.ID, blockHeight uint64) *merkle.Receipt {
	key := []byte(id)
	var value []byte
	if acc, ok := s.Accounts[string(id)]; ok {
		value = acc.Serialize()
	}
	return merkle.NewReceipt(s.tree, key, value, blockHeight)
}

// Storage is the persistence boundary for State: every operation is total,
// returning an error on backend failure rather than panicking.
type Storage interface {
	LoadState() (*State, error)
	SaveState(s *State) error
	GetAccount(id account.ID) (*account.Account, error)
	SaveAccount(acc *account.Account) error
	DeleteAccount(id account.ID) error
	GetStorageRoot() (field.Element, error)
	Clear() error
}

// key-space: byte 0x00 is the state root, prefix 0x01 + raw id is a
// per-account record. Values are the canonical account serialization.
const (
	prefixRoot    byte = 0x00
	prefixAccount byte = 0x01
)

func rootKey() []byte {
	return []byte{prefixRoot}
}

func accountKey(id account.ID) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefixAccount
	copy(key[1:], id)
	return key
}

// wrapErr is the shared error-wrapping idiom used by both Storage
// implementations below.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("state storage: %s: %w", op, err)
}
