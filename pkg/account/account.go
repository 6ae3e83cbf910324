// Copyright 2025 ZKIPS Chain Contributors
//
// Package account defines the world-state account record: identity,
// balance, nonce, public key, and per-account contract storage.
package account

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/zkipschain/zkips/pkg/curve"
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// ID is an opaque, variable-length account identifier: externally
// constructed for user accounts, and deterministically derived
// (SHA3-256(sender ∥ nonce)) for contract accounts, see pkg/txn's Deploy
// handling.
type ID []byte

// String renders the id as a hex string for logging.
func (id ID) String() string {
	return fmt.Sprintf("%x", []byte(id))
}

// Equal reports whether two ids hold the same bytes.
func (id ID) Equal(other ID) bool {
	if len(id) != len(other) {
		return false
	}
	for i := range id {
		if id[i] != other[i] {
			return false
		}
	}
	return true
}

// Account is the authenticated record the state model commits into the
// sparse Merkle tree. Storage is a value, not a reference: no account ever
// holds a pointer to another account.
type Account struct {
	ID          ID
	Nonce       uint64
	Balance     uint64
	PublicKey   curve.Point
	StorageRoot field.Element
	HasCode     bool
	CodeHash    field.Element
	Storage     map[string]field.Element // keyed by the LE-encoded storage key
}

// New constructs a fresh, non-contract account with zero balance and nonce.
func New(id ID, pubKey curve.Point) *Account {
	return &Account{
		ID:        append(ID(nil), id...),
		PublicKey: pubKey,
		Storage:   make(map[string]field.Element),
	}
}

// NewContract constructs a fresh contract account: code hash fixed at
// creation, never mutated afterward.
func NewContract(id ID, creatorKey curve.Point, codeHash field.Element) *Account {
	a := New(id, creatorKey)
	a.HasCode = true
	a.CodeHash = codeHash
	return a
}

// IsContract reports whether this account has a code hash, i.e. storage
// mutation is legal on it.
func (a *Account) IsContract() bool {
	return a.HasCode
}

// Clone returns a deep copy, used by the pure state-transition functions so
// mutation never touches the caller's original State.
func (a *Account) Clone() *Account {
	clone := &Account{
		ID:          append(ID(nil), a.ID...),
		Nonce:       a.Nonce,
		Balance:     a.Balance,
		PublicKey:   a.PublicKey,
		StorageRoot: a.StorageRoot,
		HasCode:     a.HasCode,
		CodeHash:    a.CodeHash,
		Storage:     make(map[string]field.Element, len(a.Storage)),
	}
	for k, v := range a.Storage {
		clone.Storage[k] = v
	}
	return clone
}

// IncrementNonce is the only nonce mutator: nonce is strictly non-decreasing.
func (a *Account) IncrementNonce() {
	a.Nonce++
}

// SetBalance overwrites the balance without any check; balance is a u64, so
// it cannot go negative, and a caller applying a debit checks sufficiency
// first (SubBalance is the checked path).
func (a *Account) SetBalance(newBalance uint64) {
	a.Balance = newBalance
}

// AddBalance adds delta to the balance, saturating at the u64 ceiling,
// never expected to trigger in practice.
func (a *Account) AddBalance(delta uint64) {
	sum := a.Balance + delta
	if sum < a.Balance {
		sum = ^uint64(0)
	}
	a.Balance = sum
}

// SubBalance subtracts delta, returning an error if it would go negative.
func (a *Account) SubBalance(delta uint64) error {
	if delta > a.Balance {
		return fmt.Errorf("account %s: %w", a.ID, zkerrors.ErrInsufficientBalance)
	}
	a.Balance -= delta
	return nil
}

// SetStorage sets a contract storage slot. Only legal for contract accounts.
func (a *Account) SetStorage(key, value field.Element) error {
	if !a.HasCode {
		return fmt.Errorf("account %s: %w", a.ID, zkerrors.ErrNotAContract)
	}
	if a.Storage == nil {
		a.Storage = make(map[string]field.Element)
	}
	a.Storage[string(key.ToBytesLE())] = value
	return nil
}

// GetStorage reads a contract storage slot.
func (a *Account) GetStorage(key field.Element) (field.Element, bool) {
	v, ok := a.Storage[string(key.ToBytesLE())]
	return v, ok
}

// Serialize produces the canonical length-prefixed encoding that feeds the
// Merkle leaf hash: id, nonce, balance, pubkey, state root, code-hash
// presence flag + value, storage entries sorted by key for determinism.
func (a *Account) Serialize() []byte {
	buf := make([]byte, 0, 128+len(a.Storage)*64)

	buf = appendLenPrefixed(buf, a.ID)

	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], a.Nonce)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], a.Balance)
	buf = append(buf, tmp[:]...)

	buf = appendLenPrefixed(buf, a.PublicKey.Bytes())
	buf = appendLenPrefixed(buf, a.StorageRoot.ToBytesLE())

	if a.HasCode {
		buf = append(buf, 1)
		buf = appendLenPrefixed(buf, a.CodeHash.ToBytesLE())
	} else {
		buf = append(buf, 0)
	}

	keys := make([]string, 0, len(a.Storage))
	for k := range a.Storage {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(keys)))
	buf = append(buf, countBuf[:]...)
	for _, k := range keys {
		buf = appendLenPrefixed(buf, []byte(k))
		buf = appendLenPrefixed(buf, a.Storage[k].ToBytesLE())
	}

	return buf
}

func appendLenPrefixed(buf, data []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, data...)
}

// Deserialize parses the encoding produced by Serialize.
func Deserialize(data []byte) (*Account, error) {
	a := &Account{Storage: make(map[string]field.Element)}
	rest := data

	id, rest, err := readLenPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("account.id: %w", err)
	}
	a.ID = ID(id)

	if len(rest) < 16 {
		return nil, fmt.Errorf("account: truncated nonce/balance")
	}
	a.Nonce = binary.LittleEndian.Uint64(rest[:8])
	a.Balance = binary.LittleEndian.Uint64(rest[8:16])
	rest = rest[16:]

	pkBytes, rest, err := readLenPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("account.pubkey: %w", err)
	}
	pk, err := curve.FromBytes(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("account.pubkey: %w", err)
	}
	a.PublicKey = pk

	rootBytes, rest, err := readLenPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("account.storage_root: %w", err)
	}
	a.StorageRoot = field.FromBytesLE(rootBytes)

	if len(rest) < 1 {
		return nil, fmt.Errorf("account: missing code-hash flag")
	}
	hasCode := rest[0] == 1
	rest = rest[1:]
	a.HasCode = hasCode
	if hasCode {
		var codeHashBytes []byte
		codeHashBytes, rest, err = readLenPrefixed(rest)
		if err != nil {
			return nil, fmt.Errorf("account.code_hash: %w", err)
		}
		a.CodeHash = field.FromBytesLE(codeHashBytes)
	}

	if len(rest) < 4 {
		return nil, fmt.Errorf("account: truncated storage count")
	}
	count := binary.LittleEndian.Uint32(rest[:4])
	rest = rest[4:]
	for i := uint32(0); i < count; i++ {
		var keyBytes, valBytes []byte
		keyBytes, rest, err = readLenPrefixed(rest)
		if err != nil {
			return nil, fmt.Errorf("account.storage[%d].key: %w", i, err)
		}
		valBytes, rest, err = readLenPrefixed(rest)
		if err != nil {
			return nil, fmt.Errorf("account.storage[%d].value: %w", i, err)
		}
		a.Storage[string(keyBytes)] = field.FromBytesLE(valBytes)
	}

	return a, nil
}

func readLenPrefixed(data []byte) (value, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("truncated field: want %d bytes, have %d", n, len(data))
	}
	return data[:n], data[n:], nil
}
