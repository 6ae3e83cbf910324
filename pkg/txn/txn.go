// Copyright 2025 ZKIPS Chain Contributors
//
// Package txn implements the pure state-transition function: transaction
// validation, per-kind application, and the computation accounting formula.
package txn

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/zkipschain/zkips/pkg/account"
	"github.com/zkipschain/zkips/pkg/curve"
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/schnorr"
	"github.com/zkipschain/zkips/pkg/state"
	"github.com/zkipschain/zkips/pkg/xhash"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// Kind classifies a transaction's per-kind semantics.
type Kind int

const (
	KindTransfer Kind = iota
	KindDeploy
	KindCall
	KindCreateAccount
	KindUpdateAccount
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindDeploy:
		return "deploy"
	case KindCall:
		return "call"
	case KindCreateAccount:
		return "create_account"
	case KindUpdateAccount:
		return "update_account"
	default:
		return "unknown"
	}
}

// kindCost is the fixed per-kind computation surcharge.
func (k Kind) cost() uint64 {
	switch k {
	case KindTransfer:
		return 1000
	case KindDeploy:
		return 50000
	case KindCall:
		return 5000
	case KindCreateAccount:
		return 2000
	case KindUpdateAccount:
		return 3000
	default:
		return 0
	}
}

// minComputation is the fixed floor every transaction charges regardless of
// kind or payload size.
const minComputation uint64 = 1000

// Transaction is a single state-mutating request.
type Transaction struct {
	Kind  Kind
	From  account.ID
	To    account.ID // empty/nil means absent
	Value uint64
	Nonce uint64
	Data  []byte

	Signature        *schnorr.Signature
	ComputationProof []byte
}

// Log is an event emitted by transaction processing (contract calls only,
// in this implementation).
type Log struct {
	Topic         field.Element
	Data          []byte
	BlockNumber   uint64
	TransactionHash field.Element
}

// TransitionResult is what applying one transaction produces.
type TransitionResult struct {
	NewRoot          field.Element
	ModifiedAccounts map[string]*account.Account
	ComputationUsed  uint64
	Logs             []Log
}

// Encode produces the canonical encoding used both for signing and for the
// transaction hash: every field except Signature and ComputationProof.
func (tx *Transaction) Encode() []byte {
	buf := make([]byte, 0, 64+len(tx.Data))
	buf = append(buf, byte(tx.Kind))
	buf = appendLenPrefixed(buf, tx.From)
	buf = appendLenPrefixed(buf, tx.To)

	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], tx.Value)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], tx.Nonce)
	buf = append(buf, tmp[:]...)

	buf = appendLenPrefixed(buf, tx.Data)
	return buf
}

// Hash is the transaction hash attached to logs.
func (tx *Transaction) Hash() field.Element {
	return xhash.Default().HashToField(tx.Encode())
}

func appendLenPrefixed(buf, data []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, data...)
}

// computationUsed implements computation_used = min_computation +
// 10*|tx.data| + kind_cost.
func computationUsed(tx *Transaction) uint64 {
	return minComputation + uint64(len(tx.Data))*10 + tx.Kind.cost()
}

// verifyComputation is an abstracted oracle standing in for the real
// computation check: any non-empty blob is accepted. A production system
// replaces this with a ZK proof of off-chain execution.
func verifyComputation(proof []byte) bool {
	return len(proof) > 0
}

// ContractExecutor is the opaque hook for contract execution (Non-goal:
// this package implements no contract semantics of its own).
type ContractExecutor interface {
	Execute(contract *account.Account, tx *Transaction) (storage map[field.Element]field.Element, logs []Log, err error)
}

// NoopExecutor is the default ContractExecutor: it returns no storage
// changes and no logs, exercising the Call path without implementing any
// contract semantics.
type NoopExecutor struct{}

func (NoopExecutor) Execute(contract *account.Account, tx *Transaction) (map[field.Element]field.Element, []Log, error) {
	return nil, nil, nil
}

// Transitioner applies transactions against a State using a fixed
// signature scheme and contract executor.
type Transitioner struct {
	Scheme   *schnorr.Scheme
	Executor ContractExecutor
}

// NewTransitioner builds a Transitioner. A nil executor defaults to
// NoopExecutor.
func NewTransitioner(scheme *schnorr.Scheme, executor ContractExecutor) *Transitioner {
	if executor == nil {
		executor = NoopExecutor{}
	}
	return &Transitioner{Scheme: scheme, Executor: executor}
}

// validate applies the five transaction validation rules, in order,
// against st (never the working clone: callers validate against the
// initial state).
func (t *Transitioner) validate(st *state.State, tx *Transaction) (*account.Account, error) {
	sender := st.GetAccount(tx.From)
	if sender == nil {
		return nil, &zkerrors.StateTransitionError{Reason: "sender account not found", Err: zkerrors.ErrSenderNotFound}
	}

	if tx.Nonce != sender.Nonce {
		return nil, &zkerrors.StateTransitionError{Reason: "nonce mismatch", Err: zkerrors.ErrNonceMismatch}
	}

	if tx.Signature == nil || !t.Scheme.Verify(tx.Encode(), *tx.Signature, sender.PublicKey) {
		return nil, &zkerrors.StateTransitionError{Reason: "signature invalid", Err: zkerrors.ErrSignatureInvalid}
	}

	if !verifyComputation(tx.ComputationProof) {
		return nil, &zkerrors.StateTransitionError{Reason: "computation proof missing or empty", Err: zkerrors.ErrComputationProof}
	}

	if tx.Value > sender.Balance {
		return nil, &zkerrors.StateTransitionError{Reason: "value exceeds balance", Err: zkerrors.ErrInsufficientBalance}
	}

	return sender, nil
}

// ApplyTransaction validates and applies tx against a clone of st, returning
// the resulting new root and modified accounts without mutating st.
func (t *Transitioner) ApplyTransaction(st *state.State, tx *Transaction, blockNumber uint64) (*TransitionResult, error) {
	if _, err := t.validate(st, tx); err != nil {
		return nil, err
	}

	working := st.Clone()
	modified, logs, err := t.process(working, tx)
	if err != nil {
		return nil, err
	}

	txHash := tx.Hash()
	for i := range logs {
		logs[i].BlockNumber = blockNumber
		logs[i].TransactionHash = txHash
	}

	return &TransitionResult{
		NewRoot:          working.Root,
		ModifiedAccounts: modified,
		ComputationUsed:  computationUsed(tx),
		Logs:             logs,
	}, nil
}

// process dispatches per-kind semantics, mutating working in place and
// returning the set of accounts it touched.
func (t *Transitioner) process(working *state.State, tx *Transaction) (map[string]*account.Account, []Log, error) {
	switch tx.Kind {
	case KindTransfer:
		return t.processTransfer(working, tx)
	case KindDeploy:
		return t.processDeploy(working, tx)
	case KindCall:
		return t.processCall(working, tx)
	case KindCreateAccount:
		return t.processCreateAccount(working, tx)
	case KindUpdateAccount:
		return t.processUpdateAccount(working, tx)
	default:
		return nil, nil, &zkerrors.StateTransitionError{Reason: fmt.Sprintf("unknown transaction kind %d", tx.Kind)}
	}
}

func (t *Transitioner) processTransfer(working *state.State, tx *Transaction) (map[string]*account.Account, []Log, error) {
	if len(tx.To) == 0 {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "transfer requires a receiver"}
	}
	receiver := working.GetAccount(tx.To)
	if receiver == nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "receiver account not found", Err: zkerrors.ErrReceiverNotFound}
	}
	sender := working.GetAccount(tx.From)

	if err := sender.SubBalance(tx.Value); err != nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "sender balance", Err: err}
	}
	receiver.AddBalance(tx.Value)
	sender.IncrementNonce()

	working.PutAccount(sender)
	working.PutAccount(receiver)

	return map[string]*account.Account{
		string(sender.ID):   sender,
		string(receiver.ID): receiver,
	}, nil, nil
}

func (t *Transitioner) processDeploy(working *state.State, tx *Transaction) (map[string]*account.Account, []Log, error) {
	sender := working.GetAccount(tx.From)

	contractID := account.ID(deriveContractID(tx.From, tx.Nonce))
	codeHash := xhash.Default().HashToField(tx.Data)
	contract := account.NewContract(contractID, sender.PublicKey, codeHash)

	if err := sender.SubBalance(tx.Value); err != nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "sender balance", Err: err}
	}
	sender.IncrementNonce()

	working.PutAccount(sender)
	working.PutAccount(contract)

	return map[string]*account.Account{
		string(sender.ID):   sender,
		string(contract.ID): contract,
	}, nil, nil
}

func deriveContractID(sender account.ID, nonce uint64) []byte {
	h := sha3.New256()
	h.Write(sender)
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	h.Write(nonceBytes[:])
	return h.Sum(nil)
}

func (t *Transitioner) processCall(working *state.State, tx *Transaction) (map[string]*account.Account, []Log, error) {
	if len(tx.To) == 0 {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "call requires a target contract"}
	}
	contract := working.GetAccount(tx.To)
	if contract == nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "contract not found"}
	}
	if !contract.IsContract() {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "target is not a contract", Err: zkerrors.ErrNotAContract}
	}
	sender := working.GetAccount(tx.From)

	storageUpdates, logs, err := t.Executor.Execute(contract, tx)
	if err != nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "contract execution failed", Err: err}
	}
	for key, value := range storageUpdates {
		if err := contract.SetStorage(key, value); err != nil {
			return nil, nil, &zkerrors.StateTransitionError{Reason: "contract storage update", Err: err}
		}
	}

	if err := sender.SubBalance(tx.Value); err != nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "sender balance", Err: err}
	}
	sender.IncrementNonce()

	working.PutAccount(sender)
	working.PutAccount(contract)

	return map[string]*account.Account{
		string(sender.ID):   sender,
		string(contract.ID): contract,
	}, logs, nil
}

func (t *Transitioner) processCreateAccount(working *state.State, tx *Transaction) (map[string]*account.Account, []Log, error) {
	if len(tx.To) == 0 {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "create_account requires a target id"}
	}
	if working.GetAccount(tx.To) != nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "account already exists", Err: zkerrors.ErrAccountExists}
	}
	sender := working.GetAccount(tx.From)

	newKey, err := extractPublicKey(tx.Data)
	if err != nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "extract public key", Err: err}
	}
	newAccount := account.New(tx.To, newKey)

	sender.IncrementNonce()

	working.PutAccount(sender)
	working.PutAccount(newAccount)

	return map[string]*account.Account{
		string(sender.ID):     sender,
		string(newAccount.ID): newAccount,
	}, nil, nil
}

func (t *Transitioner) processUpdateAccount(working *state.State, tx *Transaction) (map[string]*account.Account, []Log, error) {
	if len(tx.To) == 0 {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "update_account requires a target id"}
	}
	target := working.GetAccount(tx.To)
	if target == nil {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "target account not found"}
	}
	sender := working.GetAccount(tx.From)
	if !sender.ID.Equal(target.ID) {
		return nil, nil, &zkerrors.StateTransitionError{Reason: "sender is not the account owner"}
	}

	applyAccountUpdates(target, tx.Data)
	sender.IncrementNonce()

	working.PutAccount(target)

	return map[string]*account.Account{
		string(target.ID): target,
	}, nil, nil
}

// extractPublicKey is backend-specific: this implementation treats Data as
// the raw compressed G1 point encoding produced by pkg/curve.
func extractPublicKey(data []byte) (curve.Point, error) {
	return curve.FromBytes(data)
}

// applyAccountUpdates is backend-specific: this implementation treats Data
// as an optional new storage root to adopt, leaving every other field
// untouched. A production system would define a richer update payload.
func applyAccountUpdates(acc *account.Account, data []byte) {
	if len(data) == 0 {
		return
	}
	acc.StorageRoot = field.FromBytesLE(data)
}
