package txn

import (
	"github.com/zkipschain/zkips/pkg/account"
	"github.com/zkipschain/zkips/pkg/state"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// ApplyBlock validates every transaction individually against the initial
// state, enforces the strictly-consecutive-per-sender nonce rule, then
// applies them in order against a single working clone and recomputes the
// root as a full rebuild over the merged account set.
func (t *Transitioner) ApplyBlock(st *state.State, txs []*Transaction, blockNumber uint64) (*state.State, uint64, []Log, error) {
	nextNonce := make(map[string]uint64)

	for _, tx := range txs {
		key := string(tx.From)
		view := st
		if expected, seen := nextNonce[key]; seen {
			if tx.Nonce != expected {
				return nil, 0, nil, &zkerrors.StateTransitionError{
					Reason: "sender nonces in block are not strictly consecutive",
					Err:    zkerrors.ErrNonceSequenceBroken,
				}
			}
			// A later transaction from the same sender is validated against
			// the initial state with only that sender's nonce advanced to
			// its position in the block's sequence.
			sender := st.GetAccount(tx.From).Clone()
			sender.Nonce = expected
			view = state.New()
			view.PutAccount(sender)
		}
		if _, err := t.validate(view, tx); err != nil {
			return nil, 0, nil, err
		}
		nextNonce[key] = tx.Nonce + 1
	}

	working := st.Clone()
	modified := make(map[string]*account.Account)
	var logs []Log
	var totalComputation uint64

	for _, tx := range txs {
		touched, txLogs, err := t.process(working, tx)
		if err != nil {
			return nil, 0, nil, err
		}
		for id, acc := range touched {
			modified[id] = acc
		}
		txHash := tx.Hash()
		for i := range txLogs {
			txLogs[i].BlockNumber = blockNumber
			txLogs[i].TransactionHash = txHash
		}
		logs = append(logs, txLogs...)
		totalComputation += computationUsed(tx)
	}

	working.RecomputeRoot()
	return working, totalComputation, logs, nil
}

// VerifyTransition checks apply_block(oldState, txs).new_root ==
// newState.root and that every account in the rebuilt set matches the
// expected post-state.
func (t *Transitioner) VerifyTransition(oldState, newState *state.State, txs []*Transaction, blockNumber uint64) (bool, error) {
	result, _, _, err := t.ApplyBlock(oldState, txs, blockNumber)
	if err != nil {
		return false, err
	}
	if !result.Root.Equal(newState.Root) {
		return false, nil
	}
	for id, expected := range result.Accounts {
		actual := newState.GetAccount(account.ID(id))
		if actual == nil {
			return false, nil
		}
		if string(actual.Serialize()) != string(expected.Serialize()) {
			return false, nil
		}
	}
	return true, nil
}
