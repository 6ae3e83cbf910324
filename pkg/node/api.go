// Copyright 2025 ZKIPS Chain Contributors
package node

import (
	"context"

	"github.com/zkipschain/zkips/pkg/consensus"
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/state"
	"github.com/zkipschain/zkips/pkg/txn"
	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/zkidentity"
)

// ProduceBlock asks the actor to build and accept a new block from
// producer's identity proof at wall-clock time now. Cancelling ctx after
// validation but before the actor commits the result leaves cs/validators
// untouched.
func (n *Node) ProduceBlock(ctx context.Context, producer validator.ID, proof *zkidentity.Proof, now uint64) (*consensus.Block, error) {
	v, err := n.submit(ctx, command{kind: cmdProduceBlock, producer: producer, proof: proof, now: now})
	if err != nil {
		return nil, err
	}
	return v.(*consensus.Block), nil
}

// ApplyBlock asks the actor to apply txs against its owned State as of
// block, replacing the owned State with the result on success.
func (n *Node) ApplyBlock(ctx context.Context, block *consensus.Block, txs []*txn.Transaction) (uint64, []txn.Log, error) {
	v, err := n.submit(ctx, command{kind: cmdApplyBlock, block: block, txs: txs})
	if err != nil {
		return 0, nil, err
	}
	result := v.(applyBlockResult)
	return result.Computation, result.Logs, nil
}

// SubmitVote asks the actor to record voter's vote for blockHash, returning
// whether this vote brought the block to weighted-quorum consensus.
func (n *Node) SubmitVote(ctx context.Context, blockHash field.Element, voter validator.ID, signature []byte) (bool, error) {
	v, err := n.submit(ctx, command{kind: cmdSubmitVote, voteHash: blockHash, voter: voter, signature: signature})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// SelectCommittee asks the actor to draw the next committee from its owned
// ValidatorSet, replacing it with the result on success.
func (n *Node) SelectCommittee(ctx context.Context, seed []byte) (*validator.Set, error) {
	v, err := n.submit(ctx, command{kind: cmdSelectCommittee, seed: seed})
	if err != nil {
		return nil, err
	}
	return v.(*validator.Set), nil
}

// ReadState returns a clone of the actor's owned State, safe for the
// caller to inspect without racing the actor loop.
func (n *Node) ReadState(ctx context.Context) (*state.State, error) {
	v, err := n.submit(ctx, command{kind: cmdReadState})
	if err != nil {
		return nil, err
	}
	return v.(*state.State), nil
}
