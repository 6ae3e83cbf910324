// Copyright 2025 ZKIPS Chain Contributors
//
// Package node runs a single owning actor in place of a lock per shared
// resource: one goroutine drains a command channel and is therefore the
// sole mutator of ConsensusState, ValidatorSet, State, and VotingManager.
// Callers never touch those fields directly; every exported method sends a
// command and waits on a per-call result channel.
package node

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zkipschain/zkips/pkg/config"
	"github.com/zkipschain/zkips/pkg/consensus"
	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/selector"
	"github.com/zkipschain/zkips/pkg/state"
	"github.com/zkipschain/zkips/pkg/txn"
	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/zkidentity"
)

// command is the sealed set of requests the actor loop accepts. Only one of
// these is ever being handled at a time, which is what gives the node's
// owned fields their serialized-access guarantee without per-field locks.
type command struct {
	kind   commandKind
	ctx    context.Context
	result chan<- commandResult

	// kind-specific payloads
	producer  validator.ID
	proof     *zkidentity.Proof
	now       uint64
	block     *consensus.Block
	txs       []*txn.Transaction
	voteHash  field.Element
	voter     validator.ID
	signature []byte
	seed      []byte
}

type commandKind int

const (
	cmdProduceBlock commandKind = iota
	cmdApplyBlock
	cmdSubmitVote
	cmdSelectCommittee
	cmdReadState
)

// commandResult is what every command resolves to; callers type-assert
// Value to the shape their specific command produces.
type commandResult struct {
	Value interface{}
	Err   error
}

// Metrics are the prometheus collectors a Node registers for block height,
// vote tally, and selection failures. Exposed over HTTP by cmd/zkipsd,
// outside this package's own scope.
type Metrics struct {
	BlockHeight       prometheus.Gauge
	VotesTallied      prometheus.Counter
	SelectionFailures prometheus.Counter
}

// NewMetrics registers a fresh Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zkips_block_height",
			Help: "Current chain height as observed by this node.",
		}),
		VotesTallied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zkips_votes_tallied_total",
			Help: "Total votes submitted through this node.",
		}),
		SelectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zkips_selection_failures_total",
			Help: "Total committee-selection attempts that exhausted their retries.",
		}),
	}
	reg.MustRegister(m.BlockHeight, m.VotesTallied, m.SelectionFailures)
	return m
}

// Node is the single actor owning every piece of shared mutable state that
// would otherwise need a defined lock order: ConsensusState, ValidatorSet,
// State, VotingManager.votes, VotingManager.weights,
// BlockProducer.last_block_time. The actor processes one command at a
// time, so that order is respected trivially by construction; it is still
// documented here because the fields are read in this order inside each
// handler, and a future handler that reads them out of order is a bug even
// without deadlock risk.
type Node struct {
	cfg *config.Config

	// RunID identifies this actor instance in log lines, independent of
	// ValidatorID, so two runs of the same validator can be told apart.
	RunID uuid.UUID

	cs         *consensus.ConsensusState
	validators *validator.Set
	st         *state.State
	voting     *consensus.VotingManager
	producer   *consensus.BlockProducer
	identity   *consensus.IdentityVerifier
	transition *txn.Transitioner

	metrics *Metrics

	commands chan command
	done     chan struct{}
}

// New constructs a Node around the given initial components. Call Run to
// start the actor loop; every other method may be called concurrently once
// Run is running.
func New(cfg *config.Config, cs *consensus.ConsensusState, validators *validator.Set, st *state.State,
	voting *consensus.VotingManager, producer *consensus.BlockProducer, identity *consensus.IdentityVerifier,
	transition *txn.Transitioner, metrics *Metrics) *Node {
	return &Node{
		cfg:        cfg,
		RunID:      uuid.New(),
		cs:         cs,
		validators: validators,
		st:         st,
		voting:     voting,
		producer:   producer,
		identity:   identity,
		transition: transition,
		metrics:    metrics,
		commands:   make(chan command),
		done:       make(chan struct{}),
	}
}

// Run drains the command channel until ctx is cancelled. It must run in its
// own goroutine; it is the only goroutine that ever reads or writes the
// Node's owned fields.
func (n *Node) Run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-n.commands:
			n.handle(cmd)
		}
	}
}

// Done returns a channel closed once Run has returned.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

func (n *Node) submit(ctx context.Context, cmd command) (interface{}, error) {
	result := make(chan commandResult, 1)
	cmd.ctx = ctx
	cmd.result = result
	select {
	case n.commands <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-result:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Node) handle(cmd command) {
	var value interface{}
	var err error

	switch cmd.kind {
	case cmdProduceBlock:
		value, err = n.handleProduceBlock(cmd)
	case cmdApplyBlock:
		value, err = n.handleApplyBlock(cmd)
	case cmdSubmitVote:
		value, err = n.handleSubmitVote(cmd)
	case cmdSelectCommittee:
		value, err = n.handleSelectCommittee(cmd)
	case cmdReadState:
		value, err = n.st.Clone(), nil
	default:
		err = fmt.Errorf("unknown command kind %d", cmd.kind)
	}

	select {
	case cmd.result <- commandResult{Value: value, Err: err}:
	default:
	}
}

// handleProduceBlock builds the new block value first, checks cancellation,
// and only then advances cs/ValidatorSet bookkeeping: validate before
// commit, so a cancelled context never leaves partial state behind.
func (n *Node) handleProduceBlock(cmd command) (interface{}, error) {
	scratch := n.cs.Clone()
	block, err := n.producer.Create(scratch, n.validators, cmd.producer, cmd.proof, cmd.now)
	if err != nil {
		return nil, err
	}
	if cmd.ctx.Err() != nil {
		return nil, cmd.ctx.Err()
	}

	if err := n.identity.Verify(block, n.validators); err != nil {
		return nil, err
	}

	n.cs.Advance(block, n.validators)
	if v := n.validators.Get(cmd.producer); v != nil {
		v.LastProducedHeight = block.Height
	}
	if n.metrics != nil {
		n.metrics.BlockHeight.Set(float64(block.Height))
	}
	return block, nil
}

func (n *Node) handleApplyBlock(cmd command) (interface{}, error) {
	newState, computation, logs, err := n.transition.ApplyBlock(n.st, cmd.txs, cmd.block.Height)
	if err != nil {
		return nil, err
	}
	if cmd.ctx.Err() != nil {
		return nil, cmd.ctx.Err()
	}

	n.st = newState
	return applyBlockResult{Computation: computation, Logs: logs}, nil
}

type applyBlockResult struct {
	Computation uint64
	Logs        []txn.Log
}

func (n *Node) handleSubmitVote(cmd command) (interface{}, error) {
	reached, err := n.voting.Submit(cmd.voteHash, cmd.voter, cmd.signature, n.cs.Height)
	if err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.VotesTallied.Inc()
	}
	return reached, nil
}

func (n *Node) handleSelectCommittee(cmd command) (interface{}, error) {
	next, err := selector.Select(n.validators, cmd.seed, selector.Config{
		MinValidators:      n.cfg.MinValidators,
		SelectionThreshold: n.cfg.SelectionThreshold,
	})
	if err != nil {
		if n.metrics != nil {
			n.metrics.SelectionFailures.Inc()
		}
		return nil, err
	}
	n.validators = next
	return next, nil
}
