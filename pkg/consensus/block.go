// Copyright 2025 ZKIPS Chain Contributors
//
// Block, the block hash digest, and BlockProducer's create/verify pair.
package consensus

import (
	"encoding/binary"

	"github.com/zkipschain/zkips/pkg/field"
	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/xhash"
	"github.com/zkipschain/zkips/pkg/zkidentity"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// Block is a single produced block: a height, a link to its predecessor, an
// attached identity proof binding it to its producer, a commitment to the
// committee that produced it, and the computed digest. Hash is excluded
// from its own preimage.
type Block struct {
	Height           uint64
	PrevHash         field.Element
	Timestamp        uint64
	Producer         validator.ID
	IdentityProof    *zkidentity.Proof
	EpochLength      uint64
	ValidatorSetRoot field.Element
	Hash             field.Element
}

// computeHash reproduces H_to_F(height_LE || serialize(prev_hash) ||
// timestamp_LE || producer.id || identity_proof.blob || epoch_length_LE).
func computeHash(height uint64, prevHash field.Element, timestamp uint64, producer validator.ID, proofBlob []byte, epochLength uint64) field.Element {
	var heightBuf, tsBuf, epochBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], height)
	binary.LittleEndian.PutUint64(tsBuf[:], timestamp)
	binary.LittleEndian.PutUint64(epochBuf[:], epochLength)

	return xhash.Default().HashToField(
		heightBuf[:],
		prevHash.ToBytesLE(),
		tsBuf[:],
		[]byte(producer),
		proofBlob,
		epochBuf[:],
	)
}

// BlockProducer builds and verifies blocks against a live ConsensusState,
// keeping "assemble a candidate" separate from "check a candidate" so each
// stays independently testable.
type BlockProducer struct {
	BlockTime uint64 // seconds between blocks
}

// NewBlockProducer constructs a BlockProducer targeting the given inter-block
// interval.
func NewBlockProducer(blockTime uint64) *BlockProducer {
	return &BlockProducer{BlockTime: blockTime}
}

// Create assembles a new block on top of cs, enforcing now >=
// last_block_time + block_time, and advances cs.LastBlockTime to now on
// success. The block's ValidatorSetRoot commits to validators' current
// membership, binding the block to the committee that produced it.
func (p *BlockProducer) Create(cs *ConsensusState, validators *validator.Set, producer validator.ID, proof *zkidentity.Proof, now uint64) (*Block, error) {
	if now < cs.LastBlockTime+p.BlockTime {
		return nil, &zkerrors.InvalidBlockError{
			Reason: zkerrors.ReasonTiming,
			Detail: "block produced before the minimum inter-block interval elapsed",
		}
	}

	height := cs.Height + 1
	hash := computeHash(height, cs.LastBlockHash, now, producer, proof.Blob, cs.EpochLength)

	block := &Block{
		Height:           height,
		PrevHash:         cs.LastBlockHash,
		Timestamp:        now,
		Producer:         producer,
		IdentityProof:    proof,
		EpochLength:      cs.EpochLength,
		ValidatorSetRoot: validators.Root(),
		Hash:             hash,
	}

	cs.LastBlockTime = now
	return block, nil
}

// Verify checks block against cs: height succession, prev-hash linkage,
// the [last_block_time+block_time, last_block_time+2*block_time] timing
// window, and hash recomputation. It never mutates cs.
func (p *BlockProducer) Verify(cs *ConsensusState, block *Block) error {
	if block.Height != cs.Height+1 {
		return &zkerrors.InvalidBlockError{Reason: zkerrors.ReasonHeight, Detail: "block height does not succeed current height"}
	}
	if !block.PrevHash.Equal(cs.LastBlockHash) {
		return &zkerrors.InvalidBlockError{Reason: zkerrors.ReasonPrevHash, Detail: "prev_hash does not match the chain tip"}
	}

	lower := cs.LastBlockTime + p.BlockTime
	upper := cs.LastBlockTime + 2*p.BlockTime
	if block.Timestamp < lower || block.Timestamp > upper {
		return &zkerrors.InvalidBlockError{Reason: zkerrors.ReasonTiming, Detail: "block timestamp outside the accepted production window"}
	}

	want := computeHash(block.Height, block.PrevHash, block.Timestamp, block.Producer, block.IdentityProof.Blob, block.EpochLength)
	if !want.Equal(block.Hash) {
		return &zkerrors.InvalidBlockError{Reason: zkerrors.ReasonHash, Detail: "recomputed hash does not match block.hash"}
	}

	return nil
}
