// Copyright 2025 ZKIPS Chain Contributors
//
// Portable Merkle inclusion receipts: a self-contained proof structure that
// can be independently re-verified without holding a live Tree or trusting
// any intermediary, useful for light-client style state verification.

package merkle

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zkipschain/zkips/pkg/xhash"
)

// ReceiptEntry is a single sibling step in a Merkle inclusion proof.
type ReceiptEntry struct {
	// Hash is the hex-encoded sibling hash at this level.
	Hash string `json:"hash"`
	// Right indicates the position of the sibling relative to the path
	// being proven: true means the sibling sits to the right of the
	// current node (combine as H(current || sibling)); false means it
	// sits to the left (combine as H(sibling || current)).
	Right bool `json:"right"`
}

// Receipt is a portable Merkle proof: the leaf being proven, the root it is
// claimed to commit to, and the ordered sibling path between them.
type Receipt struct {
	// Start is the leaf hash being proven (hex-encoded).
	Start string `json:"start"`
	// Anchor is the root hash reached by applying the proof (hex-encoded).
	Anchor string `json:"anchor"`
	// BlockHeight is the height at which this anchor root was committed.
	BlockHeight uint64 `json:"block_height"`
	// Entries is the sibling path from Start to Anchor, leaf-to-root.
	Entries []ReceiptEntry `json:"entries"`
}

// NewReceipt builds a portable receipt for key/value against t's current
// root, at the given block height.
func NewReceipt(t *Tree, key, value []byte, blockHeight uint64) *Receipt {
	t.mu.RLock()
	bits := pathBits(t.hasher, key, t.depth)
	hasher := t.hasher
	depth := t.depth
	root := append([]byte(nil), t.root...)
	t.mu.RUnlock()

	proof := t.Proof(key)
	entries := make([]ReceiptEntry, len(proof))
	for j, sibling := range proof {
		level := depth - 1 - j
		entries[j] = ReceiptEntry{
			Hash:  hex.EncodeToString(sibling),
			Right: !bits[level],
		}
	}

	leafHash := hasher.HashLeaf(value)
	return &Receipt{
		Start:       hex.EncodeToString(leafHash),
		Anchor:      hex.EncodeToString(root),
		BlockHeight: blockHeight,
		Entries:     entries,
	}
}

// Validate recomputes the root from Start through Entries using hasher and
// checks it equals Anchor. Returns nil if valid, error otherwise (fail-closed).
func (r *Receipt) Validate(hasher *xhash.Hasher) error {
	if hasher == nil {
		hasher = xhash.Default()
	}
	current, err := hex.DecodeString(r.Start)
	if err != nil {
		return fmt.Errorf("receipt.start: invalid hex: %w", err)
	}
	anchor, err := hex.DecodeString(r.Anchor)
	if err != nil {
		return fmt.Errorf("receipt.anchor: invalid hex: %w", err)
	}

	for i, entry := range r.Entries {
		sibling, err := hex.DecodeString(entry.Hash)
		if err != nil {
			return fmt.Errorf("receipt.entries[%d].hash: invalid hex: %w", i, err)
		}
		if entry.Right {
			current = hasher.HashNodes(current, sibling)
		} else {
			current = hasher.HashNodes(sibling, current)
		}
	}

	if string(current) != string(anchor) {
		return fmt.Errorf("merkle recomputation mismatch: computed=%x, expected=%x", current, anchor)
	}
	return nil
}

// ToJSON serializes the receipt.
func (r *Receipt) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ReceiptFromJSON deserializes a receipt.
func ReceiptFromJSON(data []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &r, nil
}

// ToBinary encodes the receipt as length-prefixed fields with big-endian
// integers (unlike the little-endian account and transaction encodings).
func (r *Receipt) ToBinary() ([]byte, error) {
	start, err := hex.DecodeString(r.Start)
	if err != nil {
		return nil, fmt.Errorf("receipt.start: invalid hex: %w", err)
	}
	anchor, err := hex.DecodeString(r.Anchor)
	if err != nil {
		return nil, fmt.Errorf("receipt.anchor: invalid hex: %w", err)
	}

	buf := make([]byte, 0, 32+len(start)+len(anchor))
	buf = appendLenPrefixed(buf, start)
	buf = appendLenPrefixed(buf, anchor)
	var heightLE [8]byte
	binary.BigEndian.PutUint64(heightLE[:], r.BlockHeight)
	buf = append(buf, heightLE[:]...)

	var countLE [4]byte
	binary.BigEndian.PutUint32(countLE[:], uint32(len(r.Entries)))
	buf = append(buf, countLE[:]...)
	for _, entry := range r.Entries {
		sibling, err := hex.DecodeString(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("receipt entry: invalid hex: %w", err)
		}
		buf = appendLenPrefixed(buf, sibling)
		if entry.Right {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf, nil
}

// ReceiptFromBinary decodes a receipt previously produced by ToBinary.
func ReceiptFromBinary(data []byte) (*Receipt, error) {
	rest := data
	start, rest, err := readLenPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("receipt.start: %w", err)
	}
	anchor, rest, err := readLenPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("receipt.anchor: %w", err)
	}
	if len(rest) < 8+4 {
		return nil, fmt.Errorf("receipt: truncated header")
	}
	height := binary.BigEndian.Uint64(rest[:8])
	count := binary.BigEndian.Uint32(rest[8:12])
	rest = rest[12:]

	entries := make([]ReceiptEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var sibling []byte
		sibling, rest, err = readLenPrefixed(rest)
		if err != nil {
			return nil, fmt.Errorf("receipt entry %d: %w", i, err)
		}
		if len(rest) < 1 {
			return nil, fmt.Errorf("receipt entry %d: missing direction byte", i)
		}
		entries = append(entries, ReceiptEntry{
			Hash:  hex.EncodeToString(sibling),
			Right: rest[0] == 1,
		})
		rest = rest[1:]
	}

	return &Receipt{
		Start:       hex.EncodeToString(start),
		Anchor:      hex.EncodeToString(anchor),
		BlockHeight: height,
		Entries:     entries,
	}, nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	var lenLE [4]byte
	binary.BigEndian.PutUint32(lenLE[:], uint32(len(data)))
	buf = append(buf, lenLE[:]...)
	return append(buf, data...)
}

func readLenPrefixed(data []byte) (value, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("truncated field: want %d bytes, have %d", n, len(data))
	}
	return data[:n], data[n:], nil
}
