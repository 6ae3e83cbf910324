// Copyright 2025 ZKIPS Chain Contributors
//
// Sparse Merkle tree over the account key space.
//
// This implementation provides:
// - Fixed-depth sparse binary Merkle tree with implicit empty subtrees
// - O(D) inclusion/non-inclusion proof generation for any key
// - Constant-time root verification
// - Thread-safe operations for a single owning node

package merkle

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/zkipschain/zkips/pkg/xhash"
)

// DefaultDepth is the tree depth used unless a node overrides it.
const DefaultDepth = 256

// Tree is a sparse Merkle tree of configurable depth. Safe for concurrent
// readers; Update is exclusive.
type Tree struct {
	mu     sync.RWMutex
	depth  int
	hasher *xhash.Hasher

	// defaultHash[level] is the hash of an entirely-empty subtree rooted at
	// level (0 = root, depth = leaf). Precomputed once at construction.
	defaultHash [][]byte

	// nodes holds every non-default node hash ever written, keyed by
	// "level:prefix" where prefix is the node's path bits rendered as a
	// '0'/'1' string. This is the tree's authoritative persisted content;
	// anything absent here is implicitly the default hash for its level.
	nodes map[string][]byte

	// leaves holds the raw value last written for each key, for Get.
	leaves map[string][]byte

	root []byte
}

// New constructs an empty tree of the given depth using the given hasher.
// A nil hasher defaults to SHA3-256 for Merkle path derivation. depth <= 0
// falls back to DefaultDepth.
func New(depth int, hasher *xhash.Hasher) *Tree {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if hasher == nil {
		hasher = xhash.Default()
	}
	t := &Tree{
		depth:  depth,
		hasher: hasher,
		nodes:  make(map[string][]byte),
		leaves: make(map[string][]byte),
	}
	t.defaultHash = make([][]byte, depth+1)
	t.defaultHash[depth] = hasher.HashLeaf(nil)
	for level := depth - 1; level >= 0; level-- {
		t.defaultHash[level] = hasher.HashNodes(t.defaultHash[level+1], t.defaultHash[level+1])
	}
	t.root = t.defaultHash[0]
	return t
}

// Depth returns the tree's configured depth D.
func (t *Tree) Depth() int { return t.depth }

// Root returns the current root hash.
func (t *Tree) Root() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]byte, len(t.root))
	copy(out, t.root)
	return out
}

// pathBits derives the D-bit path for key: the first D bits of
// SHA3-256(key), taken LSB-first within each byte, bytes in order. This
// ordering is fixed and must not change across implementations or every
// root computed here diverges from every other.
func pathBits(hasher *xhash.Hasher, key []byte, depth int) []bool {
	digest := hasher.Hash(key)
	bits := make([]bool, depth)
	for i := 0; i < depth; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		if byteIdx >= len(digest) {
			break
		}
		bits[i] = (digest[byteIdx]>>bitIdx)&1 == 1
	}
	return bits
}

func prefixString(bits []bool, n int) string {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		if bits[i] {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

func nodeKey(level int, prefix string) string {
	return fmt.Sprintf("%d:%s", level, prefix)
}

func (t *Tree) getNode(level int, prefix string) []byte {
	if h, ok := t.nodes[nodeKey(level, prefix)]; ok {
		return h
	}
	return t.defaultHash[level]
}

func siblingPrefixAt(bits []bool, level int) string {
	prefix := prefixString(bits, level)
	if bits[level] {
		return prefix + "0"
	}
	return prefix + "1"
}

// Update writes value at key and returns the new root. A nil or empty
// value restores the default (empty) leaf at that key, pruning the
// now-default nodes along its path from the working set.
func (t *Tree) Update(key, value []byte) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	bits := pathBits(t.hasher, key, t.depth)
	leafHash := t.hasher.HashLeaf(value)
	fullPrefix := prefixString(bits, t.depth)

	if len(value) == 0 {
		delete(t.leaves, string(key))
		delete(t.nodes, nodeKey(t.depth, fullPrefix))
		leafHash = t.defaultHash[t.depth]
	} else {
		t.leaves[string(key)] = append([]byte(nil), value...)
		t.nodes[nodeKey(t.depth, fullPrefix)] = leafHash
	}

	current := leafHash
	for level := t.depth - 1; level >= 0; level-- {
		prefix := prefixString(bits, level)
		sibling := t.getNode(level+1, siblingPrefixAt(bits, level))

		var left, right []byte
		if bits[level] {
			left, right = sibling, current
		} else {
			left, right = current, sibling
		}
		current = t.hasher.HashNodes(left, right)

		if string(current) == string(t.defaultHash[level]) {
			delete(t.nodes, nodeKey(level, prefix))
		} else {
			t.nodes[nodeKey(level, prefix)] = current
		}
	}

	t.root = current
	return append([]byte(nil), t.root...)
}

// Get returns the value stored at key, or nil if the key is unset.
func (t *Tree) Get(key []byte) []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.leaves[string(key)]
	if !ok {
		return nil
	}
	return append([]byte(nil), v...)
}

// Proof returns the D sibling hashes needed to reconstruct the root for
// key, ordered leaf-to-root: proof[0] is the sibling adjacent to the leaf,
// proof[D-1] is the sibling adjacent to the root.
func (t *Tree) Proof(key []byte) [][]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bits := pathBits(t.hasher, key, t.depth)
	proof := make([][]byte, t.depth)
	for level := t.depth - 1; level >= 0; level-- {
		proof[t.depth-1-level] = t.getNode(level+1, siblingPrefixAt(bits, level))
	}
	return proof
}

// VerifyProof reconstructs the root for (key, value, proof) and compares it
// against expectedRoot in constant time. This free function form lets
// callers verify a proof without holding a live Tree.
func VerifyProof(hasher *xhash.Hasher, depth int, key, value []byte, proof [][]byte, expectedRoot []byte) bool {
	if hasher == nil {
		hasher = xhash.Default()
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	if len(proof) != depth {
		return false
	}
	bits := pathBits(hasher, key, depth)
	current := hasher.HashLeaf(value)
	for j := 0; j < depth; j++ {
		level := depth - 1 - j
		sibling := proof[j]
		var left, right []byte
		if bits[level] {
			left, right = sibling, current
		} else {
			left, right = current, sibling
		}
		current = hasher.HashNodes(left, right)
	}
	return subtle.ConstantTimeCompare(current, expectedRoot) == 1
}

// VerifyProof is the method form, bound to this tree's depth and hasher.
func (t *Tree) VerifyProof(key, value []byte, proof [][]byte, expectedRoot []byte) bool {
	t.mu.RLock()
	depth, hasher := t.depth, t.hasher
	t.mu.RUnlock()
	return VerifyProof(hasher, depth, key, value, proof, expectedRoot)
}
