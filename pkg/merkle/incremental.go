// Copyright 2025 Certen Protocol
//
// Incremental Merkle Tree for Validator Checkpointing
//
// This is the canonical 32-level sparse Merkle accumulator a Hyperlane
// mailbox and its off-chain validator both maintain: leaves are appended
// one at a time, the root is computed by padding unfilled subtrees with a
// precomputed zero-hash at each level, and an inclusion proof for any
// known leaf is derived by recomputing the sibling subtree root at every
// level rather than storing one proof per leaf.

package merkle

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// ErrLeafIndexOutOfRange is returned when a proof is requested for a leaf
// that hasn't been ingested yet.
var ErrLeafIndexOutOfRange = errors.New("merkle: leaf index out of range")

var zeroHashes [hyptypes.TreeDepth + 1]hyptypes.H256

func init() {
	for i := 1; i <= hyptypes.TreeDepth; i++ {
		zeroHashes[i] = hashPairKeccak(zeroHashes[i-1], zeroHashes[i-1])
	}
}

func hashPairKeccak(left, right hyptypes.H256) hyptypes.H256 {
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return hyptypes.BytesToH256(crypto.Keccak256(buf))
}

// IncrementalTree is a validator's local copy of the origin mailbox's
// Merkle accumulator, rebuilt on restart by replaying MerkleTreeInsertion
// records in order.
type IncrementalTree struct {
	mu     sync.RWMutex
	leaves []hyptypes.H256
}

func NewIncrementalTree() *IncrementalTree {
	return &IncrementalTree{}
}

// Ingest appends a leaf and returns the index it landed at.
func (t *IncrementalTree) Ingest(leaf hyptypes.H256) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	index := uint32(len(t.leaves))
	t.leaves = append(t.leaves, leaf)
	return index
}

func (t *IncrementalTree) Count() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint32(len(t.leaves))
}

func (t *IncrementalTree) Root() hyptypes.H256 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return subtreeRoot(t.leaves, 0, hyptypes.TreeDepth)
}

// Proof returns the inclusion proof for the leaf at index, computed
// against the tree's current root.
func (t *IncrementalTree) Proof(index uint32) (*hyptypes.MerkleProof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if uint64(index) >= uint64(len(t.leaves)) {
		return nil, ErrLeafIndexOutOfRange
	}
	var path [hyptypes.TreeDepth]hyptypes.H256
	for level := 0; level < hyptypes.TreeDepth; level++ {
		path[level] = siblingSubtreeRoot(t.leaves, index, level)
	}
	return &hyptypes.MerkleProof{
		Root:  subtreeRoot(t.leaves, 0, hyptypes.TreeDepth),
		Index: index,
		Path:  path,
	}, nil
}

// subtreeRoot returns the root of the depth-deep subtree whose leftmost
// leaf slot is offset, treating any leaf slot beyond len(leaves) as empty
// (hence the zero-hash shortcut below, which keeps this from ever touching
// the 2^32 unfilled slots of an empty tree).
func subtreeRoot(leaves []hyptypes.H256, offset uint64, depth int) hyptypes.H256 {
	if offset >= uint64(len(leaves)) {
		return zeroHashes[depth]
	}
	if depth == 0 {
		return leaves[offset]
	}
	half := uint64(1) << uint(depth-1)
	left := subtreeRoot(leaves, offset, depth-1)
	right := subtreeRoot(leaves, offset+half, depth-1)
	return hashPairKeccak(left, right)
}

// siblingSubtreeRoot returns the root of the sibling subtree of index at
// level (0 = leaf's immediate sibling).
func siblingSubtreeRoot(leaves []hyptypes.H256, index uint32, level int) hyptypes.H256 {
	siblingIndex := (uint64(index) >> uint(level)) ^ 1
	offset := siblingIndex << uint(level)
	return subtreeRoot(leaves, offset, level)
}
