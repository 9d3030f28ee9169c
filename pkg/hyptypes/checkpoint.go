// Copyright 2025 Certen Protocol

package hyptypes

import "fmt"

// Checkpoint is a validator's statement that the Merkle tree on chain
// Origin, under tree-hook address MerkleTreeHook, has root Root at leaf
// index Index.
type Checkpoint struct {
	Origin         Domain
	MerkleTreeHook H256
	Root           H256
	Index          uint32
}

func (c Checkpoint) String() string {
	return fmt.Sprintf("Checkpoint{origin=%d hook=%s root=%s index=%d}", c.Origin, c.MerkleTreeHook.Hex(), c.Root.Hex(), c.Index)
}

// CheckpointWithMessageId additionally binds the id of the leaf at Index,
// required by the MessageId and MerkleRoot multisig ISM variants.
type CheckpointWithMessageId struct {
	Checkpoint
	MessageId H256
}

// Signature is a 65-byte recoverable ECDSA signature (r || s || v), the
// format every multisig ISM variant concatenates raw into its metadata.
type Signature [65]byte

// SignedCheckpoint pairs a checkpoint with one validator's signature over
// it.
type SignedCheckpoint struct {
	Checkpoint CheckpointWithMessageId
	Signature  Signature
	Signer     H256 // validator address, recovered or supplied out of band
}

// MultisigSignedCheckpoint aggregates signatures from >= threshold
// validators over the identical checkpoint.
type MultisigSignedCheckpoint struct {
	Checkpoint CheckpointWithMessageId
	Signatures []SignedCheckpoint
}

// TreeDepth is the canonical incremental Merkle tree depth every Hyperlane
// mailbox uses.
const TreeDepth = 32

// MerkleProof is an inclusion proof for one leaf: the sibling hash at each
// level from the leaf up to the root.
type MerkleProof struct {
	Root  H256
	Index uint32
	Path  [TreeDepth]H256
}
