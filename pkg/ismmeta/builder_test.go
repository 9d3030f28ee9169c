// Copyright 2025 Certen Protocol

package ismmeta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

type fakeIsmReader struct {
	validators []hyptypes.H256
	threshold  uint8
	calls      int
}

func (f *fakeIsmReader) ValidatorsAndThreshold(ctx context.Context, ism hyptypes.H256, msg hyptypes.Message) ([]hyptypes.H256, uint8, error) {
	f.calls++
	return f.validators, f.threshold, nil
}

type fakeCheckpointSource struct {
	checkpoint *hyptypes.MultisigSignedCheckpoint
}

func (f *fakeCheckpointSource) FetchCheckpoint(ctx context.Context, validators []hyptypes.H256, threshold int, leafIndex uint32) (*hyptypes.MultisigSignedCheckpoint, error) {
	return f.checkpoint, nil
}

type fakeProofSource struct {
	proof *hyptypes.MerkleProof
}

func (f *fakeProofSource) Proof(ctx context.Context, leafIndex uint32) (*hyptypes.MerkleProof, error) {
	return f.proof, nil
}

type fakeLeafIndexer struct {
	index uint32
}

func (f *fakeLeafIndexer) LeafIndexByMessageId(messageId hyptypes.H256) (uint32, error) {
	return f.index, nil
}

func validator(b byte) hyptypes.H256 {
	var h hyptypes.H256
	h[31] = b
	return h
}

func newTestBuilder(t *testing.T, ism *fakeIsmReader, cp *fakeCheckpointSource, proof *fakeProofSource, leaves *fakeLeafIndexer) *Builder {
	b, err := New(Config{
		IsmReader:        ism,
		CheckpointSource: cp,
		ProofSource:      proof,
		LeafIndexer:      leaves,
		CacheTTL:         time.Minute,
	})
	require.NoError(t, err)
	return b
}

func TestBuildMetadata_MessageIdMultisig(t *testing.T) {
	msg := hyptypes.Message{Origin: 1, Destination: 2, Nonce: 5}
	validators := []hyptypes.H256{validator(1), validator(2), validator(3)}

	var root hyptypes.H256
	root[0] = 0xAA
	var hook hyptypes.H256
	hook[0] = 0xBB

	checkpoint := hyptypes.CheckpointWithMessageId{
		Checkpoint: hyptypes.Checkpoint{Origin: 1, MerkleTreeHook: hook, Root: root, Index: 7},
		MessageId:  msg.Id(),
	}
	sigs := []hyptypes.SignedCheckpoint{
		{Checkpoint: checkpoint, Signer: validators[2]},
		{Checkpoint: checkpoint, Signer: validators[0]},
	}

	ism := &fakeIsmReader{validators: validators, threshold: 2}
	cp := &fakeCheckpointSource{checkpoint: &hyptypes.MultisigSignedCheckpoint{Checkpoint: checkpoint, Signatures: sigs}}
	proof := &fakeProofSource{proof: &hyptypes.MerkleProof{Root: root, Index: 7}}
	leaves := &fakeLeafIndexer{index: 7}

	b := newTestBuilder(t, ism, cp, proof, leaves)

	meta, err := b.BuildMetadata(context.Background(), MessageIdMultisig, hyptypes.H256{}, msg)
	require.NoError(t, err)
	require.NotNil(t, meta)

	// mailbox (32) + root (32) + 2 signatures (65 each), validator[0]'s
	// signature ordered before validator[2]'s despite arriving second.
	require.Len(t, meta, 32+32+65*2)
	require.Equal(t, hook[:], meta[:32])
	require.Equal(t, root[:], meta[32:64])
}

func TestBuildMetadata_MessageIdMismatchRetriesLater(t *testing.T) {
	msg := hyptypes.Message{Origin: 1, Destination: 2, Nonce: 5}
	validators := []hyptypes.H256{validator(1)}

	otherMsgId := hyptypes.Message{Origin: 1, Destination: 2, Nonce: 99}.Id()
	checkpoint := hyptypes.CheckpointWithMessageId{
		Checkpoint: hyptypes.Checkpoint{Origin: 1, Index: 7},
		MessageId:  otherMsgId,
	}

	ism := &fakeIsmReader{validators: validators, threshold: 1}
	cp := &fakeCheckpointSource{checkpoint: &hyptypes.MultisigSignedCheckpoint{Checkpoint: checkpoint}}
	proof := &fakeProofSource{proof: &hyptypes.MerkleProof{Index: 7}}
	leaves := &fakeLeafIndexer{index: 7}

	b := newTestBuilder(t, ism, cp, proof, leaves)

	meta, err := b.BuildMetadata(context.Background(), MessageIdMultisig, hyptypes.H256{}, msg)
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestBuildMetadata_RootMismatchRetriesLater(t *testing.T) {
	msg := hyptypes.Message{Origin: 1, Destination: 2, Nonce: 5}
	validators := []hyptypes.H256{validator(1)}

	var signedRoot, canonicalRoot hyptypes.H256
	signedRoot[0] = 1
	canonicalRoot[0] = 2
	checkpoint := hyptypes.CheckpointWithMessageId{
		Checkpoint: hyptypes.Checkpoint{Origin: 1, Root: signedRoot, Index: 7},
		MessageId:  msg.Id(),
	}

	ism := &fakeIsmReader{validators: validators, threshold: 1}
	cp := &fakeCheckpointSource{checkpoint: &hyptypes.MultisigSignedCheckpoint{Checkpoint: checkpoint}}
	proof := &fakeProofSource{proof: &hyptypes.MerkleProof{Root: canonicalRoot, Index: 7}}
	leaves := &fakeLeafIndexer{index: 7}

	b := newTestBuilder(t, ism, cp, proof, leaves)

	meta, err := b.BuildMetadata(context.Background(), MessageIdMultisig, hyptypes.H256{}, msg)
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestBuildMetadata_NoQuorumRetriesLater(t *testing.T) {
	msg := hyptypes.Message{Origin: 1, Destination: 2, Nonce: 5}
	ism := &fakeIsmReader{validators: []hyptypes.H256{validator(1)}, threshold: 1}
	cp := &fakeCheckpointSource{checkpoint: nil}
	proof := &fakeProofSource{}
	leaves := &fakeLeafIndexer{index: 3}

	b := newTestBuilder(t, ism, cp, proof, leaves)

	meta, err := b.BuildMetadata(context.Background(), MessageIdMultisig, hyptypes.H256{}, msg)
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestResolve_CachesWithinTTL(t *testing.T) {
	msg := hyptypes.Message{Origin: 1, Destination: 2, Nonce: 5}
	ism := &fakeIsmReader{validators: []hyptypes.H256{validator(1)}, threshold: 1}
	cp := &fakeCheckpointSource{checkpoint: nil}
	proof := &fakeProofSource{}
	leaves := &fakeLeafIndexer{index: 3}

	b := newTestBuilder(t, ism, cp, proof, leaves)

	_, _, err := b.resolve(context.Background(), hyptypes.H256{}, msg, time.Now())
	require.NoError(t, err)
	_, _, err = b.resolve(context.Background(), hyptypes.H256{}, msg, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, ism.calls)

	_, _, err = b.resolve(context.Background(), hyptypes.H256{}, msg, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, ism.calls)
}

func TestOrderSignatures_PanicsOnUnlistedValidator(t *testing.T) {
	validators := []hyptypes.H256{validator(1)}
	sigs := []hyptypes.SignedCheckpoint{{Signer: validator(99)}}
	require.Panics(t, func() { orderSignatures(validators, sigs) })
}
