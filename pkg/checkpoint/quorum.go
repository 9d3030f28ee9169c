// Copyright 2025 Certen Protocol

package checkpoint

import (
	"context"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// MultisigCheckpointSyncer polls each validator's own checkpoint store for
// a signed checkpoint at a given leaf index and aggregates signatures that
// agree on the same checkpoint, the collaborator ismmeta.Builder needs to
// fetch a quorum checkpoint.
type MultisigCheckpointSyncer struct {
	stores map[hyptypes.H256]Store
}

func NewMultisigCheckpointSyncer(stores map[hyptypes.H256]Store) *MultisigCheckpointSyncer {
	return &MultisigCheckpointSyncer{stores: stores}
}

// FetchCheckpoint polls validators' stores for the leaf at leafIndex and
// returns the first checkpoint that accumulates at least threshold
// signatures over the identical (root, message_id), restricted to the
// given validator set. It returns (nil, nil) if no quorum has formed.
func (m *MultisigCheckpointSyncer) FetchCheckpoint(ctx context.Context, validators []hyptypes.H256, threshold int, leafIndex uint32) (*hyptypes.MultisigSignedCheckpoint, error) {
	type group struct {
		checkpoint hyptypes.CheckpointWithMessageId
		sigs       []hyptypes.SignedCheckpoint
	}
	groups := make(map[hyptypes.H256][]group) // keyed by root

	for _, validator := range validators {
		store, ok := m.stores[validator]
		if !ok {
			continue
		}
		signed, err := store.FetchCheckpoint(ctx, leafIndex)
		if err != nil || signed == nil {
			continue
		}
		if signed.Checkpoint.Index != leafIndex {
			continue
		}
		bucket := groups[signed.Checkpoint.Root]
		placed := false
		for i := range bucket {
			if bucket[i].checkpoint.MessageId == signed.Checkpoint.MessageId {
				bucket[i].sigs = append(bucket[i].sigs, *signed)
				placed = true
				break
			}
		}
		if !placed {
			bucket = append(bucket, group{checkpoint: signed.Checkpoint, sigs: []hyptypes.SignedCheckpoint{*signed}})
		}
		groups[signed.Checkpoint.Root] = bucket
	}

	for _, bucket := range groups {
		for _, g := range bucket {
			if len(g.sigs) >= threshold {
				return &hyptypes.MultisigSignedCheckpoint{Checkpoint: g.checkpoint, Signatures: g.sigs}, nil
			}
		}
	}
	return nil, nil
}
