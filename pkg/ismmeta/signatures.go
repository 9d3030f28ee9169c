// Copyright 2025 Certen Protocol

package ismmeta

import "github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"

// orderSignatures arranges signatures into the order validators appear in
// desiredOrder, returning raw 65-byte signature bytes concatenated in that
// order. Every signature must belong to a validator present in
// desiredOrder; a signed checkpoint should never carry one that isn't,
// since the quorum check already filtered against the listed set, so a
// mismatch here indicates a bug upstream, not a recoverable condition.
func orderSignatures(desiredOrder []hyptypes.H256, signatures []hyptypes.SignedCheckpoint) [][]byte {
	index := make(map[hyptypes.H256]int, len(desiredOrder))
	for i, v := range desiredOrder {
		index[v] = i
	}

	type ordered struct {
		pos int
		sig hyptypes.Signature
	}
	entries := make([]ordered, len(signatures))
	for i, s := range signatures {
		pos, ok := index[s.Signer]
		if !ok {
			panic("ismmeta: signature from validator not in the ordered set")
		}
		entries[i] = ordered{pos: pos, sig: s.Signature}
	}

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].pos > entries[j].pos; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}

	out := make([][]byte, len(entries))
	for i, e := range entries {
		b := make([]byte, len(e.sig))
		copy(b, e.sig[:])
		out[i] = b
	}
	return out
}
