// Copyright 2025 Certen Protocol

package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// NonceStore tracks, per signer, which transaction currently occupies each
// nonce slot plus the two scalar cursors the nonce manager advances as
// transactions finalize or free up: finalized_nonce is
// the highest nonce known finalized on chain, upper_nonce is one past the
// highest nonce ever assigned to this signer.
type NonceStore struct {
	kv     KV
	signer hyptypes.H256
}

func NewNonceStore(kv KV, signer hyptypes.H256) *NonceStore {
	return &NonceStore{kv: kv, signer: signer}
}

func (s *NonceStore) slotKey(nonce uint64) []byte {
	return []byte(fmt.Sprintf("nonce:%x:slot:%020d", s.signer, nonce))
}

func (s *NonceStore) finalizedKey() []byte {
	return []byte(fmt.Sprintf("nonce:%x:finalized", s.signer))
}

func (s *NonceStore) upperKey() []byte {
	return []byte(fmt.Sprintf("nonce:%x:upper", s.signer))
}

// Assign records that txId now occupies nonce. Whether the slot is
// currently reusable is derived from the tracked transaction's own status
// (see pkg/lander/nonce), not stored here: the Rust original has no
// separate freed flag either, it just re-checks the linked transaction.
func (s *NonceStore) Assign(nonce uint64, txId uuid.UUID) error {
	b, err := txId.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal tx uuid: %w", err)
	}
	return s.kv.Set(s.slotKey(nonce), b)
}

// TrackedTxUUID returns the transaction uuid currently assigned to nonce,
// if any.
func (s *NonceStore) TrackedTxUUID(nonce uint64) (uuid.UUID, bool, error) {
	b, err := s.kv.Get(s.slotKey(nonce))
	if err != nil {
		return uuid.UUID{}, false, err
	}
	if b == nil {
		return uuid.UUID{}, false, nil
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.UUID{}, false, fmt.Errorf("decode tracked tx uuid: %w", err)
	}
	return id, true, nil
}

func (s *NonceStore) FinalizedNonce() (uint64, error) {
	b, err := s.kv.Get(s.finalizedKey())
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return decodeUint64(b), nil
}

func (s *NonceStore) SetFinalizedNonce(nonce uint64) error {
	return s.kv.Set(s.finalizedKey(), encodeUint64(nonce))
}

// UpperNonce is one past the highest nonce ever assigned to this signer.
func (s *NonceStore) UpperNonce() (uint64, error) {
	b, err := s.kv.Get(s.upperKey())
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return decodeUint64(b), nil
}

func (s *NonceStore) SetUpperNonce(nonce uint64) error {
	return s.kv.Set(s.upperKey(), encodeUint64(nonce))
}
