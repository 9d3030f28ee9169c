// Copyright 2025 Certen Protocol

package store

import (
	"encoding/json"
	"fmt"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// MerkleInsertionStore persists leaf_index -> MerkleTreeInsertion, the
// canonical proof-of-presence record validators replay to rebuild their
// incremental tree on restart.
type MerkleInsertionStore struct {
	kv     KV
	origin hyptypes.Domain
}

func NewMerkleInsertionStore(kv KV, origin hyptypes.Domain) *MerkleInsertionStore {
	return &MerkleInsertionStore{kv: kv, origin: origin}
}

func (s *MerkleInsertionStore) key(leafIndex uint32) []byte {
	return []byte(fmt.Sprintf("merkle:%d:leaf:%010d", s.origin, leafIndex))
}

func (s *MerkleInsertionStore) byMessageIdKey(messageId hyptypes.H256) []byte {
	return append([]byte(fmt.Sprintf("merkle:%d:byid:", s.origin)), messageId[:]...)
}

func (s *MerkleInsertionStore) Store(ins hyptypes.MerkleTreeInsertion) error {
	b, err := json.Marshal(ins)
	if err != nil {
		return fmt.Errorf("marshal insertion: %w", err)
	}
	if err := s.kv.Set(s.key(ins.LeafIndex), b); err != nil {
		return err
	}
	return s.kv.Set(s.byMessageIdKey(ins.MessageId), encodeUint32(ins.LeafIndex))
}

// LeafIndexByMessageId returns the leaf index the message was inserted at,
// or ErrNotFound if the tree-ingestion loop hasn't observed it yet.
func (s *MerkleInsertionStore) LeafIndexByMessageId(messageId hyptypes.H256) (uint32, error) {
	b, err := s.kv.Get(s.byMessageIdKey(messageId))
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, ErrNotFound
	}
	return decodeUint32(b), nil
}

func (s *MerkleInsertionStore) ByLeafIndex(leafIndex uint32) (*hyptypes.MerkleTreeInsertion, error) {
	b, err := s.kv.Get(s.key(leafIndex))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	var ins hyptypes.MerkleTreeInsertion
	if err := json.Unmarshal(b, &ins); err != nil {
		return nil, fmt.Errorf("unmarshal insertion: %w", err)
	}
	return &ins, nil
}

// GasPaymentStore tracks per-origin, per-message aggregated gas payment
// totals, the data the opqueue's gas payment policy evaluates.
type GasPaymentStore struct {
	kv KV
}

func NewGasPaymentStore(kv KV) *GasPaymentStore {
	return &GasPaymentStore{kv: kv}
}

func (s *GasPaymentStore) key(origin hyptypes.Domain, messageId hyptypes.H256) []byte {
	return append([]byte(fmt.Sprintf("gaspay:%d:", origin)), messageId[:]...)
}

// AddPayment adds amount (in the origin chain's native gas-payment unit) to
// the message's running total, stored as a big-endian uint64, and returns
// the new total.
func (s *GasPaymentStore) AddPayment(origin hyptypes.Domain, messageId hyptypes.H256, amount uint64) (uint64, error) {
	cur, err := s.Total(origin, messageId)
	if err != nil {
		return 0, err
	}
	total := cur + amount
	if err := s.kv.Set(s.key(origin, messageId), encodeUint64(total)); err != nil {
		return 0, fmt.Errorf("store gas payment total: %w", err)
	}
	return total, nil
}

func (s *GasPaymentStore) Total(origin hyptypes.Domain, messageId hyptypes.H256) (uint64, error) {
	b, err := s.kv.Get(s.key(origin, messageId))
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return decodeUint64(b), nil
}
