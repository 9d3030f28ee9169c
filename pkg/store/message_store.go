// Copyright 2025 Certen Protocol

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// MessageStore persists dispatched messages keyed by nonce, plus the two
// reverse indexes the cursor and indexer need: message id -> nonce, and
// nonce -> dispatched block number (used by the sequence-aware cursor to
// resolve backtrack targets without rescanning).
type MessageStore struct {
	kv     KV
	origin hyptypes.Domain
}

func NewMessageStore(kv KV, origin hyptypes.Domain) *MessageStore {
	return &MessageStore{kv: kv, origin: origin}
}

func (s *MessageStore) keyByNonce(nonce uint32) []byte {
	return []byte(fmt.Sprintf("msg:%d:nonce:%010d", s.origin, nonce))
}

func (s *MessageStore) keyIdToNonce(id hyptypes.H256) []byte {
	return append([]byte(fmt.Sprintf("msg:%d:id:", s.origin)), id[:]...)
}

func (s *MessageStore) keyDispatchedBlock(nonce uint32) []byte {
	return []byte(fmt.Sprintf("msg:%d:block:%010d", s.origin, nonce))
}

// StoreMessage records a dispatched message along with the block it was
// observed in. Messages are immutable once dispatched, so this is always
// an insert, never an update.
func (s *MessageStore) StoreMessage(msg hyptypes.Message, dispatchedBlock uint64) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.kv.Set(s.keyByNonce(msg.Nonce), b); err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	if err := s.kv.Set(s.keyIdToNonce(msg.Id()), encodeUint32(msg.Nonce)); err != nil {
		return fmt.Errorf("store message id index: %w", err)
	}
	if err := s.kv.Set(s.keyDispatchedBlock(msg.Nonce), encodeUint64(dispatchedBlock)); err != nil {
		return fmt.Errorf("store dispatched block: %w", err)
	}
	return nil
}

func (s *MessageStore) MessageByNonce(nonce uint32) (*hyptypes.Message, error) {
	b, err := s.kv.Get(s.keyByNonce(nonce))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	var msg hyptypes.Message
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) NonceByMessageId(id hyptypes.H256) (uint32, bool, error) {
	b, err := s.kv.Get(s.keyIdToNonce(id))
	if err != nil {
		return 0, false, err
	}
	if b == nil {
		return 0, false, nil
	}
	return decodeUint32(b), true, nil
}

// DispatchedBlockNumberByNonce backs the sequence cursor's backtrack
// target lookup.
func (s *MessageStore) DispatchedBlockNumberByNonce(nonce uint32) (uint64, bool, error) {
	b, err := s.kv.Get(s.keyDispatchedBlock(nonce))
	if err != nil {
		return 0, false, err
	}
	if b == nil {
		return 0, false, nil
	}
	return decodeUint64(b), true, nil
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
