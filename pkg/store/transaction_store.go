// Copyright 2025 Certen Protocol

package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

const (
	txByUUIDPrefix      = "tx_by_uuid:"
	txIndexByUUIDPrefix = "tx_index_by_uuid:"
	txUUIDByIndexPrefix = "tx_uuid_by_index:"
	txHighestIndexKey   = "tx_highest_index"
)

// TransactionStore persists tx_uuid -> Transaction plus a dense,
// insertion-ordered index (index -> tx_uuid and back) so a caller can walk
// transactions in creation order without scanning every uuid key.
type TransactionStore struct {
	kv KV
}

func NewTransactionStore(kv KV) *TransactionStore {
	return &TransactionStore{kv: kv}
}

// StoreTransaction inserts or updates tx. The first store for a given uuid
// assigns it the next index; subsequent updates reuse the same index.
func (s *TransactionStore) StoreTransaction(tx *hyptypes.Transaction) error {
	_, ok, err := s.IndexByUUID(tx.Uuid)
	if err != nil {
		return err
	}
	if !ok {
		highest, err := s.HighestIndex()
		if err != nil {
			return err
		}
		index := highest + 1
		if err := s.storeHighestIndex(index); err != nil {
			return err
		}
		if err := s.kv.Set(indexByUUIDKey(tx.Uuid), encodeUint32(index)); err != nil {
			return fmt.Errorf("store tx index by uuid: %w", err)
		}
		b, err := json.Marshal(tx.Uuid)
		if err != nil {
			return fmt.Errorf("marshal tx uuid: %w", err)
		}
		if err := s.kv.Set(uuidByIndexKey(index), b); err != nil {
			return fmt.Errorf("store tx uuid by index: %w", err)
		}
	}

	b, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	if err := s.kv.Set(byUUIDKey(tx.Uuid), b); err != nil {
		return fmt.Errorf("store transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) TransactionByUUID(id uuid.UUID) (*hyptypes.Transaction, error) {
	b, err := s.kv.Get(byUUIDKey(id))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	var tx hyptypes.Transaction
	if err := json.Unmarshal(b, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

func (s *TransactionStore) IndexByUUID(id uuid.UUID) (uint32, bool, error) {
	b, err := s.kv.Get(indexByUUIDKey(id))
	if err != nil {
		return 0, false, err
	}
	if b == nil {
		return 0, false, nil
	}
	return decodeUint32(b), true, nil
}

func (s *TransactionStore) TransactionByIndex(index uint32) (*hyptypes.Transaction, error) {
	b, err := s.kv.Get(uuidByIndexKey(index))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, fmt.Errorf("unmarshal tx uuid: %w", err)
	}
	return s.TransactionByUUID(id)
}

func (s *TransactionStore) HighestIndex() (uint32, error) {
	b, err := s.kv.Get([]byte(txHighestIndexKey))
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return decodeUint32(b), nil
}

func (s *TransactionStore) storeHighestIndex(index uint32) error {
	return s.kv.Set([]byte(txHighestIndexKey), encodeUint32(index))
}

func byUUIDKey(id uuid.UUID) []byte      { return []byte(txByUUIDPrefix + id.String()) }
func indexByUUIDKey(id uuid.UUID) []byte { return []byte(txIndexByUUIDPrefix + id.String()) }
func uuidByIndexKey(index uint32) []byte { return []byte(fmt.Sprintf("%s%010d", txUUIDByIndexPrefix, index)) }

// PayloadStore persists payload_uuid -> FullPayload.
type PayloadStore struct {
	kv KV
}

func NewPayloadStore(kv KV) *PayloadStore {
	return &PayloadStore{kv: kv}
}

func (s *PayloadStore) key(id uuid.UUID) []byte {
	return []byte("payload_by_uuid:" + id.String())
}

func (s *PayloadStore) operationIndexKey(operationId uuid.UUID) []byte {
	return []byte("payload_by_operation:" + operationId.String())
}

func (s *PayloadStore) StorePayload(p *hyptypes.Payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.kv.Set(s.key(p.Id), b); err != nil {
		return fmt.Errorf("store payload: %w", err)
	}
	idb, err := json.Marshal(p.Id)
	if err != nil {
		return fmt.Errorf("marshal payload id: %w", err)
	}
	return s.kv.Set(s.operationIndexKey(p.OperationId), idb)
}

func (s *PayloadStore) PayloadByUUID(id uuid.UUID) (*hyptypes.Payload, error) {
	b, err := s.kv.Get(s.key(id))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	var p hyptypes.Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &p, nil
}

// PayloadByOperationId returns the most recently stored payload for
// operationId, the lookup Confirm uses to check delivery status.
func (s *PayloadStore) PayloadByOperationId(operationId uuid.UUID) (*hyptypes.Payload, error) {
	b, err := s.kv.Get(s.operationIndexKey(operationId))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, fmt.Errorf("unmarshal payload id: %w", err)
	}
	return s.PayloadByUUID(id)
}
