// Copyright 2025 Certen Protocol
//
// Package nonce implements the EVM signer nonce manager the Lander's
// Inclusion stage uses to assign unique, contiguous, monotone nonces per
// signer.
package nonce

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

// TransactionLookup is the subset of the transaction store the nonce
// manager needs to tell whether a tracked transaction still exists.
type TransactionLookup interface {
	TransactionByUUID(id uuid.UUID) (*hyptypes.Transaction, error)
}

// Manager tracks nonce assignment state for one signer address.
type Manager struct {
	nonces *store.NonceStore
	txs    TransactionLookup
}

func NewManager(nonces *store.NonceStore, txs TransactionLookup) *Manager {
	return &Manager{nonces: nonces, txs: txs}
}

// UpdateBoundaryNonces is called on every finality tick with the signer's
// next nonce as observed on the finalized block. finalized_nonce is always
// set to n; upper_nonce only advances to n+1 when it would otherwise be at
// or behind n, and never moves backward.
func (m *Manager) UpdateBoundaryNonces(finalized uint64) error {
	if err := m.nonces.SetFinalizedNonce(finalized); err != nil {
		return err
	}
	upper, err := m.nonces.UpperNonce()
	if err != nil {
		return err
	}
	if upper <= finalized {
		return m.nonces.SetUpperNonce(finalized + 1)
	}
	return nil
}

// IdentifyNextNonce scans [finalized, upper) for the first slot this signer
// can use: an untracked slot, a slot whose tracked transaction no longer
// exists, or a slot whose tracked transaction has a terminal Dropped status
// (freed, never included). If every slot in the range is taken, it returns
// upper itself. hasFinalized mirrors the Rust finalized_nonce: Option<U256>
// — when false, the range hasn't been established yet and upper is
// returned immediately.
func (m *Manager) IdentifyNextNonce(hasFinalized bool, finalized, upper uint64) (uint64, error) {
	if !hasFinalized {
		return upper, nil
	}
	for n := finalized; n < upper; n++ {
		txId, ok, err := m.nonces.TrackedTxUUID(n)
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		tx, err := m.txs.TransactionByUUID(txId)
		if err != nil && err != store.ErrNotFound {
			return 0, err
		}
		if tx == nil || tx.Status == hyptypes.TxDropped {
			return n, nil
		}
	}
	return upper, nil
}

// AssignNonce finds the next usable nonce for txId via IdentifyNextNonce,
// assigns it (marking the slot Taken), and advances upper_nonce if the
// assignment reached it.
func (m *Manager) AssignNonce(ctx context.Context, txId uuid.UUID) (uint64, error) {
	finalized, err := m.nonces.FinalizedNonce()
	if err != nil {
		return 0, err
	}
	upper, err := m.nonces.UpperNonce()
	if err != nil {
		return 0, err
	}
	n, err := m.IdentifyNextNonce(true, finalized, upper)
	if err != nil {
		return 0, err
	}
	if err := m.nonces.Assign(n, txId); err != nil {
		return 0, fmt.Errorf("assign nonce %d: %w", n, err)
	}
	if n >= upper {
		if err := m.nonces.SetUpperNonce(n + 1); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// Release is a no-op hook called when a transaction reaches a terminal
// status. Finalized consumes the slot for good; a terminal Dropped status
// needs no bookkeeping here because IdentifyNextNonce already treats a
// Dropped tracked transaction's slot as reusable.
func (m *Manager) Release(nonce uint64, status hyptypes.TransactionStatus) error {
	return nil
}
