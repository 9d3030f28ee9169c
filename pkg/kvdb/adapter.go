// Copyright 2025 Certen Protocol
//
// Package kvdb wraps CometBFT's dbm.DB so the message, Merkle-insertion,
// gas-payment, nonce and checkpoint stores can all run against a single
// embedded, durable key-value engine instead of each picking its own.

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"
)

// LevelKV wraps a CometBFT dbm.DB (GoLevelDB in both binaries this package
// ships) and exposes the store.KV interface pkg/store's typed stores and
// pkg/checkpoint's LocalStore are built on.
type LevelKV struct {
	db dbm.DB
}

// NewLevelKV opens a LevelKV over an already-constructed CometBFT DB.
func NewLevelKV(db dbm.DB) *LevelKV {
	return &LevelKV{db: db}
}

// Get implements store.KV.
func (a *LevelKV) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	// v is nil when key is absent; store.KV callers treat that as "not present".
	return v, nil
}

// Set implements store.KV, writing synchronously so a crash right after a
// call returning nil never loses the write.
func (a *LevelKV) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Close releases the underlying database handle.
func (a *LevelKV) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
