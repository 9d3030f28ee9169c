// Copyright 2025 Certen Protocol
//
// Package indexer defines the per-contract log-fetching contract every
// chain adapter implements and a dedup layer that sits
// in front of it so the syncer never persists the same log twice across
// overlapping range calls.
package indexer

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

// LogMeta is the chain-level provenance of one indexed log.
type LogMeta struct {
	BlockNumber uint64
	BlockHash   hyptypes.H256
	TxHash      hyptypes.H256
	TxIndex     uint64
	LogIndex    uint64
}

// Less orders logs by (block_number, log_index), the order fetch_logs_in_
// range must return them in.
func (m LogMeta) Less(other LogMeta) bool {
	if m.BlockNumber != other.BlockNumber {
		return m.BlockNumber < other.BlockNumber
	}
	return m.LogIndex < other.LogIndex
}

// Indexed pairs a decoded event with the log it was read from.
type Indexed[T any] struct {
	Event T
	Meta  LogMeta
}

// Indexer is implemented once per contract per chain. FetchLogsInRange and
// FetchLogsByTxHash must each return results sorted by (block_number,
// log_index) and free of duplicates within that single call; the Dedup
// wrapper below handles cross-call deduplication.
type Indexer[T any] interface {
	FetchLogsInRange(ctx context.Context, from, to uint64) ([]Indexed[T], error)
	GetFinalizedBlockNumber(ctx context.Context) (uint64, error)
	FetchLogsByTxHash(ctx context.Context, txHash hyptypes.H256) ([]Indexed[T], error)
}

// SeenKey computes the dedup key for one indexed log, keyed by the
// transaction and position within it rather than by decoded content, since
// an identical event can legitimately appear twice in one transaction.
func SeenKey(m LogMeta) string {
	return fmt.Sprintf("%x:%d", m.TxHash[:], m.LogIndex)
}

// Dedup wraps an Indexer so that FetchLogsInRange never returns a log whose
// (tx_hash, log_index) it has already returned in a prior call, persisting
// the seen-set in kv so the guarantee survives restarts.
type Dedup[T any] struct {
	inner Indexer[T]
	kv    store.KV
	scope string
}

func NewDedup[T any](inner Indexer[T], kv store.KV, scope string) *Dedup[T] {
	return &Dedup[T]{inner: inner, kv: kv, scope: scope}
}

func (d *Dedup[T]) seenEntryKey(m LogMeta) []byte {
	return []byte(d.scope + ":seen:" + SeenKey(m))
}

func (d *Dedup[T]) FetchLogsInRange(ctx context.Context, from, to uint64) ([]Indexed[T], error) {
	logs, err := d.inner.FetchLogsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return d.filterAndMark(logs)
}

func (d *Dedup[T]) FetchLogsByTxHash(ctx context.Context, txHash hyptypes.H256) ([]Indexed[T], error) {
	logs, err := d.inner.FetchLogsByTxHash(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return d.filterAndMark(logs)
}

func (d *Dedup[T]) GetFinalizedBlockNumber(ctx context.Context) (uint64, error) {
	return d.inner.GetFinalizedBlockNumber(ctx)
}

func (d *Dedup[T]) filterAndMark(logs []Indexed[T]) ([]Indexed[T], error) {
	sort.Slice(logs, func(i, j int) bool { return logs[i].Meta.Less(logs[j].Meta) })

	out := make([]Indexed[T], 0, len(logs))
	for _, l := range logs {
		key := d.seenEntryKey(l.Meta)
		seen, err := d.kv.Get(key)
		if err != nil {
			return nil, err
		}
		if seen != nil {
			continue
		}
		if err := d.kv.Set(key, []byte{1}); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
