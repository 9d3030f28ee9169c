// Copyright 2025 Certen Protocol

package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

type fakeIndexer struct {
	ranges map[string][]Indexed[int]
	tip    uint64
}

func (f *fakeIndexer) FetchLogsInRange(ctx context.Context, from, to uint64) ([]Indexed[int], error) {
	return f.ranges["range"], nil
}

func (f *fakeIndexer) FetchLogsByTxHash(ctx context.Context, txHash hyptypes.H256) ([]Indexed[int], error) {
	return nil, nil
}

func (f *fakeIndexer) GetFinalizedBlockNumber(ctx context.Context) (uint64, error) {
	return f.tip, nil
}

func TestDedup_DropsAlreadySeenAcrossCalls(t *testing.T) {
	logs := []Indexed[int]{
		{Event: 1, Meta: LogMeta{BlockNumber: 10, LogIndex: 2}},
		{Event: 2, Meta: LogMeta{BlockNumber: 10, LogIndex: 1}},
	}
	inner := &fakeIndexer{ranges: map[string][]Indexed[int]{"range": logs}}
	kv := store.NewMemoryKV()
	d := NewDedup[int](inner, kv, "mailbox:1")

	first, err := d.FetchLogsInRange(context.Background(), 10, 10)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 2, first[0].Event, "lower log_index sorts first")
	require.Equal(t, 1, first[1].Event)

	second, err := d.FetchLogsInRange(context.Background(), 10, 10)
	require.NoError(t, err)
	require.Empty(t, second, "already-seen logs must not be returned again")
}
