// Copyright 2025 Certen Protocol

package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

type fakeNonceTipIndexer struct {
	count uint32
	tip   uint64
}

func (f *fakeNonceTipIndexer) FetchCountAtTip(ctx context.Context) (uint32, uint64, error) {
	return f.count, f.tip, nil
}

func TestSequenceAwareCursor_CatchesUpFromStore(t *testing.T) {
	kv := store.NewMemoryKV()
	messages := store.NewMessageStore(kv, hyptypes.Domain(1))
	require.NoError(t, messages.StoreMessage(hyptypes.Message{Origin: 1, Nonce: 0}, 100))
	require.NoError(t, messages.StoreMessage(hyptypes.Message{Origin: 1, Nonce: 1}, 150))

	indexer := &fakeNonceTipIndexer{count: 2, tip: 200}
	c := NewSequenceAwareCursor(indexer, messages, 50, 0, nil)

	rng, err := c.NextRange(context.Background())
	require.NoError(t, err)
	require.Nil(t, rng, "cursor caught up via store records should need no range")
	require.Equal(t, uint32(1), c.NextNonce()-1)
}

func TestSequenceAwareCursor_ReturnsRangeWhenBehindMailbox(t *testing.T) {
	kv := store.NewMemoryKV()
	messages := store.NewMessageStore(kv, hyptypes.Domain(1))
	indexer := &fakeNonceTipIndexer{count: 5, tip: 1000}
	c := NewSequenceAwareCursor(indexer, messages, 100, 0, nil)

	rng, err := c.NextRange(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rng)
	require.Equal(t, uint64(0), rng.From)
	require.Equal(t, uint64(100), rng.To)
}

func TestSequenceAwareCursor_AheadOfMailboxIsFatal(t *testing.T) {
	kv := store.NewMemoryKV()
	messages := store.NewMessageStore(kv, hyptypes.Domain(1))
	nonce := uint32(10)
	indexer := &fakeNonceTipIndexer{count: 3, tip: 1000}
	c := NewSequenceAwareCursor(indexer, messages, 100, 0, &nonce)

	_, err := c.NextRange(context.Background())
	require.ErrorIs(t, err, ErrCursorAheadOfMailbox)
}

type fakeTipIndexer struct {
	tip uint64
}

func (f *fakeTipIndexer) GetFinalizedBlockNumber(ctx context.Context) (uint64, error) {
	return f.tip, nil
}

func TestRateLimitedCursor_CapsRangeAtChunkSize(t *testing.T) {
	indexer := &fakeTipIndexer{tip: 1000}
	c, err := NewRateLimitedCursor(context.Background(), indexer, 100, 0)
	require.NoError(t, err)
	c.sleep = func(time.Duration) {}

	rng, err := c.NextRange(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), rng.From)
	require.Equal(t, uint64(100), rng.To)
	require.Equal(t, uint64(101), c.CurrentPosition())
}

func TestRateLimitedCursor_BacktrackOnlyMovesBackward(t *testing.T) {
	indexer := &fakeTipIndexer{tip: 1000}
	c, err := NewRateLimitedCursor(context.Background(), indexer, 100, 500)
	require.NoError(t, err)

	require.Equal(t, uint64(200), c.Backtrack(200))
	require.Equal(t, uint64(200), c.Backtrack(400), "backtrack never moves the cursor forward")
}
