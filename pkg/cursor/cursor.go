// Copyright 2025 Certen Protocol
//
// Package cursor implements the two block-range cursors the relayer's
// syncers pull from: a sequence-aware cursor for contracts with a gapless
// dispatch nonce (the Mailbox), and a rate-limited cursor for everything
// else. Both satisfy BlockRangeCursor.
package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

// Range is one block range to index, inclusive of both From and To, plus
// the estimated time left until the cursor reaches the chain tip.
type Range struct {
	From uint64
	To   uint64
	ETA  time.Duration
}

// BlockRangeCursor is implemented by both cursor variants.
type BlockRangeCursor interface {
	CurrentPosition() uint64
	Tip() uint64
	NextRange(ctx context.Context) (*Range, error)
	Backtrack(fromBlock uint64) uint64
}

// NonceTipIndexer is the subset of the Mailbox indexer the sequence-aware
// cursor needs: the dispatch count and block height observed at the chain's
// current finalized tip.
type NonceTipIndexer interface {
	FetchCountAtTip(ctx context.Context) (count uint32, tip uint64, err error)
}

// ErrCursorAheadOfMailbox is returned when the cursor's next nonce exceeds
// the mailbox's reported dispatch count, which should never happen for a
// correctly operating chain. No range is issued when it is returned.
var ErrCursorAheadOfMailbox = fmt.Errorf("cursor: sequence cursor is ahead of mailbox dispatch count")

// SequenceAwareCursor tracks the Mailbox's dispatch nonce and derives block
// ranges from it, so it never has to re-scan a range it has already fully
// indexed by nonce even if it falls behind on block height bookkeeping.
type SequenceAwareCursor struct {
	indexer     NonceTipIndexer
	messages    *store.MessageStore
	chunkSize   uint64
	fromBlock   uint64
	messageNonce *uint32
}

func NewSequenceAwareCursor(indexer NonceTipIndexer, messages *store.MessageStore, chunkSize, fromBlock uint64, messageNonce *uint32) *SequenceAwareCursor {
	return &SequenceAwareCursor{
		indexer:      indexer,
		messages:     messages,
		chunkSize:    chunkSize,
		fromBlock:    fromBlock,
		messageNonce: messageNonce,
	}
}

func (c *SequenceAwareCursor) CurrentPosition() uint64 { return c.fromBlock }

// Tip is unused by the sequence-aware cursor; nonce count is the source of
// truth for how far behind it is, not block height.
func (c *SequenceAwareCursor) Tip() uint64 { return 0 }

// NextNonce is the next dispatch nonce this cursor needs to observe.
func (c *SequenceAwareCursor) NextNonce() uint32 {
	if c.messageNonce == nil {
		return 0
	}
	return *c.messageNonce + 1
}

func (c *SequenceAwareCursor) dispatchedBlockByNonce(nonce uint32) (uint64, bool) {
	block, ok, err := c.messages.DispatchedBlockNumberByNonce(nonce)
	if err != nil || !ok {
		return 0, false
	}
	return block, true
}

// NextRange advances message_nonce as far as the store already has
// contiguous dispatched-block records for, then compares against the
// mailbox's live count. If the cursor's next nonce exceeds the mailbox
// count the chain state is inconsistent: it returns ErrCursorAheadOfMailbox
// and issues no range, rather than silently skipping ranges; a later call
// checks again.
func (c *SequenceAwareCursor) NextRange(ctx context.Context) (*Range, error) {
	for {
		next := c.NextNonce()
		block, ok := c.dispatchedBlockByNonce(next)
		if !ok {
			break
		}
		n := next
		c.messageNonce = &n
		c.fromBlock = block
	}

	count, tip, err := c.indexer.FetchCountAtTip(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch mailbox count at tip: %w", err)
	}
	cursorCount := c.NextNonce()

	switch {
	case cursorCount == count:
		c.fromBlock = tip
		return nil, nil
	case cursorCount < count:
		from := c.fromBlock
		to := tip
		if from+c.chunkSize < to {
			to = from + c.chunkSize
		}
		c.fromBlock = to + 1
		return &Range{From: from, To: to}, nil
	default:
		return nil, ErrCursorAheadOfMailbox
	}
}

// Backtrack rewinds to the block the last known-synced message was
// dispatched in, or to fromBlock if no message has been synced yet.
func (c *SequenceAwareCursor) Backtrack(fromBlock uint64) uint64 {
	if c.messageNonce != nil {
		if block, ok := c.dispatchedBlockByNonce(*c.messageNonce); ok {
			c.fromBlock = block
			return c.fromBlock
		}
	}
	c.fromBlock = fromBlock
	return c.fromBlock
}

// TipIndexer is the subset of an Indexer the rate-limited cursor needs.
type TipIndexer interface {
	GetFinalizedBlockNumber(ctx context.Context) (uint64, error)
}

// RateLimitedCursor paces indexing against how far behind the chain tip the
// cursor is: it sleeps briefly while there's a full chunk of backlog, longer
// once it's caught up, and only re-queries the tip at most once every 30s.
type RateLimitedCursor struct {
	indexer       TipIndexer
	tip           uint64
	lastTipUpdate time.Time
	chunkSize     uint64
	from          uint64
	eta           *etaCalculator
	now           func() time.Time
	sleep         func(time.Duration)
}

func NewRateLimitedCursor(ctx context.Context, indexer TipIndexer, chunkSize, initialHeight uint64) (*RateLimitedCursor, error) {
	tip, err := indexer.GetFinalizedBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get finalized block number: %w", err)
	}
	now := time.Now()
	return &RateLimitedCursor{
		indexer:       indexer,
		tip:           tip,
		chunkSize:     chunkSize,
		lastTipUpdate: now,
		from:          initialHeight,
		eta:           newEtaCalculator(initialHeight, now),
		now:           time.Now,
		sleep:         time.Sleep,
	}, nil
}

func (c *RateLimitedCursor) CurrentPosition() uint64 { return c.from }
func (c *RateLimitedCursor) Tip() uint64             { return c.tip }

func (c *RateLimitedCursor) rateLimit(ctx context.Context) error {
	updateTip := c.now().Sub(c.lastTipUpdate) >= 30*time.Second
	switch {
	case c.from+c.chunkSize < c.tip:
		c.sleep(100 * time.Millisecond)
	case !updateTip:
		c.sleep(10 * time.Second)
	}

	if !updateTip {
		return nil
	}
	tip, err := c.indexer.GetFinalizedBlockNumber(ctx)
	if err != nil {
		c.sleep(10 * time.Second)
		return fmt.Errorf("get finalized block number: %w", err)
	}
	c.lastTipUpdate = c.now()
	c.tip = tip
	return nil
}

func (c *RateLimitedCursor) NextRange(ctx context.Context) (*Range, error) {
	if err := c.rateLimit(ctx); err != nil {
		return nil, err
	}
	to := c.tip
	if c.from+c.chunkSize < to {
		to = c.from + c.chunkSize
	}
	from := c.from
	if to < c.chunkSize {
		from = 0
	} else if to-c.chunkSize > from {
		from = to - c.chunkSize
	}
	c.from = to + 1

	eta := time.Duration(0)
	if to < c.tip {
		eta = c.eta.calculate(c.now(), from, c.tip)
	}
	return &Range{From: from, To: to, ETA: eta}, nil
}

func (c *RateLimitedCursor) Backtrack(startFrom uint64) uint64 {
	if startFrom < c.from {
		c.from = startFrom
	}
	return c.from
}
