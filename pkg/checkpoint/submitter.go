// Copyright 2025 Certen Protocol

package checkpoint

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/cursor"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/indexer"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/merkle"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

// OriginRootSource gives the reorg detector the chain's own view of the
// root at an index, independent of the validator's locally replayed tree.
type OriginRootSource interface {
	RootAtIndex(ctx context.Context, index uint32) (hyptypes.H256, error)
}

// TreeProofSource adapts an IncrementalTree to ismmeta.ProofSource.
type TreeProofSource struct {
	Tree *merkle.IncrementalTree
}

func (t *TreeProofSource) Proof(ctx context.Context, leafIndex uint32) (*hyptypes.MerkleProof, error) {
	return t.Tree.Proof(leafIndex)
}

// Config configures a Submitter.
type Config struct {
	Origin         hyptypes.Domain
	MailboxAddress hyptypes.H256

	Cursor  cursor.BlockRangeCursor
	Indexer indexer.Indexer[hyptypes.MerkleTreeInsertion]

	Tree       *merkle.IncrementalTree
	Insertions *store.MerkleInsertionStore
	Checkpoints Store
	Signer      Signer
	OriginRoot  OriginRootSource

	PollInterval       time.Duration
	ReorgCheckInterval time.Duration
	ReorgPeriodBlocks  uint64

	Logger *log.Logger
}

func DefaultConfig() *Config {
	return &Config{
		PollInterval:       5 * time.Second,
		ReorgCheckInterval: time.Minute,
		Logger:             log.New(log.Writer(), "[Checkpoint] ", log.LstdFlags),
	}
}

// Submitter runs a validator's three concurrent producers: tree
// ingestion, signing, and reorg detection.
type Submitter struct {
	cfg *Config

	pendingCh chan uint32
	halted    atomic.Bool

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewSubmitter(cfg *Config) (*Submitter, error) {
	if cfg == nil || cfg.Cursor == nil || cfg.Indexer == nil || cfg.Tree == nil || cfg.Insertions == nil || cfg.Checkpoints == nil || cfg.Signer == nil || cfg.OriginRoot == nil {
		return nil, ErrMissingCollaborator
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ReorgCheckInterval <= 0 {
		cfg.ReorgCheckInterval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Checkpoint] ", log.LstdFlags)
	}
	return &Submitter{cfg: cfg, pendingCh: make(chan uint32, 256)}, nil
}

func (s *Submitter) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.runIngestion(ctx) }()
	go func() { defer wg.Done(); s.runSign(ctx) }()
	go func() { defer wg.Done(); s.runReorgDetector(ctx) }()
	go func() {
		wg.Wait()
		close(s.doneCh)
	}()

	s.cfg.Logger.Printf("submitter started (origin=%d mailbox=%s)", s.cfg.Origin, s.cfg.MailboxAddress.Hex())
	return nil
}

func (s *Submitter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
}

// Halted reports whether the reorg detector has stopped the sign loop.
func (s *Submitter) Halted() bool { return s.halted.Load() }

// runIngestion pulls new MerkleTreeInsertion events, appends them to the
// in-memory tree in order, and, on every tick the tree extends, pushes the
// new leaf indices to the sign loop.
func (s *Submitter) runIngestion(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			rng, err := s.cfg.Cursor.NextRange(ctx)
			if err != nil {
				s.cfg.Logger.Printf("next range failed: %v", err)
				continue
			}
			if rng == nil {
				continue
			}
			insertions, err := s.cfg.Indexer.FetchLogsInRange(ctx, rng.From, rng.To)
			if err != nil {
				s.cfg.Logger.Printf("fetch insertions [%d,%d] failed: %v", rng.From, rng.To, err)
				continue
			}
			for _, ins := range insertions {
				leafIndex := s.cfg.Tree.Ingest(ins.Event.MessageId)
				record := hyptypes.MerkleTreeInsertion{LeafIndex: leafIndex, MessageId: ins.Event.MessageId}
				if err := s.cfg.Insertions.Store(record); err != nil {
					s.cfg.Logger.Printf("store insertion at leaf %d failed: %v", leafIndex, err)
					continue
				}
				select {
				case s.pendingCh <- leafIndex:
				case <-s.stopCh:
					return
				}
			}
		}
	}
}

// runSign signs each pending leaf and publishes it, unless the reorg
// detector has halted signing.
func (s *Submitter) runSign(ctx context.Context) {
	for {
		select {
		case <-s.stopCh:
			return
		case leafIndex := <-s.pendingCh:
			if s.halted.Load() {
				continue
			}
			if err := s.signAndPublish(ctx, leafIndex); err != nil {
				s.cfg.Logger.Printf("sign checkpoint at leaf %d failed: %v", leafIndex, err)
			}
		}
	}
}

func (s *Submitter) signAndPublish(ctx context.Context, leafIndex uint32) error {
	insertion, err := s.cfg.Insertions.ByLeafIndex(leafIndex)
	if err != nil {
		return fmt.Errorf("load insertion: %w", err)
	}
	proof, err := s.cfg.Tree.Proof(leafIndex)
	if err != nil {
		return fmt.Errorf("compute proof: %w", err)
	}
	checkpoint := hyptypes.CheckpointWithMessageId{
		Checkpoint: hyptypes.Checkpoint{
			Origin:         s.cfg.Origin,
			MerkleTreeHook: s.cfg.MailboxAddress,
			Root:           proof.Root,
			Index:          leafIndex,
		},
		MessageId: insertion.MessageId,
	}
	signed, err := s.cfg.Signer.Sign(checkpoint)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	return s.cfg.Checkpoints.WriteCheckpoint(ctx, signed)
}

// runReorgDetector compares the locally replayed root at the validator's
// own reorg-period horizon against the chain's own root at that index.
// On a mismatch it halts the sign loop; it never un-halts itself, since a
// reorg that invalidated already-signed checkpoints requires operator
// intervention.
func (s *Submitter) runReorgDetector(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReorgCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			count := s.cfg.Tree.Count()
			if count == 0 {
				continue
			}
			index := count - 1
			if s.cfg.ReorgPeriodBlocks > 0 && count > uint32(s.cfg.ReorgPeriodBlocks) {
				index = count - uint32(s.cfg.ReorgPeriodBlocks)
			}
			localCheckpoint, err := s.cfg.Checkpoints.FetchCheckpoint(ctx, index)
			if err != nil || localCheckpoint == nil {
				continue
			}
			chainRoot, err := s.cfg.OriginRoot.RootAtIndex(ctx, index)
			if err != nil {
				s.cfg.Logger.Printf("fetch chain root at %d failed: %v", index, err)
				continue
			}
			if chainRoot != localCheckpoint.Checkpoint.Root {
				s.halted.Store(true)
				s.cfg.Logger.Printf("reorg detected at leaf %d: local root %s != chain root %s, signing halted", index, localCheckpoint.Checkpoint.Root.Hex(), chainRoot.Hex())
			}
		}
	}
}
