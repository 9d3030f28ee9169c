// Copyright 2025 Certen Protocol

package ismmeta

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// IsmReader resolves a recipient's configured validator set and threshold
// for a given message, normally by an eth_call against the recipient's
// multisig ISM contract.
type IsmReader interface {
	ValidatorsAndThreshold(ctx context.Context, ismAddress hyptypes.H256, message hyptypes.Message) ([]hyptypes.H256, uint8, error)
}

// CheckpointSource returns a checkpoint signed by at least threshold of
// validators for the leaf at leafIndex, or nil if no quorum has formed yet.
type CheckpointSource interface {
	FetchCheckpoint(ctx context.Context, validators []hyptypes.H256, threshold int, leafIndex uint32) (*hyptypes.MultisigSignedCheckpoint, error)
}

// ProofSource returns the canonical inclusion proof for a leaf, the one
// the origin's incremental Merkle tree actually committed.
type ProofSource interface {
	Proof(ctx context.Context, leafIndex uint32) (*hyptypes.MerkleProof, error)
}

// LeafIndexer maps a message id to the leaf index it was inserted at.
// Satisfied structurally by *store.MerkleInsertionStore.
type LeafIndexer interface {
	LeafIndexByMessageId(messageId hyptypes.H256) (uint32, error)
}

type ismEntry struct {
	validators []hyptypes.H256
	threshold  uint8
	expiresAt  time.Time
}

// Builder builds multisig ISM metadata for one origin.
type Builder struct {
	ism        IsmReader
	checkpoint CheckpointSource
	proof      ProofSource
	leaves     LeafIndexer

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[hyptypes.H256]ismEntry

	logger *log.Logger
}

type Config struct {
	IsmReader        IsmReader
	CheckpointSource CheckpointSource
	ProofSource      ProofSource
	LeafIndexer      LeafIndexer
	CacheTTL         time.Duration
	Logger           *log.Logger
}

func New(cfg Config) (*Builder, error) {
	if cfg.IsmReader == nil || cfg.CheckpointSource == nil || cfg.ProofSource == nil || cfg.LeafIndexer == nil {
		return nil, ErrMissingCollaborator
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[IsmMeta] ", log.LstdFlags)
	}
	return &Builder{
		ism:        cfg.IsmReader,
		checkpoint: cfg.CheckpointSource,
		proof:      cfg.ProofSource,
		leaves:     cfg.LeafIndexer,
		cacheTTL:   cfg.CacheTTL,
		cache:      make(map[hyptypes.H256]ismEntry),
		logger:     cfg.Logger,
	}, nil
}

// resolve returns the ISM's (validators, threshold), refreshing the
// per-ISM-address cache once the TTL has elapsed.
func (b *Builder) resolve(ctx context.Context, ismAddress hyptypes.H256, message hyptypes.Message, now time.Time) ([]hyptypes.H256, uint8, error) {
	b.mu.Lock()
	if entry, ok := b.cache[ismAddress]; ok && now.Before(entry.expiresAt) {
		b.mu.Unlock()
		return entry.validators, entry.threshold, nil
	}
	b.mu.Unlock()

	validators, threshold, err := b.ism.ValidatorsAndThreshold(ctx, ismAddress, message)
	if err != nil {
		return nil, 0, fmt.Errorf("read validators and threshold: %w", err)
	}

	b.mu.Lock()
	b.cache[ismAddress] = ismEntry{validators: validators, threshold: threshold, expiresAt: now.Add(b.cacheTTL)}
	b.mu.Unlock()
	return validators, threshold, nil
}

// BuildMetadata builds the metadata envelope for message against the
// recipient's multisig ISM, or returns (nil, nil) when no quorum checkpoint
// is available yet and the caller should retry later.
func (b *Builder) BuildMetadata(ctx context.Context, variant Variant, ismAddress hyptypes.H256, message hyptypes.Message) ([]byte, error) {
	validators, threshold, err := b.resolve(ctx, ismAddress, message, time.Now())
	if err != nil {
		return nil, err
	}
	if len(validators) == 0 {
		b.logger.Printf("no validator set configured on ism %s for chain %d", ismAddress.Hex(), message.Origin)
		return nil, nil
	}

	leafIndex, err := b.leaves.LeafIndexByMessageId(message.Id())
	if err != nil {
		return nil, fmt.Errorf("lookup leaf index: %w", err)
	}

	quorum, err := b.checkpoint.FetchCheckpoint(ctx, validators, int(threshold), leafIndex)
	if err != nil {
		return nil, fmt.Errorf("fetch quorum checkpoint: %w", err)
	}
	if quorum == nil {
		b.logger.Printf("unable to reach quorum for message %s (validators=%d threshold=%d)", message.Id().Hex(), len(validators), threshold)
		return nil, nil
	}
	if variant.RequiresMessageId() && quorum.Checkpoint.MessageId != message.Id() {
		b.logger.Printf("unable to reach quorum for message %s: signed checkpoint is for a different message", message.Id().Hex())
		return nil, nil
	}

	proof, err := b.proof.Proof(ctx, leafIndex)
	if err != nil {
		return nil, fmt.Errorf("get merkle proof: %w", err)
	}
	if proof.Root != quorum.Checkpoint.Root {
		b.logger.Printf("signed checkpoint for message %s does not match canonical root", message.Id().Hex())
		return nil, nil
	}

	var buf bytes.Buffer
	for _, t := range tokenLayout(variant) {
		buf.Write(b.buildToken(t, message, quorum.Checkpoint, proof, validators, quorum.Signatures, threshold))
	}
	return buf.Bytes(), nil
}

func (b *Builder) buildToken(
	t token,
	message hyptypes.Message,
	checkpoint hyptypes.CheckpointWithMessageId,
	proof *hyptypes.MerkleProof,
	validators []hyptypes.H256,
	signatures []hyptypes.SignedCheckpoint,
	threshold uint8,
) []byte {
	switch t {
	case tokenCheckpointRoot:
		return checkpoint.Root[:]
	case tokenCheckpointIndex:
		return uint32ToBytes(checkpoint.Index)
	case tokenCheckpointMailbox:
		return checkpoint.MerkleTreeHook[:]
	case tokenMessageId:
		id := message.Id()
		return id[:]
	case tokenMerkleProof:
		out := make([]byte, 0, hyptypes.TreeDepth*32)
		for _, h := range proof.Path {
			out = append(out, h[:]...)
		}
		return out
	case tokenThreshold:
		return []byte{threshold}
	case tokenSignatures:
		return bytes.Join(orderSignatures(validators, signatures), nil)
	case tokenValidators:
		out := make([]byte, 0, len(validators)*32)
		for _, v := range validators {
			out = append(out, v[:]...)
		}
		return out
	default:
		return nil
	}
}

func uint32ToBytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
