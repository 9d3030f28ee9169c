// Copyright 2025 Certen Protocol

package kaspa

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

var (
	ErrInsufficientOutpoints = errors.New("kaspa: confirmation needs at least the old and new anchor outpoints")
	ErrAnchorMismatch        = errors.New("kaspa: confirmation's outpoint chain does not start or end at the reported anchors")
	ErrLineageMismatch       = errors.New("kaspa: a transaction in the outpoint chain does not spend the previous outpoint")
	ErrImmatureTransaction   = errors.New("kaspa: a transaction in the outpoint chain has not yet reached finality")
	ErrMessageIdsMismatch    = errors.New("kaspa: collected message ids do not match the confirmation's processed list")
)

// ChainTransaction is the data a confirmation walk needs about one
// transaction in the outpoint chain: which prior outpoint it spends and
// which withdrawal message ids its payload carries.
type ChainTransaction struct {
	SpendsOutpoint Outpoint
	MessageIds     []hyptypes.H256
	Mature         bool
	// SpendsEscrow is false when the transaction's spent input doesn't pay
	// the escrow's known script, the lineage break reconciliation must
	// fail closed on.
	SpendsEscrow bool
}

// ChainSource resolves the transaction that created a given outpoint, the
// collaborator BuildConfirmationFXG and ValidateConfirmation need to walk
// the chain between two anchors.
type ChainSource interface {
	TransactionCreating(ctx context.Context, outpoint Outpoint) (*ChainTransaction, error)
}

// BuildConfirmationFXG walks the outpoint chain from oldAnchor to
// newAnchor (inclusive of both ends), collecting every withdrawal message
// id processed by the transactions in between.
func BuildConfirmationFXG(ctx context.Context, chain ChainSource, outpoints []Outpoint) (*ConfirmationFXG, error) {
	if len(outpoints) < 2 {
		return nil, ErrInsufficientOutpoints
	}

	var processed []hyptypes.H256
	for i := 1; i < len(outpoints); i++ {
		tx, err := chain.TransactionCreating(ctx, outpoints[i])
		if err != nil {
			return nil, fmt.Errorf("load transaction for outpoint %d: %w", i, err)
		}
		if !tx.Mature {
			return nil, ErrImmatureTransaction
		}
		if tx.SpendsOutpoint != outpoints[i-1] {
			return nil, ErrLineageMismatch
		}
		processed = append(processed, tx.MessageIds...)
	}

	return &ConfirmationFXG{
		OldAnchor:           outpoints[0],
		NewAnchor:           outpoints[len(outpoints)-1],
		ProcessedMessageIds: processed,
		Outpoints:           outpoints,
	}, nil
}

// ValidateConfirmation replays fxg's outpoint chain independently and
// checks that it produces the same anchors and processed-message list the
// relayer reported, the check a validator performs before countersigning
// a ConfirmationFXG.
func ValidateConfirmation(ctx context.Context, chain ChainSource, fxg *ConfirmationFXG) error {
	if len(fxg.Outpoints) < 2 {
		return ErrInsufficientOutpoints
	}
	if fxg.Outpoints[0] != fxg.OldAnchor || fxg.Outpoints[len(fxg.Outpoints)-1] != fxg.NewAnchor {
		return ErrAnchorMismatch
	}

	replayed, err := BuildConfirmationFXG(ctx, chain, fxg.Outpoints)
	if err != nil {
		return err
	}
	if !sameMessageIds(replayed.ProcessedMessageIds, fxg.ProcessedMessageIds) {
		return ErrMessageIdsMismatch
	}
	return nil
}

func sameMessageIds(a, b []hyptypes.H256) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[hyptypes.H256]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
	}
	for _, count := range seen {
		if count != 0 {
			return false
		}
	}
	return true
}
