// Copyright 2025 Certen Protocol

package kaspa

import (
	"context"
	"errors"
	"fmt"
)

// DefaultReconciliationStepBound is how many transactions backward a
// reconciliation trace will walk before giving up.
const DefaultReconciliationStepBound = 10

var (
	ErrReconciliationBoundExceeded = errors.New("kaspa: reconciliation did not reach the known anchor within the step bound; retry required")
	ErrReconciliationLineageBroken = errors.New("kaspa: reconciliation trace hit a transaction that does not spend the escrow; retry required")
)

// ReconcileAnchor traces escrow outpoints backward from a recent unspent
// UTXO to the hub's last-known anchor, bounded by maxSteps (spec
// Section 4.8, unhappy-path reconciliation). A lineage mismatch or an
// exhausted step bound both fail closed: the caller must retry with
// operator involvement rather than guess at the missing history.
func ReconcileAnchor(ctx context.Context, chain ChainSource, escrow EscrowConfig, unspent Outpoint, knownAnchor Outpoint, maxSteps int) (*ConfirmationFXG, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultReconciliationStepBound
	}

	chainOutpoints := []Outpoint{unspent}
	current := unspent
	for steps := 0; steps < maxSteps; steps++ {
		if current == knownAnchor {
			reversed := make([]Outpoint, len(chainOutpoints))
			for i, o := range chainOutpoints {
				reversed[len(chainOutpoints)-1-i] = o
			}
			return BuildConfirmationFXG(ctx, chain, reversed)
		}

		tx, err := chain.TransactionCreating(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("load transaction for outpoint %v: %w", current, err)
		}
		if !tx.Mature {
			return nil, ErrImmatureTransaction
		}
		if !tx.SpendsEscrow {
			return nil, ErrReconciliationLineageBroken
		}
		chainOutpoints = append(chainOutpoints, tx.SpendsOutpoint)
		current = tx.SpendsOutpoint
	}
	return nil, ErrReconciliationBoundExceeded
}
