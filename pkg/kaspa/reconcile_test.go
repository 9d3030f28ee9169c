// Copyright 2025 Certen Protocol

package kaspa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconcileAnchor_ReachesKnownAnchor(t *testing.T) {
	known := Outpoint{TxId: txid(1)}
	mid := Outpoint{TxId: txid(2)}
	unspent := Outpoint{TxId: txid(3)}

	chain := &fakeChainSource{byOutpoint: map[Outpoint]ChainTransaction{
		unspent: {SpendsOutpoint: mid, Mature: true, SpendsEscrow: true},
		mid:     {SpendsOutpoint: known, Mature: true, SpendsEscrow: true},
	}}

	fxg, err := ReconcileAnchor(context.Background(), chain, testEscrow(), unspent, known, DefaultReconciliationStepBound)
	require.NoError(t, err)
	require.Equal(t, known, fxg.OldAnchor)
	require.Equal(t, unspent, fxg.NewAnchor)
}

func TestReconcileAnchor_BoundExceeded(t *testing.T) {
	known := Outpoint{TxId: txid(1)}
	unspent := Outpoint{TxId: txid(2)}

	chain := &fakeChainSource{byOutpoint: map[Outpoint]ChainTransaction{
		unspent: {SpendsOutpoint: Outpoint{TxId: txid(3)}, Mature: true, SpendsEscrow: true},
		{TxId: txid(3)}: {SpendsOutpoint: Outpoint{TxId: txid(4)}, Mature: true, SpendsEscrow: true},
	}}

	_, err := ReconcileAnchor(context.Background(), chain, testEscrow(), unspent, known, 1)
	require.ErrorIs(t, err, ErrReconciliationBoundExceeded)
}

func TestReconcileAnchor_LineageBroken(t *testing.T) {
	known := Outpoint{TxId: txid(1)}
	unspent := Outpoint{TxId: txid(2)}

	chain := &fakeChainSource{byOutpoint: map[Outpoint]ChainTransaction{
		unspent: {Mature: true, SpendsEscrow: false},
	}}

	_, err := ReconcileAnchor(context.Background(), chain, testEscrow(), unspent, known, DefaultReconciliationStepBound)
	require.ErrorIs(t, err, ErrReconciliationLineageBroken)
}
