// Copyright 2025 Certen Protocol

package kaspa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

type fakeChainSource struct {
	byOutpoint map[Outpoint]ChainTransaction
}

func (f *fakeChainSource) TransactionCreating(ctx context.Context, outpoint Outpoint) (*ChainTransaction, error) {
	tx := f.byOutpoint[outpoint]
	return &tx, nil
}

func TestBuildConfirmationFXG_HappyPath(t *testing.T) {
	oldAnchor := Outpoint{TxId: txid(1)}
	mid := Outpoint{TxId: txid(2)}
	newAnchor := Outpoint{TxId: txid(3)}
	msgA, msgB := txid(10), txid(11)

	chain := &fakeChainSource{byOutpoint: map[Outpoint]ChainTransaction{
		mid:       {SpendsOutpoint: oldAnchor, Mature: true, SpendsEscrow: true, MessageIds: []hyptypes.H256{msgA}},
		newAnchor: {SpendsOutpoint: mid, Mature: true, SpendsEscrow: true, MessageIds: []hyptypes.H256{msgB}},
	}}

	fxg, err := BuildConfirmationFXG(context.Background(), chain, []Outpoint{oldAnchor, mid, newAnchor})
	require.NoError(t, err)
	require.Equal(t, oldAnchor, fxg.OldAnchor)
	require.Equal(t, newAnchor, fxg.NewAnchor)
	require.ElementsMatch(t, []hyptypes.H256{msgA, msgB}, fxg.ProcessedMessageIds)
}

func TestBuildConfirmationFXG_LineageMismatch(t *testing.T) {
	oldAnchor := Outpoint{TxId: txid(1)}
	newAnchor := Outpoint{TxId: txid(3)}

	chain := &fakeChainSource{byOutpoint: map[Outpoint]ChainTransaction{
		newAnchor: {SpendsOutpoint: Outpoint{TxId: txid(99)}, Mature: true, SpendsEscrow: true},
	}}

	_, err := BuildConfirmationFXG(context.Background(), chain, []Outpoint{oldAnchor, newAnchor})
	require.ErrorIs(t, err, ErrLineageMismatch)
}

func TestValidateConfirmation_MessageIdMismatch(t *testing.T) {
	oldAnchor := Outpoint{TxId: txid(1)}
	newAnchor := Outpoint{TxId: txid(3)}

	chain := &fakeChainSource{byOutpoint: map[Outpoint]ChainTransaction{
		newAnchor: {SpendsOutpoint: oldAnchor, Mature: true, SpendsEscrow: true, MessageIds: []hyptypes.H256{txid(10)}},
	}}

	fxg := &ConfirmationFXG{
		OldAnchor:           oldAnchor,
		NewAnchor:           newAnchor,
		Outpoints:           []Outpoint{oldAnchor, newAnchor},
		ProcessedMessageIds: []hyptypes.H256{txid(11)},
	}

	err := ValidateConfirmation(context.Background(), chain, fxg)
	require.ErrorIs(t, err, ErrMessageIdsMismatch)
}
