// Copyright 2025 Certen Protocol

package kaspa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

func txid(b byte) hyptypes.H256 {
	var h hyptypes.H256
	h[31] = b
	return h
}

func pubkey(b byte) hyptypes.H256 {
	var h hyptypes.H256
	h[0] = b
	return h
}

func testEscrow() EscrowConfig {
	return EscrowConfig{
		Validators: []hyptypes.H256{pubkey(1), pubkey(2), pubkey(3)},
		Threshold:  2,
	}
}

func TestBuildWithdrawFXG_SelectsUtxosAndAppendsAnchorChange(t *testing.T) {
	escrow := testEscrow()
	anchor := UTXO{Outpoint: Outpoint{TxId: txid(1), Index: 0}, Amount: 100, ScriptPubKey: escrow.ScriptPubKey()}
	available := []UTXO{
		{Outpoint: Outpoint{TxId: txid(2), Index: 0}, Amount: 50, ScriptPubKey: escrow.ScriptPubKey()},
	}
	messages := []WithdrawalMessage{
		{MessageId: txid(9), RecipientScript: []byte("recipient"), Amount: 120},
	}

	fxg, err := BuildWithdrawFXG(escrow, anchor, available, messages, []byte("change"))
	require.NoError(t, err)
	require.Len(t, fxg.PSKTs, 1)

	pskt := fxg.PSKTs[0]
	require.Len(t, pskt.Inputs, 2)
	require.Len(t, pskt.Outputs, 2)

	last := pskt.Outputs[len(pskt.Outputs)-1]
	require.True(t, last.IsAnchorChange)
	require.Equal(t, uint64(30), last.Amount)

	for _, in := range pskt.Inputs {
		require.Equal(t, escrow.RedeemScript(), in.RedeemScript)
		require.Equal(t, SighashAllAnyoneCanPay, in.SighashType)
	}
}

func TestBuildWithdrawFXG_InsufficientFunds(t *testing.T) {
	escrow := testEscrow()
	anchor := UTXO{Outpoint: Outpoint{TxId: txid(1), Index: 0}, Amount: 10}
	messages := []WithdrawalMessage{{MessageId: txid(9), Amount: 100}}

	_, err := BuildWithdrawFXG(escrow, anchor, nil, messages, []byte("change"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBuildWithdrawFXG_NoMessages(t *testing.T) {
	escrow := testEscrow()
	anchor := UTXO{Outpoint: Outpoint{TxId: txid(1), Index: 0}, Amount: 10}

	_, err := BuildWithdrawFXG(escrow, anchor, nil, nil, []byte("change"))
	require.ErrorIs(t, err, ErrNoMessages)
}
