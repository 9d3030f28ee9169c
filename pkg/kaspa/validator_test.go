// Copyright 2025 Certen Protocol

package kaspa

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

type fakeUnprocessedWithdrawals struct {
	unprocessed map[hyptypes.H256]bool
}

func (f *fakeUnprocessedWithdrawals) IsUnprocessed(messageId hyptypes.H256) (bool, error) {
	return f.unprocessed[messageId], nil
}

func testPSKT(escrow EscrowConfig, msgId hyptypes.H256) PSKT {
	return PSKT{
		Inputs: []PSKTInput{
			{
				UTXO:         UTXO{Outpoint: Outpoint{TxId: txid(1), Index: 0}, Amount: 100, ScriptPubKey: escrow.ScriptPubKey()},
				RedeemScript: escrow.RedeemScript(),
				SighashType:  SighashAllAnyoneCanPay,
				SignerCount:  escrow.Threshold,
				Signatures:   map[hyptypes.H256][]byte{},
			},
		},
		Outputs: []PSKTOutput{
			{ScriptPubKey: []byte("recipient"), Amount: 50},
			{ScriptPubKey: escrow.ScriptPubKey(), Amount: 50, IsAnchorChange: true},
		},
		Messages: []hyptypes.H256{msgId},
	}
}

func escrowWithKey(t *testing.T) (EscrowConfig, *btcec.PrivateKey) {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := hyptypes.BytesToH256(schnorr.SerializePubKey(key.PubKey()))
	return EscrowConfig{Validators: []hyptypes.H256{pub, pubkey(2), pubkey(3)}, Threshold: 2}, key
}

func TestValidateAndSign_HappyPath(t *testing.T) {
	escrow, key := escrowWithKey(t)
	msgId := txid(9)
	pskt := testPSKT(escrow, msgId)
	hub := &fakeUnprocessedWithdrawals{unprocessed: map[hyptypes.H256]bool{msgId: true}}

	signed, err := ValidateAndSign(pskt, escrow, hub, key)
	require.NoError(t, err)
	require.Len(t, signed.Inputs, 1)
	require.Len(t, signed.Inputs[0].Signatures, 1)
}

func TestValidateAndSign_RedeemScriptMismatch(t *testing.T) {
	escrow, key := escrowWithKey(t)
	msgId := txid(9)
	pskt := testPSKT(escrow, msgId)
	pskt.Inputs[0].RedeemScript = []byte("wrong")
	hub := &fakeUnprocessedWithdrawals{unprocessed: map[hyptypes.H256]bool{msgId: true}}

	_, err := ValidateAndSign(pskt, escrow, hub, key)
	require.ErrorIs(t, err, ErrRedeemScriptMismatch)
}

func TestValidateAndSign_UnprocessedWithdrawalRejected(t *testing.T) {
	escrow, key := escrowWithKey(t)
	msgId := txid(9)
	pskt := testPSKT(escrow, msgId)
	hub := &fakeUnprocessedWithdrawals{unprocessed: map[hyptypes.H256]bool{}}

	_, err := ValidateAndSign(pskt, escrow, hub, key)
	require.ErrorIs(t, err, ErrUnprocessedWithdrawal)
}

func TestValidateAndSign_MissingAnchorChangeRejected(t *testing.T) {
	escrow, key := escrowWithKey(t)
	msgId := txid(9)
	pskt := testPSKT(escrow, msgId)
	pskt.Outputs[len(pskt.Outputs)-1].IsAnchorChange = false
	hub := &fakeUnprocessedWithdrawals{unprocessed: map[hyptypes.H256]bool{msgId: true}}

	_, err := ValidateAndSign(pskt, escrow, hub, key)
	require.ErrorIs(t, err, ErrMissingAnchorChange)
}

func TestValidateAndSign_UnknownValidatorRejected(t *testing.T) {
	escrow, _ := escrowWithKey(t)
	outsider, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	msgId := txid(9)
	pskt := testPSKT(escrow, msgId)
	hub := &fakeUnprocessedWithdrawals{unprocessed: map[hyptypes.H256]bool{msgId: true}}

	_, err = ValidateAndSign(pskt, escrow, hub, outsider)
	require.ErrorIs(t, err, ErrUnknownValidator)
}
