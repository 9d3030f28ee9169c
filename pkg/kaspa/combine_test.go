// Copyright 2025 Certen Protocol

package kaspa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

func bundleWithSignature(escrow EscrowConfig, signer hyptypes.H256) PSKT {
	pskt := testPSKT(escrow, txid(9))
	pskt.Inputs[0].Signatures[signer] = []byte("sig")
	return pskt
}

func TestCombine_MeetsThreshold(t *testing.T) {
	escrow := testEscrow()
	bundles := []PSKT{
		bundleWithSignature(escrow, pubkey(1)),
		bundleWithSignature(escrow, pubkey(2)),
	}

	combined, err := Combine(bundles, escrow.Threshold)
	require.NoError(t, err)
	require.Len(t, combined.Inputs[0].Signatures, 2)
}

func TestCombine_BelowThreshold(t *testing.T) {
	escrow := testEscrow()
	bundles := []PSKT{bundleWithSignature(escrow, pubkey(1))}

	_, err := Combine(bundles, escrow.Threshold)
	require.ErrorIs(t, err, ErrBelowThreshold)
}

func TestCombine_ShapeMismatch(t *testing.T) {
	escrow := testEscrow()
	a := bundleWithSignature(escrow, pubkey(1))
	b := bundleWithSignature(escrow, pubkey(2))
	b.Inputs = append(b.Inputs, PSKTInput{Signatures: map[hyptypes.H256][]byte{}})

	_, err := Combine([]PSKT{a, b}, escrow.Threshold)
	require.ErrorIs(t, err, ErrBundleShapeMismatch)
}

func TestAddRelayerFeeInput_Appends(t *testing.T) {
	escrow := testEscrow()
	pskt := bundleWithSignature(escrow, pubkey(1))
	feeUTXO := UTXO{Outpoint: Outpoint{TxId: txid(5), Index: 1}, Amount: 10}

	AddRelayerFeeInput(&pskt, feeUTXO)
	require.Len(t, pskt.Inputs, 2)
	require.Equal(t, feeUTXO, pskt.Inputs[1].UTXO)
}
