// Copyright 2025 Certen Protocol

package kaspa

import (
	"errors"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

var (
	ErrBelowThreshold     = errors.New("kaspa: fewer than m validator bundles were combined")
	ErrBundleShapeMismatch = errors.New("kaspa: validator bundles do not share the same inputs and outputs")
)

// Combine merges >= threshold validator-signed PSKT bundles for the same
// withdrawal into one PSKT carrying every collected signature per input.
func Combine(bundles []PSKT, threshold int) (*PSKT, error) {
	if len(bundles) < threshold {
		return nil, ErrBelowThreshold
	}

	base := bundles[0]
	combined := PSKT{Outputs: base.Outputs, Messages: base.Messages}
	combined.Inputs = make([]PSKTInput, len(base.Inputs))
	for i, in := range base.Inputs {
		combined.Inputs[i] = PSKTInput{
			UTXO:         in.UTXO,
			RedeemScript: in.RedeemScript,
			SighashType:  in.SighashType,
			SignerCount:  in.SignerCount,
			Signatures:   map[hyptypes.H256][]byte{},
		}
	}

	for _, bundle := range bundles {
		if len(bundle.Inputs) != len(combined.Inputs) {
			return nil, ErrBundleShapeMismatch
		}
		for i, in := range bundle.Inputs {
			for signer, sig := range in.Signatures {
				combined.Inputs[i].Signatures[signer] = sig
			}
		}
	}

	for _, in := range combined.Inputs {
		if len(in.Signatures) < threshold {
			return nil, ErrBelowThreshold
		}
	}
	return &combined, nil
}

// AddRelayerFeeInput appends the relayer's own fee-paying input to a
// combined PSKT. Unlike the escrow inputs, it carries no m-of-n
// signature requirement; the relayer signs it itself once the bundle is
// finalized.
func AddRelayerFeeInput(pskt *PSKT, feeUTXO UTXO) {
	pskt.Inputs = append(pskt.Inputs, PSKTInput{
		UTXO:        feeUTXO,
		SighashType: 0x01, // SIGHASH_ALL, covers the whole finalized transaction
		SignerCount: 1,
		Signatures:  map[hyptypes.H256][]byte{},
	})
}

// BroadcastOrder returns the PSKTs of fxg in the order their outpoint
// chain requires: each subsequent transaction spends the previous
// transaction's anchor-change output, so broadcasting out of order would
// leave later transactions referencing an outpoint that doesn't exist yet.
func BroadcastOrder(fxg *WithdrawFXG) []PSKT {
	return fxg.PSKTs
}
