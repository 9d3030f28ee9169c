// Copyright 2025 Certen Protocol
//
// Confirmation signatures are aggregated BLS12-381 signatures rather than
// the per-input Schnorr signatures a withdrawal PSKT carries: a
// confirmation attests to the whole FXG at once, so every validator's
// signature collapses into one aggregate instead of one per input.
package kaspa

import (
	"errors"
	"fmt"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/crypto/bls"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

var (
	ErrConfirmationQuorumNotMet = errors.New("kaspa: fewer than threshold validators signed the confirmation")
	ErrConfirmationSignerUnknown = errors.New("kaspa: confirmation signature from a validator outside the escrow set")
)

// ConfirmationDigest is the message every validator's BLS signature
// commits to: the anchors and ordered processed-message list, so an
// aggregate signature can't be replayed against a different FXG.
func ConfirmationDigest(fxg *ConfirmationFXG) []byte {
	h := bls.ComputeMessageHash(bls.DomainKaspaConfirmation,
		fxg.OldAnchor.TxId[:], fxg.NewAnchor.TxId[:], messageIdsBytes(fxg.ProcessedMessageIds))
	return h[:]
}

func messageIdsBytes(ids []hyptypes.H256) []byte {
	buf := make([]byte, 0, 32*len(ids))
	for _, id := range ids {
		buf = append(buf, id[:]...)
	}
	return buf
}

// SignConfirmation produces one validator's BLS signature over fxg.
func SignConfirmation(key *bls.PrivateKey, fxg *ConfirmationFXG) *bls.Signature {
	return key.Sign(ConfirmationDigest(fxg))
}

// AggregateConfirmationSignatures combines per-validator BLS signatures
// into a single aggregate, failing closed if fewer than threshold
// distinct escrow validators signed.
func AggregateConfirmationSignatures(escrow EscrowConfig, signers []hyptypes.H256, signatures []*bls.Signature) (*bls.Signature, error) {
	if len(signers) != len(signatures) {
		return nil, fmt.Errorf("kaspa: signer and signature counts differ")
	}
	distinct := make(map[hyptypes.H256]bool)
	for _, s := range signers {
		if _, ok := escrow.validatorIndex(s); !ok {
			return nil, ErrConfirmationSignerUnknown
		}
		distinct[s] = true
	}
	if len(distinct) < escrow.Threshold {
		return nil, ErrConfirmationQuorumNotMet
	}
	return bls.AggregateSignatures(signatures)
}

// VerifyConfirmationAggregate checks an aggregate signature against the
// public keys of exactly the validators whose signatures it aggregates,
// the check a relayer performs before broadcasting a ConfirmationFXG on to
// the hub.
func VerifyConfirmationAggregate(pubkeys []*bls.PublicKey, aggSig *bls.Signature, fxg *ConfirmationFXG) bool {
	return bls.VerifyAggregateSignature(aggSig, pubkeys, ConfirmationDigest(fxg))
}
