// Copyright 2025 Certen Protocol
//
// Package kaspa implements the Kaspa bridge's UTXO-shaped parallel core
//: an m-of-n escrow with a deterministic redeem
// script, withdrawal PSKT construction, validator validate-and-sign,
// relayer combine/broadcast, and the confirmation loop that advances the
// hub's committed anchor.
package kaspa

import "github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"

// Outpoint identifies one UTXO by the transaction that created it and its
// output index within that transaction.
type Outpoint struct {
	TxId  hyptypes.H256
	Index uint32
}

// UTXO is a spendable output on the escrow or fee-paying address.
type UTXO struct {
	Outpoint     Outpoint
	Amount       uint64
	ScriptPubKey []byte
}

// WithdrawalMessage is one cross-chain withdrawal waiting to be bundled
// into a PSKT.
type WithdrawalMessage struct {
	MessageId        hyptypes.H256
	RecipientScript  []byte
	Amount           uint64
}

// SighashType mirrors the flag every escrow input is annotated with: each
// validator signs independently of the others' inputs and of whatever fee
// input the relayer eventually adds.
const SighashAllAnyoneCanPay byte = 0x81

// PSKTInput is one escrow input awaiting m-of-n signatures.
type PSKTInput struct {
	UTXO         UTXO
	RedeemScript []byte
	SighashType  byte
	SignerCount  int
	// Signatures accumulates per-validator Schnorr signatures keyed by the
	// validator's public key, added as bundles are combined.
	Signatures map[hyptypes.H256][]byte
}

// PSKTOutput is one output of a withdrawal transaction; at most one
// output per PSKT is the anchor change output.
type PSKTOutput struct {
	ScriptPubKey   []byte
	Amount         uint64
	IsAnchorChange bool
}

// PSKT is a partially-signed Kaspa transaction bundling one or more
// withdrawal messages.
type PSKT struct {
	Inputs   []PSKTInput
	Outputs  []PSKTOutput
	Messages []hyptypes.H256
}

// NewAnchor returns the escrow's new anchor outpoint: the PSKT's own
// anchor-change output, once the PSKT has been broadcast as transaction
// txId.
func (p PSKT) NewAnchor(txId hyptypes.H256) (Outpoint, bool) {
	for i, out := range p.Outputs {
		if out.IsAnchorChange {
			return Outpoint{TxId: txId, Index: uint32(i)}, true
		}
	}
	return Outpoint{}, false
}

// WithdrawFXG packages one or more PSKTs built against the same escrow
// state, plus Outpoints. BuildWithdrawFXG fills Outpoints with the
// outpoints its PSKT spends, the current anchor first; the new anchor is
// not in the list, as its transaction id exists only once the PSKT is
// broadcast (see PSKT.NewAnchor).
type WithdrawFXG struct {
	PSKTs     []PSKT
	Outpoints []Outpoint
}

// ConfirmationFXG reports that the escrow's committed anchor advanced
// from Old to New, and lists every withdrawal message processed by the
// transactions in between.
type ConfirmationFXG struct {
	OldAnchor           Outpoint
	NewAnchor           Outpoint
	ProcessedMessageIds []hyptypes.H256
	// Outpoints is the full chain [OldAnchor, ..., NewAnchor] a validator
	// replays to check the progress indication against its own view.
	Outpoints []Outpoint
}
