// Copyright 2025 Certen Protocol

package kaspa

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

var (
	ErrRedeemScriptMismatch   = errors.New("kaspa: pskt input redeem script does not match the known escrow")
	ErrUnprocessedWithdrawal  = errors.New("kaspa: pskt references a message not pending as an unprocessed withdrawal on the hub")
	ErrInputNotEscrowUTXO     = errors.New("kaspa: pskt input does not pay the escrow")
	ErrMissingAnchorChange    = errors.New("kaspa: pskt's last output is not an anchor-change output on the escrow")
)

// UnprocessedWithdrawals reports whether messageId is still pending on the
// hub mailbox as an unprocessed withdrawal.
type UnprocessedWithdrawals interface {
	IsUnprocessed(messageId hyptypes.H256) (bool, error)
}

// ValidateAndSign checks a PSKT against the known escrow and the hub's
// unprocessed-withdrawal set, then produces one Schnorr signature per
// escrow input.
func ValidateAndSign(pskt PSKT, escrow EscrowConfig, hub UnprocessedWithdrawals, key *btcec.PrivateKey) (*PSKT, error) {
	if err := validate(pskt, escrow, hub); err != nil {
		return nil, err
	}

	pubkey := hyptypes.BytesToH256(schnorr.SerializePubKey(key.PubKey()))
	if _, ok := escrow.validatorIndex(pubkey); !ok {
		return nil, ErrUnknownValidator
	}

	signed := PSKT{Outputs: pskt.Outputs, Messages: pskt.Messages}
	signed.Inputs = make([]PSKTInput, len(pskt.Inputs))
	for i, in := range pskt.Inputs {
		digest := sighashDigest(pskt, i)
		sig, err := schnorr.Sign(key, digest[:])
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		out := in
		out.Signatures = map[hyptypes.H256][]byte{pubkey: sig.Serialize()}
		signed.Inputs[i] = out
	}
	return &signed, nil
}

func validate(pskt PSKT, escrow EscrowConfig, hub UnprocessedWithdrawals) error {
	if len(pskt.Inputs) == 0 {
		return ErrInputNotEscrowUTXO
	}
	redeemScript := escrow.RedeemScript()
	scriptPubKey := escrow.ScriptPubKey()
	for _, in := range pskt.Inputs {
		if string(in.RedeemScript) != string(redeemScript) {
			return ErrRedeemScriptMismatch
		}
		if string(in.UTXO.ScriptPubKey) != string(scriptPubKey) {
			return ErrInputNotEscrowUTXO
		}
	}

	for _, id := range pskt.Messages {
		pending, err := hub.IsUnprocessed(id)
		if err != nil {
			return fmt.Errorf("check unprocessed withdrawal %s: %w", id.Hex(), err)
		}
		if !pending {
			return ErrUnprocessedWithdrawal
		}
	}

	last := pskt.Outputs[len(pskt.Outputs)-1]
	if !last.IsAnchorChange || string(last.ScriptPubKey) != string(scriptPubKey) {
		return ErrMissingAnchorChange
	}
	return nil
}

// sighashDigest is a deterministic per-input signing digest binding the
// input's outpoint and sighash type to the transaction's outputs, so a
// signature can't be replayed against a different output set.
func sighashDigest(pskt PSKT, inputIndex int) [32]byte {
	in := pskt.Inputs[inputIndex]
	h := sha256.New()
	h.Write(in.UTXO.Outpoint.TxId[:])
	var idx [4]byte
	idx[0] = byte(in.UTXO.Outpoint.Index >> 24)
	idx[1] = byte(in.UTXO.Outpoint.Index >> 16)
	idx[2] = byte(in.UTXO.Outpoint.Index >> 8)
	idx[3] = byte(in.UTXO.Outpoint.Index)
	h.Write(idx[:])
	h.Write([]byte{in.SighashType})
	for _, out := range pskt.Outputs {
		h.Write(out.ScriptPubKey)
		var amount [8]byte
		binary.BigEndian.PutUint64(amount[:], out.Amount)
		h.Write(amount[:])
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
