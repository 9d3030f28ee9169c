// Copyright 2025 Certen Protocol

package kaspa

import (
	"errors"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

var (
	ErrInsufficientFunds = errors.New("kaspa: available utxos do not cover the withdrawal amount")
	ErrNoMessages        = errors.New("kaspa: withdraw bundle needs at least one message")
)

// BuildWithdrawFXG selects UTXOs to cover batch, always spending the
// current anchor, and builds one PSKT with one recipient output per
// message plus a trailing anchor-change output.
func BuildWithdrawFXG(escrow EscrowConfig, anchor UTXO, available []UTXO, messages []WithdrawalMessage, changeScript []byte) (*WithdrawFXG, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	var total uint64
	for _, m := range messages {
		total += m.Amount
	}

	selected := []UTXO{anchor}
	covered := anchor.Amount
	for _, u := range available {
		if covered >= total {
			break
		}
		selected = append(selected, u)
		covered += u.Amount
	}
	if covered < total {
		return nil, ErrInsufficientFunds
	}

	redeemScript := escrow.RedeemScript()
	inputs := make([]PSKTInput, len(selected))
	for i, u := range selected {
		inputs[i] = PSKTInput{
			UTXO:         u,
			RedeemScript: redeemScript,
			SighashType:  SighashAllAnyoneCanPay,
			SignerCount:  escrow.Threshold,
			Signatures:   make(map[hyptypes.H256][]byte),
		}
	}

	outputs := make([]PSKTOutput, 0, len(messages)+1)
	for _, m := range messages {
		outputs = append(outputs, PSKTOutput{ScriptPubKey: m.RecipientScript, Amount: m.Amount})
	}
	change := covered - total
	outputs = append(outputs, PSKTOutput{ScriptPubKey: changeScript, Amount: change, IsAnchorChange: true})

	messageIds := make([]hyptypes.H256, len(messages))
	for i, m := range messages {
		messageIds[i] = m.MessageId
	}

	pskt := PSKT{Inputs: inputs, Outputs: outputs, Messages: messageIds}

	outpoints := make([]Outpoint, len(selected))
	for i, u := range selected {
		outpoints[i] = u.Outpoint
	}

	return &WithdrawFXG{PSKTs: []PSKT{pskt}, Outpoints: outpoints}, nil
}
