// Copyright 2025 Certen Protocol

package kaspa

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// EscrowConfig is the m-of-n validator set backing one Kaspa escrow.
type EscrowConfig struct {
	Validators []hyptypes.H256 // validator Schnorr public keys, 32-byte x-only
	Threshold  int
}

// RedeemScript deterministically encodes the escrow's m-of-n condition in
// OP_CHECKMULTISIG layout: the threshold m, each validator key in order,
// then n and the opcode. Any two escrows with the same validator set and threshold
// produce byte-identical scripts.
func (e EscrowConfig) RedeemScript() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(e.Threshold))
	for _, v := range e.Validators {
		buf.WriteByte(32)
		buf.Write(v[:])
	}
	buf.WriteByte(byte(len(e.Validators)))
	buf.WriteByte(0xae) // OP_CHECKMULTISIG
	return buf.Bytes()
}

// ScriptPubKey is the P2SH script paying to this escrow: OP_HASH256
// <scripthash> OP_EQUAL.
func (e EscrowConfig) ScriptPubKey() []byte {
	hash := sha256.Sum256(e.RedeemScript())
	var buf bytes.Buffer
	buf.WriteByte(0xaa) // OP_HASH256
	buf.WriteByte(32)
	buf.Write(hash[:])
	buf.WriteByte(0x87) // OP_EQUAL
	return buf.Bytes()
}

func (e EscrowConfig) Matches(scriptPubKey []byte) bool {
	return bytes.Equal(scriptPubKey, e.ScriptPubKey())
}

func (e EscrowConfig) validatorIndex(pubkey hyptypes.H256) (int, bool) {
	for i, v := range e.Validators {
		if v == pubkey {
			return i, true
		}
	}
	return 0, false
}

var ErrUnknownValidator = fmt.Errorf("kaspa: signature from a validator not in the escrow's key set")
