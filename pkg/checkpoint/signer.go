// Copyright 2025 Certen Protocol

package checkpoint

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// Signer produces a validator signature over a checkpoint.
type Signer interface {
	Sign(checkpoint hyptypes.CheckpointWithMessageId) (hyptypes.SignedCheckpoint, error)
	Address() hyptypes.H256
}

// EcdsaSigner signs checkpoints the way an EVM validator does: over the
// same (domain, mailbox, root, index, message_id) digest the destination
// ISM recovers the signer from.
type EcdsaSigner struct {
	key     *ecdsa.PrivateKey
	address hyptypes.H256
}

func NewEcdsaSigner(key *ecdsa.PrivateKey) (*EcdsaSigner, error) {
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("checkpoint: signer public key is not ECDSA")
	}
	return &EcdsaSigner{key: key, address: hyptypes.AddressToH256(crypto.PubkeyToAddress(*pub))}, nil
}

func (s *EcdsaSigner) Address() hyptypes.H256 { return s.address }

func (s *EcdsaSigner) digest(c hyptypes.CheckpointWithMessageId) []byte {
	buf := make([]byte, 0, 32+32+32+4+32)
	domain := make([]byte, 32)
	domain[31], domain[30], domain[29], domain[28] = byte(c.Origin), byte(c.Origin>>8), byte(c.Origin>>16), byte(c.Origin>>24)
	buf = append(buf, domain...)
	buf = append(buf, c.MerkleTreeHook[:]...)
	buf = append(buf, c.Root[:]...)
	index := make([]byte, 4)
	index[0], index[1], index[2], index[3] = byte(c.Index>>24), byte(c.Index>>16), byte(c.Index>>8), byte(c.Index)
	buf = append(buf, index...)
	buf = append(buf, c.MessageId[:]...)
	return crypto.Keccak256(buf)
}

func (s *EcdsaSigner) Sign(checkpoint hyptypes.CheckpointWithMessageId) (hyptypes.SignedCheckpoint, error) {
	sig, err := crypto.Sign(s.digest(checkpoint), s.key)
	if err != nil {
		return hyptypes.SignedCheckpoint{}, fmt.Errorf("sign checkpoint: %w", err)
	}
	var out hyptypes.Signature
	copy(out[:], sig)
	return hyptypes.SignedCheckpoint{Checkpoint: checkpoint, Signature: out, Signer: s.address}, nil
}
