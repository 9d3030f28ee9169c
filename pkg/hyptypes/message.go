// Copyright 2025 Certen Protocol
//
// Package hyptypes holds the core data model shared by the indexer, the
// operation queue, the submission pipeline and the checkpoint/multisig
// subsystems: dispatched messages, Merkle checkpoints, tree insertions and
// the handful of small value types everything else is built from.
package hyptypes

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Domain identifies a chain within the Hyperlane address space.
type Domain uint32

// H256 is a 32-byte hash or address, left-padded the way Hyperlane encodes
// non-EVM addresses into the EVM's 32-byte word.
type H256 [32]byte

// BytesToH256 left-pads or truncates b into an H256.
func BytesToH256(b []byte) H256 {
	var h H256
	if len(b) >= 32 {
		copy(h[:], b[len(b)-32:])
		return h
	}
	copy(h[32-len(b):], b)
	return h
}

// AddressToH256 encodes a 20-byte EVM address as a 32-byte Hyperlane address.
func AddressToH256(addr common.Address) H256 {
	return BytesToH256(addr.Bytes())
}

// Address returns the low 20 bytes as an EVM address.
func (h H256) Address() common.Address {
	return common.BytesToAddress(h[:])
}

func (h H256) Hex() string {
	return common.Bytes2Hex(h[:])
}

func (h H256) IsZero() bool {
	return h == H256{}
}

// Message is an immutable, once-dispatched cross-chain delivery unit.
//
// Nonce is monotone per origin mailbox; Id is the content hash used to
// identify the message everywhere else in the system (checkpoints, the
// operation queue, the submission pipeline).
type Message struct {
	Version     uint8
	Nonce       uint32
	Origin      Domain
	Sender      H256
	Destination Domain
	Recipient   H256
	Body        []byte
}

// Id returns the message's content hash. Hyperlane messages are hashed over
// their canonical binary encoding; this mirrors the Rust
// `HyperlaneMessage::id()` layout (version, nonce, origin, sender,
// destination, recipient, body).
func (m Message) Id() H256 {
	return sha256.Sum256(m.Encode())
}

// Encode returns the message's canonical binary encoding, the raw bytes a
// mailbox's process() call carries on chain.
func (m Message) Encode() []byte {
	buf := make([]byte, 1+4+4+32+4+32+len(m.Body))
	i := 0
	buf[i] = m.Version
	i++
	binary.BigEndian.PutUint32(buf[i:], m.Nonce)
	i += 4
	binary.BigEndian.PutUint32(buf[i:], uint32(m.Origin))
	i += 4
	copy(buf[i:], m.Sender[:])
	i += 32
	binary.BigEndian.PutUint32(buf[i:], uint32(m.Destination))
	i += 4
	copy(buf[i:], m.Recipient[:])
	i += 32
	copy(buf[i:], m.Body)
	return buf
}

func (m Message) String() string {
	return fmt.Sprintf("Message{origin=%d nonce=%d dest=%d id=%s}", m.Origin, m.Nonce, m.Destination, m.Id().Hex())
}

// DecodeMessage parses the canonical binary encoding Encode produces back
// into a Message, the inverse used when replaying a mailbox's raw Dispatch
// event data.
func DecodeMessage(b []byte) (Message, error) {
	const headerLen = 1 + 4 + 4 + 32 + 4 + 32
	if len(b) < headerLen {
		return Message{}, fmt.Errorf("hyptypes: encoded message too short: %d bytes", len(b))
	}
	var m Message
	i := 0
	m.Version = b[i]
	i++
	m.Nonce = binary.BigEndian.Uint32(b[i:])
	i += 4
	m.Origin = Domain(binary.BigEndian.Uint32(b[i:]))
	i += 4
	copy(m.Sender[:], b[i:i+32])
	i += 32
	m.Destination = Domain(binary.BigEndian.Uint32(b[i:]))
	i += 4
	copy(m.Recipient[:], b[i:i+32])
	i += 32
	m.Body = append([]byte(nil), b[i:]...)
	return m, nil
}

// MerkleTreeInsertion is the canonical proof-of-presence record: the leaf
// index a message was inserted at, and the message id of the leaf.
type MerkleTreeInsertion struct {
	LeafIndex uint32
	MessageId H256
}

// GasPayment is one interchain-gas-paymaster payment observed for a
// dispatched message. store.GasPaymentStore sums these per message, and
// opqueue.WithPaidTotal attaches that total before a pending operation is
// allowed into Prepare.
type GasPayment struct {
	MessageId H256
	Payment   uint64
}
