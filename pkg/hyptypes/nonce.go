// Copyright 2025 Certen Protocol

package hyptypes

// NonceSlotState is the tracked status of one nonce slot for an EVM signer.
type NonceSlotState string

const (
	// NonceSlotTaken is tracked by a live (non-terminal) transaction.
	NonceSlotTaken NonceSlotState = "taken"
	// NonceSlotFreed is tracked by a transaction that reached a terminal
	// Dropped status without being Included; the slot may be reused.
	NonceSlotFreed NonceSlotState = "freed"
)
