// Copyright 2025 Certen Protocol

package evmchain

import "errors"

var (
	ErrMissingSigner = errors.New("evmchain: signer is required")
	ErrInvalidSigner = errors.New("evmchain: signer public key is not ECDSA")
)
