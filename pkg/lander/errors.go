// Copyright 2025 Certen Protocol

package lander

import "errors"

var (
	ErrNilAdapter = errors.New("chain adapter cannot be nil")
	ErrNilStore   = errors.New("transaction and payload stores cannot be nil")
)
