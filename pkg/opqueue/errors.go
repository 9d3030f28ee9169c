// Copyright 2025 Certen Protocol
//
// Operation queue errors

package opqueue

import "errors"

var (
	ErrNilStepper   = errors.New("stepper cannot be nil")
	ErrUnknownStage = errors.New("operation has an unknown stage")
)
