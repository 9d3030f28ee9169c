// Copyright 2025 Certen Protocol

package database

import "errors"

var (
	ErrNotFound          = errors.New("entity not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrDeliveryNotFound  = errors.New("delivery not found")
	ErrGasPaymentMissing = errors.New("no gas payment recorded for message")
)
