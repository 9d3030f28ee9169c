// Copyright 2025 Certen Protocol
//
// Package lander implements the submission pipeline: bounded-channel
// Building -> Inclusion -> Finality stages that turn payloads into
// confirmed on-chain transactions, one ChainAdapter per destination VM
//.
package lander

import (
	"context"
	"math/big"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// GasPrice is a VM-agnostic gas price quote. EVM adapters populate
// BaseFee/PriorityFee for EIP-1559 chains and set FeeCap to twice their
// sum; non-1559 chains only populate FeeCap as a legacy gas price.
type GasPrice struct {
	BaseFee     *big.Int
	PriorityFee *big.Int
	FeeCap      *big.Int
}

// Receipt is the VM-agnostic outcome of querying a transaction hash.
type Receipt struct {
	Found       bool
	BlockNumber uint64
	Success     bool
}

// ChainAdapter is implemented once per destination VM. Every method must
// be safe to call concurrently; the pipeline holds one adapter per
// destination domain and drives all three stages through it.
//
// Platform/ChainID/NetworkName mirror the multi-chain strategy pattern
// used elsewhere in this codebase so operators can log and dispatch on the
// same identifiers across subsystems.
type ChainAdapter interface {
	Platform() string
	ChainID() hyptypes.Domain

	// BuildTransactions batches payloads respecting MaxBatchSize, runs a
	// dry-run/simulation per built transaction, and returns one
	// TxBuildingResult per attempted batch. A payload with no corresponding
	// transaction in the results failed to build.
	BuildTransactions(ctx context.Context, payloads []*hyptypes.Payload, maxBatchSize int) ([]TxBuildingResult, error)

	// AssignNonce assigns a nonce to tx if the VM requires one (EVM only;
	// no-op for VMs without an account nonce).
	AssignNonce(ctx context.Context, tx *hyptypes.Transaction) error

	// EstimateGasLimit estimates the gas limit for tx if unset.
	EstimateGasLimit(ctx context.Context, tx *hyptypes.Transaction) (uint64, error)

	// EstimateGasPrice estimates a gas price for tx, respecting configured
	// overrides. escalate is true on resubmission and asks the adapter to
	// bump priority fee by its configured escalation factor.
	EstimateGasPrice(ctx context.Context, tx *hyptypes.Transaction, escalate bool, previous *GasPrice) (*GasPrice, error)

	// SubmitTransaction signs and broadcasts tx, returning the resulting
	// transaction hash.
	SubmitTransaction(ctx context.Context, tx *hyptypes.Transaction, price *GasPrice) (hyptypes.H256, error)

	// GetReceipt polls for a transaction's inclusion status.
	GetReceipt(ctx context.Context, txHash hyptypes.H256) (*Receipt, error)

	// FinalizedBlock returns the chain's current finalized block number.
	FinalizedBlock(ctx context.Context) (uint64, error)

	// MinTimeBetweenResubmissions is the chain-specific heuristic deciding
	// when a still-pending transaction is eligible for resubmission.
	MinTimeBetweenResubmissions() int64 // seconds

	// RevertedPayloads runs each payload's SuccessCriteria post-check (for
	// payloads that carry one) after tx reaches finality, returning the
	// subset whose postcondition is false.
	RevertedPayloads(ctx context.Context, tx *hyptypes.Transaction, payloads []*hyptypes.Payload) ([]*hyptypes.Payload, error)
}

// TxBuildingResult pairs a built transaction with the payloads it batches.
// Transaction is nil when the batch failed to build, in which case every
// payload listed is marked Dropped(FailedToBuildAsTransaction).
type TxBuildingResult struct {
	Payloads    []*hyptypes.Payload
	Transaction *hyptypes.Transaction
}
