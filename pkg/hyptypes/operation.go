// Copyright 2025 Certen Protocol

package hyptypes

import (
	"time"

	"github.com/google/uuid"
)

// OperationStage is the pending operation's current position in the
// Prepare -> Submit -> Confirm lifecycle.
type OperationStage string

const (
	StagePrepare OperationStage = "prepare"
	StageSubmit  OperationStage = "submit"
	StageConfirm OperationStage = "confirm"
)

// StageOutcome is the control-flow primitive returned by Prepare, Submit
// and Confirm. There are no exceptions for control flow in this system;
// every step returns one of these.
type StageOutcome string

const (
	OutcomeSuccess   StageOutcome = "success"
	OutcomeNotReady  StageOutcome = "not_ready"
	OutcomeReprepare StageOutcome = "reprepare"
	OutcomeDrop      StageOutcome = "drop"
	OutcomeConfirm   StageOutcome = "confirm"
)

// DropReason is recorded against every payload of a dropped operation.
type DropReason string

const (
	DropFailedToBuild  DropReason = "FailedToBuildAsTransaction"
	DropDroppedByChain DropReason = "DroppedByChain"
	DropPolicyRejected DropReason = "PolicyRejected"
)

// PendingOperation wraps a message with its execution state as it moves
// through the relayer's queue.
type PendingOperation struct {
	Id                uuid.UUID
	Message           Message
	DestinationDomain Domain
	AppContext        string
	Stage             OperationStage
	NextAttemptAfter   *time.Time
	RetryCount        int
	LastOutcome       StageOutcome
	DropReason        DropReason
}

// Less implements the queue's comparator: earliest NextAttemptAfter first
// (nil sorts before any timestamp); ties within the same origin broken by
// nonce order, otherwise by id.
func (op *PendingOperation) Less(other *PendingOperation) bool {
	a, b := op.NextAttemptAfter, other.NextAttemptAfter
	switch {
	case a == nil && b == nil:
		// fall through to tie-break
	case a == nil:
		return true
	case b == nil:
		return false
	case !a.Equal(*b):
		return a.Before(*b)
	}

	if op.Message.Origin == other.Message.Origin {
		return op.Message.Nonce < other.Message.Nonce
	}
	return op.Id.String() < other.Id.String()
}

// TransactionStatus is the submission pipeline's status for one on-chain
// transaction.
type TransactionStatus string

const (
	TxPendingInclusion TransactionStatus = "pending_inclusion"
	TxMempool          TransactionStatus = "mempool"
	TxIncluded         TransactionStatus = "included"
	TxFinalized        TransactionStatus = "finalized"
	TxDropped          TransactionStatus = "dropped"
)

// PayloadStatus mirrors TransactionStatus for an individual payload before
// and after batching.
type PayloadStatus string

const (
	PayloadPendingBuilding     PayloadStatus = "pending_building"
	PayloadPendingInclusion    PayloadStatus = "pending_inclusion"
	PayloadInMempool           PayloadStatus = "in_mempool"
	PayloadIncluded            PayloadStatus = "included"
	PayloadFinalized           PayloadStatus = "finalized"
	PayloadDropped             PayloadStatus = "dropped"
	PayloadPendingResubmission PayloadStatus = "pending_resubmission"
)

// SuccessCriteria is an optional on-chain post-check a payload carries so
// that, after finality, the pipeline can tell whether the payload's effect
// actually took hold (used to detect silent reverts after a batched tx
// partially succeeds).
type SuccessCriteria struct {
	// CallData is an eth_call-style read used to check the postcondition.
	CallData []byte
	To       H256
	// Check returns true if the postcondition holds given the raw call
	// result.
	Check func(result []byte) bool
}

// Payload is a single per-call unit before batching.
type Payload struct {
	Id              uuid.UUID
	OperationId     uuid.UUID
	Calldata        []byte
	To              H256
	SuccessCriteria *SuccessCriteria
	Status          PayloadStatus
	DropReason      DropReason
	CreatedAt       time.Time
}

// VmSpecificTxData is the per-VM precursor a Transaction carries; the EVM
// variant additionally keeps the ABI function signature used for
// revert-reason decoding.
type VmSpecificTxData struct {
	VM           string
	EvmTo        *H256
	EvmData      []byte
	EvmValue     []byte
	EvmFuncName  string
	EvmRevertAbi []byte
}

// Transaction is a submission unit spanning one or more payloads.
type Transaction struct {
	Uuid            uuid.UUID
	PayloadIds      []uuid.UUID
	Precursor       VmSpecificTxData
	TxHashes        []H256
	Status          TransactionStatus
	DropReason      DropReason
	SubmissionCount int
	Nonce           *uint64
	GasLimit        uint64
	Signer          H256
	CreatedAt       time.Time
	LastSubmitAt    time.Time
	InclusionBlock  *uint64
}
