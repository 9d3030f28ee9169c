// Copyright 2025 Certen Protocol
//
// Package relayer implements opqueue.Stepper against a mailbox's
// process() call: Prepare builds multisig ISM metadata and hands the
// resulting payload to the submission pipeline, Confirm polls the
// destination mailbox for delivery.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/ismmeta"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/lander"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

const mailboxProcessABI = `[{"name":"process","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_metadata","type":"bytes"},{"name":"_message","type":"bytes"}],"outputs":[]}]`

var processMethod abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(mailboxProcessABI))
	if err != nil {
		panic(fmt.Sprintf("relayer: parse mailbox abi: %v", err))
	}
	processMethod = parsed
}

// DeliveryChecker reports whether a destination mailbox has already
// processed a message id. Satisfied by *evmchain.Adapter.
type DeliveryChecker interface {
	Delivered(ctx context.Context, mailbox common.Address, messageId hyptypes.H256) (bool, error)
}

// Config configures a Stepper.
type Config struct {
	IsmMeta         *ismmeta.Builder
	Variant         ismmeta.Variant
	Pipeline        *lander.Pipeline
	Payloads        *store.PayloadStore
	Delivery        DeliveryChecker
	MailboxAddress  hyptypes.H256
	Logger          *log.Logger
}

// Stepper drives a PendingOperation from ISM metadata assembly through
// on-chain delivery confirmation.
type Stepper struct {
	cfg *Config
}

func New(cfg *Config) (*Stepper, error) {
	if cfg == nil || cfg.IsmMeta == nil || cfg.Pipeline == nil || cfg.Payloads == nil || cfg.Delivery == nil {
		return nil, errors.New("relayer: ism meta builder, pipeline, payload store and delivery checker are all required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Relayer] ", log.LstdFlags)
	}
	return &Stepper{cfg: cfg}, nil
}

// Prepare resolves quorum metadata for op's message against its own
// recipient address acting as its configured ISM, builds the process()
// calldata, and hands it to the submission pipeline. Returns NotReady
// until a quorum checkpoint covering the message's leaf is available.
func (s *Stepper) Prepare(ctx context.Context, op *hyptypes.PendingOperation) (hyptypes.StageOutcome, error) {
	metadata, err := s.cfg.IsmMeta.BuildMetadata(ctx, s.cfg.Variant, op.Message.Recipient, op.Message)
	if err != nil {
		return hyptypes.StageOutcome(""), fmt.Errorf("build ism metadata: %w", err)
	}
	if metadata == nil {
		return hyptypes.OutcomeNotReady, nil
	}

	calldata, err := processMethod.Pack("process", metadata, op.Message.Encode())
	if err != nil {
		return hyptypes.StageOutcome(""), fmt.Errorf("pack process calldata: %w", err)
	}

	payload := &hyptypes.Payload{
		Id:          uuid.New(),
		OperationId: op.Id,
		Calldata:    calldata,
		To:          s.cfg.MailboxAddress,
		Status:      hyptypes.PayloadPendingBuilding,
		CreatedAt:   time.Now(),
	}
	if err := s.cfg.Payloads.StorePayload(payload); err != nil {
		return hyptypes.StageOutcome(""), fmt.Errorf("store payload: %w", err)
	}
	s.cfg.Pipeline.Enqueue(payload)

	return hyptypes.OutcomeConfirm, nil
}

// Submit is unreachable: Prepare always returns OutcomeConfirm, which
// moves an operation directly to StageConfirm, the submission pipeline
// runs building/inclusion/finality on its own goroutines.
func (s *Stepper) Submit(ctx context.Context, op *hyptypes.PendingOperation) (hyptypes.StageOutcome, error) {
	return hyptypes.OutcomeConfirm, nil
}

// Confirm polls the destination mailbox for delivery. The payload store
// tracks the pipeline's own view of the transaction's finality
// independent of delivery, so a finalized-but-not-yet-delivered payload
// is reported NotReady rather than dropped.
func (s *Stepper) Confirm(ctx context.Context, op *hyptypes.PendingOperation) (hyptypes.StageOutcome, error) {
	payload, err := s.cfg.Payloads.PayloadByOperationId(op.Id)
	if err != nil {
		return hyptypes.StageOutcome(""), fmt.Errorf("lookup payload: %w", err)
	}
	if payload.Status == hyptypes.PayloadDropped {
		op.DropReason = payload.DropReason
		return hyptypes.OutcomeDrop, nil
	}

	delivered, err := s.cfg.Delivery.Delivered(ctx, s.cfg.MailboxAddress.Address(), op.Message.Id())
	if err != nil {
		return hyptypes.StageOutcome(""), fmt.Errorf("check delivery: %w", err)
	}
	if delivered {
		return hyptypes.OutcomeSuccess, nil
	}
	return hyptypes.OutcomeNotReady, nil
}
