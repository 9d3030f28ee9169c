// Copyright 2025 Certen Protocol
//
// Package opqueue implements the relayer's pending-operation priority queue
// and the Prepare/Submit/Confirm lifecycle that drives each operation
// through it.
package opqueue

import (
	"container/heap"
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// Stepper runs one stage of an operation's lifecycle. Implementations live
// per-destination-VM and are supplied by the caller; the queue only owns
// sequencing and retry bookkeeping.
type Stepper interface {
	Prepare(ctx context.Context, op *hyptypes.PendingOperation) (hyptypes.StageOutcome, error)
	Submit(ctx context.Context, op *hyptypes.PendingOperation) (hyptypes.StageOutcome, error)
	Confirm(ctx context.Context, op *hyptypes.PendingOperation) (hyptypes.StageOutcome, error)
}

// GasPaymentPolicy decides whether an operation has received enough
// interchain gas payment to be worth preparing, the admission check a
// relayer performs before an operation is ever run through Prepare.
type GasPaymentPolicy interface {
	// MeetsThreshold returns true if op should proceed to Prepare.
	MeetsThreshold(op *hyptypes.PendingOperation, paidTotal uint64) bool
}

// Recorder reports queue activity to an external metrics sink. A nil
// Recorder on Config disables reporting.
type Recorder interface {
	StepSucceeded(stage, outcome string)
	StepFailed(stage string)
	Dropped(reason string)
}

// AlwaysMeetsThreshold is a GasPaymentPolicy that never blocks an
// operation, for chains or test setups that don't meter gas payment.
type AlwaysMeetsThreshold struct{}

func (AlwaysMeetsThreshold) MeetsThreshold(*hyptypes.PendingOperation, uint64) bool { return true }

// MinimumPaymentPolicy requires at least Minimum units of paid gas before
// an operation is allowed to proceed.
type MinimumPaymentPolicy struct {
	Minimum uint64
}

func (p MinimumPaymentPolicy) MeetsThreshold(_ *hyptypes.PendingOperation, paidTotal uint64) bool {
	return paidTotal >= p.Minimum
}

// opHeap is a container/heap.Interface over pending operations ordered by
// PendingOperation.Less.
type opHeap []*hyptypes.PendingOperation

func (h opHeap) Len() int            { return len(h) }
func (h opHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h opHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *opHeap) Push(x interface{}) { *h = append(*h, x.(*hyptypes.PendingOperation)) }
func (h *opHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Config configures a Queue.
type Config struct {
	Stepper          Stepper
	GasPolicy        GasPaymentPolicy
	BaseRetryDelay   time.Duration
	MaxRetryDelay    time.Duration
	MaxRetries       int
	Logger           *log.Logger
	Metrics          Recorder
}

func DefaultConfig() *Config {
	return &Config{
		GasPolicy:      AlwaysMeetsThreshold{},
		BaseRetryDelay: 5 * time.Second,
		MaxRetryDelay:  30 * time.Minute,
		MaxRetries:     12,
		Logger:         log.New(log.Writer(), "[OpQueue] ", log.LstdFlags),
	}
}

// Queue drives pending operations through Prepare/Submit/Confirm, ordered
// by the same comparator the underlying heap uses.
type Queue struct {
	mu     sync.Mutex
	heap   opHeap
	cfg    *Config
	nowFn  func() time.Time
}

func NewQueue(cfg *Config) (*Queue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Stepper == nil {
		return nil, ErrNilStepper
	}
	if cfg.GasPolicy == nil {
		cfg.GasPolicy = AlwaysMeetsThreshold{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[OpQueue] ", log.LstdFlags)
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 5 * time.Second
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 30 * time.Minute
	}
	q := &Queue{cfg: cfg, nowFn: time.Now}
	heap.Init(&q.heap)
	return q, nil
}

// Push enqueues op, defaulting Stage to Prepare if unset.
func (q *Queue) Push(op *hyptypes.PendingOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if op.Stage == "" {
		op.Stage = hyptypes.StagePrepare
	}
	heap.Push(&q.heap, op)
}

// Len reports the number of operations currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// PopReady pops and returns the head of the queue if it's due (nil
// next-attempt or in the past); otherwise it leaves the queue untouched and
// returns nil.
func (q *Queue) PopReady() *hyptypes.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	head := q.heap[0]
	if head.NextAttemptAfter != nil && head.NextAttemptAfter.After(q.nowFn()) {
		return nil
	}
	return heap.Pop(&q.heap).(*hyptypes.PendingOperation)
}

// requeue reinserts op into the heap, used internally after a step.
func (q *Queue) requeue(op *hyptypes.PendingOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, op)
}

// backoff computes next_attempt_after using exponential backoff keyed on
// retry count, capped at MaxRetryDelay.
func (q *Queue) backoff(op *hyptypes.PendingOperation) time.Time {
	delay := q.cfg.BaseRetryDelay * time.Duration(math.Pow(2, float64(op.RetryCount)))
	if delay > q.cfg.MaxRetryDelay || delay <= 0 {
		delay = q.cfg.MaxRetryDelay
	}
	return q.nowFn().Add(delay)
}

// Step runs op's current stage exactly once and applies the resulting
// outcome: Success advances the stage (or completes the operation after
// Confirm), NotReady/Reprepare requeue with backoff, Drop removes it for
// good, and Confirm jumps straight to the Confirm stage.
func (q *Queue) Step(ctx context.Context, op *hyptypes.PendingOperation) error {
	if q.cfg.GasPolicy != nil && op.Stage == hyptypes.StagePrepare {
		if paid, ok := ctx.Value(paidTotalCtxKey{}).(uint64); ok {
			if !q.cfg.GasPolicy.MeetsThreshold(op, paid) {
				op.NextAttemptAfter = ptrTime(q.backoff(op))
				op.RetryCount++
				q.requeue(op)
				return nil
			}
		}
	}

	var (
		outcome hyptypes.StageOutcome
		err     error
	)
	switch op.Stage {
	case hyptypes.StagePrepare:
		outcome, err = q.cfg.Stepper.Prepare(ctx, op)
	case hyptypes.StageSubmit:
		outcome, err = q.cfg.Stepper.Submit(ctx, op)
	case hyptypes.StageConfirm:
		outcome, err = q.cfg.Stepper.Confirm(ctx, op)
	default:
		return ErrUnknownStage
	}
	if err != nil {
		if q.cfg.Metrics != nil {
			q.cfg.Metrics.StepFailed(string(op.Stage))
		}
		op.NextAttemptAfter = ptrTime(q.backoff(op))
		op.RetryCount++
		q.requeue(op)
		return err
	}
	if q.cfg.Metrics != nil {
		q.cfg.Metrics.StepSucceeded(string(op.Stage), string(outcome))
	}

	op.LastOutcome = outcome
	switch outcome {
	case hyptypes.OutcomeSuccess:
		op.RetryCount = 0
		op.NextAttemptAfter = nil
		switch op.Stage {
		case hyptypes.StagePrepare:
			op.Stage = hyptypes.StageSubmit
		case hyptypes.StageSubmit:
			op.Stage = hyptypes.StageConfirm
		case hyptypes.StageConfirm:
			return nil // operation complete, do not requeue
		}
		q.requeue(op)
	case hyptypes.OutcomeConfirm:
		op.Stage = hyptypes.StageConfirm
		op.NextAttemptAfter = nil
		q.requeue(op)
	case hyptypes.OutcomeReprepare:
		op.Stage = hyptypes.StagePrepare
		op.RetryCount++
		op.NextAttemptAfter = ptrTime(q.backoff(op))
		q.requeue(op)
	case hyptypes.OutcomeNotReady:
		op.RetryCount++
		op.NextAttemptAfter = ptrTime(q.backoff(op))
		q.requeue(op)
	case hyptypes.OutcomeDrop:
		q.cfg.Logger.Printf("dropping operation %s: %s", op.Id, op.DropReason)
		if q.cfg.Metrics != nil {
			q.cfg.Metrics.Dropped(string(op.DropReason))
		}
		// Not requeued; caller is responsible for marking payloads dropped.
	}
	return nil
}

func ptrTime(t time.Time) *time.Time { return &t }

type paidTotalCtxKey struct{}

// WithPaidTotal attaches the gas payment total observed for an operation's
// message so Step can evaluate the GasPaymentPolicy before Prepare runs.
func WithPaidTotal(ctx context.Context, total uint64) context.Context {
	return context.WithValue(ctx, paidTotalCtxKey{}, total)
}
