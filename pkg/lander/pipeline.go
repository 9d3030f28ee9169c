// Copyright 2025 Certen Protocol

package lander

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

// Config configures a Pipeline.
type Config struct {
	Adapter ChainAdapter

	Transactions *store.TransactionStore
	Payloads     *store.PayloadStore

	MaxBatchSize      int
	ChannelBufferSize int
	PollInterval      time.Duration
	// GasPriceEscalationFactor defaults to 1.125 but is not read by the
	// pipeline: on resubmission it calls the adapter's EstimateGasPrice with
	// escalate set, and the adapter applies its own escalation setting.
	GasPriceEscalationFactor float64

	Logger *log.Logger
}

func DefaultConfig(adapter ChainAdapter) *Config {
	return &Config{
		Adapter:                  adapter,
		MaxBatchSize:             32,
		ChannelBufferSize:        64,
		PollInterval:             2 * time.Second,
		GasPriceEscalationFactor: 1.125,
		Logger:                   log.New(log.Writer(), "[Lander] ", log.LstdFlags),
	}
}

// Pipeline runs payloads through Building, Inclusion and Finality over
// bounded channels, one goroutine per stage.
type Pipeline struct {
	cfg *Config

	buildingCh  chan *hyptypes.Payload
	inclusionCh chan *hyptypes.Transaction
	finalityCh  chan *hyptypes.Transaction

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewPipeline(cfg *Config) (*Pipeline, error) {
	if cfg == nil || cfg.Adapter == nil {
		return nil, ErrNilAdapter
	}
	if cfg.Transactions == nil || cfg.Payloads == nil {
		return nil, ErrNilStore
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 32
	}
	if cfg.ChannelBufferSize <= 0 {
		cfg.ChannelBufferSize = 64
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.GasPriceEscalationFactor <= 1.0 {
		cfg.GasPriceEscalationFactor = 1.125
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Lander] ", log.LstdFlags)
	}

	return &Pipeline{
		cfg:         cfg,
		buildingCh:  make(chan *hyptypes.Payload, cfg.ChannelBufferSize),
		inclusionCh: make(chan *hyptypes.Transaction, cfg.ChannelBufferSize),
		finalityCh:  make(chan *hyptypes.Transaction, cfg.ChannelBufferSize),
	}, nil
}

// Enqueue submits a payload to the Building stage.
func (p *Pipeline) Enqueue(payload *hyptypes.Payload) {
	p.buildingCh <- payload
}

func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return nil
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); p.runBuilding(ctx) }()
	go func() { defer wg.Done(); p.runInclusion(ctx) }()
	go func() { defer wg.Done(); p.runFinality(ctx) }()
	go func() {
		wg.Wait()
		close(p.doneCh)
	}()

	p.cfg.Logger.Printf("pipeline started (platform=%s chain=%d)", p.cfg.Adapter.Platform(), p.cfg.Adapter.ChainID())
	return nil
}

func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	<-p.doneCh
	p.stopCh = nil
}

// runBuilding drains buildingCh in small batches, builds transactions via
// the adapter, marks unbuildable payloads Dropped, and forwards built
// transactions to Inclusion.
func (p *Pipeline) runBuilding(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var pending []*hyptypes.Payload
	for {
		select {
		case <-p.stopCh:
			return
		case payload := <-p.buildingCh:
			pending = append(pending, payload)
			if len(pending) < p.cfg.MaxBatchSize {
				continue
			}
			p.build(ctx, pending)
			pending = nil
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			p.build(ctx, pending)
			pending = nil
		}
	}
}

func (p *Pipeline) build(ctx context.Context, payloads []*hyptypes.Payload) {
	results, err := p.cfg.Adapter.BuildTransactions(ctx, payloads, p.cfg.MaxBatchSize)
	if err != nil {
		p.cfg.Logger.Printf("build transactions failed: %v", err)
		return
	}
	for _, r := range results {
		if r.Transaction == nil {
			for _, pl := range r.Payloads {
				pl.Status = hyptypes.PayloadDropped
				pl.DropReason = hyptypes.DropFailedToBuild
				_ = p.cfg.Payloads.StorePayload(pl)
			}
			continue
		}
		r.Transaction.Status = hyptypes.TxPendingInclusion
		_ = p.cfg.Transactions.StoreTransaction(r.Transaction)
		select {
		case p.inclusionCh <- r.Transaction:
		case <-p.stopCh:
			return
		}
	}
}

// runInclusion assigns nonces, estimates gas, submits, and polls for
// inclusion, resubmitting with escalated gas price when a transaction sits
// unconfirmed longer than the adapter's resubmission heuristic.
func (p *Pipeline) runInclusion(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	inFlight := map[hyptypes.H256]*inclusionState{}
	for {
		select {
		case <-p.stopCh:
			return
		case tx := <-p.inclusionCh:
			if err := p.submitNew(ctx, tx); err != nil {
				p.cfg.Logger.Printf("submit tx %s failed: %v", tx.Uuid, err)
				continue
			}
			key := tx.TxHashes[len(tx.TxHashes)-1]
			inFlight[key] = &inclusionState{tx: tx, lastSubmitAt: time.Now()}
		case <-ticker.C:
			for hash, st := range inFlight {
				if p.pollInclusion(ctx, hash, st) {
					delete(inFlight, hash)
				}
			}
		}
	}
}

type inclusionState struct {
	tx           *hyptypes.Transaction
	lastSubmitAt time.Time
	price        *GasPrice
}

func (p *Pipeline) submitNew(ctx context.Context, tx *hyptypes.Transaction) error {
	if err := p.cfg.Adapter.AssignNonce(ctx, tx); err != nil {
		return err
	}
	if tx.GasLimit == 0 {
		limit, err := p.cfg.Adapter.EstimateGasLimit(ctx, tx)
		if err != nil {
			return err
		}
		tx.GasLimit = limit
	}
	price, err := p.cfg.Adapter.EstimateGasPrice(ctx, tx, false, nil)
	if err != nil {
		return err
	}
	hash, err := p.cfg.Adapter.SubmitTransaction(ctx, tx, price)
	if err != nil {
		return err
	}
	tx.TxHashes = append(tx.TxHashes, hash)
	tx.Status = hyptypes.TxMempool
	tx.SubmissionCount++
	tx.LastSubmitAt = time.Now()
	return p.cfg.Transactions.StoreTransaction(tx)
}

// pollInclusion checks one in-flight transaction. It returns true when the
// transaction has been included (and handed to Finality) or dropped, and no
// longer needs Inclusion-stage polling.
func (p *Pipeline) pollInclusion(ctx context.Context, hash hyptypes.H256, st *inclusionState) bool {
	receipt, err := p.cfg.Adapter.GetReceipt(ctx, hash)
	if err != nil {
		p.cfg.Logger.Printf("get receipt for %x failed: %v", hash, err)
		return false
	}
	if receipt.Found {
		if !receipt.Success {
			st.tx.Status = hyptypes.TxDropped
			st.tx.DropReason = hyptypes.DropDroppedByChain
			_ = p.cfg.Transactions.StoreTransaction(st.tx)
			return true
		}
		st.tx.Status = hyptypes.TxIncluded
		block := receipt.BlockNumber
		st.tx.InclusionBlock = &block
		_ = p.cfg.Transactions.StoreTransaction(st.tx)
		select {
		case p.finalityCh <- st.tx:
		case <-p.stopCh:
		}
		return true
	}

	elapsed := time.Since(st.lastSubmitAt).Seconds()
	if elapsed < float64(p.cfg.Adapter.MinTimeBetweenResubmissions()) {
		return false
	}
	newPrice, err := p.cfg.Adapter.EstimateGasPrice(ctx, st.tx, true, st.price)
	if err != nil {
		p.cfg.Logger.Printf("resubmission gas estimate failed: %v", err)
		return false
	}
	newHash, err := p.cfg.Adapter.SubmitTransaction(ctx, st.tx, newPrice)
	if err != nil {
		p.cfg.Logger.Printf("resubmission failed: %v", err)
		return false
	}
	st.tx.TxHashes = append(st.tx.TxHashes, newHash)
	st.tx.SubmissionCount++
	st.tx.LastSubmitAt = time.Now()
	st.price = newPrice
	st.lastSubmitAt = time.Now()
	_ = p.cfg.Transactions.StoreTransaction(st.tx)
	return false
}

// runFinality watches included transactions until their inclusion block is
// at or below the chain's finalized block, then runs the reverted-payload
// post-check.
func (p *Pipeline) runFinality(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var watching []*hyptypes.Transaction
	for {
		select {
		case <-p.stopCh:
			return
		case tx := <-p.finalityCh:
			watching = append(watching, tx)
		case <-ticker.C:
			if len(watching) == 0 {
				continue
			}
			finalized, err := p.cfg.Adapter.FinalizedBlock(ctx)
			if err != nil {
				p.cfg.Logger.Printf("get finalized block failed: %v", err)
				continue
			}
			remaining := watching[:0]
			for _, tx := range watching {
				if tx.InclusionBlock == nil || *tx.InclusionBlock > finalized {
					remaining = append(remaining, tx)
					continue
				}
				p.finalize(ctx, tx)
			}
			watching = remaining
		}
	}
}

func (p *Pipeline) finalize(ctx context.Context, tx *hyptypes.Transaction) {
	tx.Status = hyptypes.TxFinalized
	if err := p.cfg.Transactions.StoreTransaction(tx); err != nil {
		p.cfg.Logger.Printf("store finalized tx %s failed: %v", tx.Uuid, err)
		return
	}

	payloads := make([]*hyptypes.Payload, 0, len(tx.PayloadIds))
	for _, id := range tx.PayloadIds {
		pl, err := p.cfg.Payloads.PayloadByUUID(id)
		if err != nil {
			continue
		}
		payloads = append(payloads, pl)
	}

	reverted, err := p.cfg.Adapter.RevertedPayloads(ctx, tx, payloads)
	if err != nil {
		p.cfg.Logger.Printf("reverted payload check for tx %s failed: %v", tx.Uuid, err)
		return
	}
	for _, pl := range reverted {
		pl.Status = hyptypes.PayloadPendingResubmission
		_ = p.cfg.Payloads.StorePayload(pl)
		p.Enqueue(pl)
	}
}
