// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/checkpoint"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/config"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/cursor"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/evmchain"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/indexer"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/ismmeta"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/kvdb"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/lander"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/lander/nonce"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/merkle"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/metrics"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/opqueue"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/relayer"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"

	dbm "github.com/cometbft/cometbft-db"
)

func main() {
	configPath := flag.String("config", "", "optional path to a YAML config file layered under process env")
	flag.Parse()
	if *configPath != "" {
		os.Setenv("CONFIG_FILE", *configPath)
	}

	logger := log.New(log.Writer(), "[Relayer] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	signerKey, err := loadSignerKey(cfg.SignerKeyPath)
	if err != nil {
		logger.Fatalf("load signer key: %v", err)
	}

	db, err := dbm.NewGoLevelDB("relayer", cfg.DataDir)
	if err != nil {
		logger.Fatalf("open local db: %v", err)
	}
	kv := kvdb.NewLevelKV(db)
	signerAddr := hyptypes.AddressToH256(crypto.PubkeyToAddress(signerKey.PublicKey))
	nonceStore := store.NewNonceStore(kv, signerAddr)
	txStore := store.NewTransactionStore(kv)
	nonceMgr := nonce.NewManager(nonceStore, txStore)

	origin := hyptypes.Domain(cfg.OriginChainID)
	mailboxAddr := hyptypes.BytesToH256([]byte(cfg.MailboxAddress))

	adapter, err := evmchain.NewAdapter(&evmchain.Config{
		RPC:               cfg.OriginRPC,
		ChainID:           origin,
		Signer:            signerKey,
		MailboxAddress:    mailboxAddr.Address(),
		ReorgPeriodBlocks: cfg.ReorgPeriodBlocks,
		Logger:            log.New(log.Writer(), "[EVMAdapter] ", log.LstdFlags),
	}, nonceMgr)
	if err != nil {
		logger.Fatalf("build evm adapter: %v", err)
	}

	payloadStore := store.NewPayloadStore(kv)
	landerCfg := lander.DefaultConfig(adapter)
	landerCfg.Transactions = txStore
	landerCfg.Payloads = payloadStore

	pipeline, err := lander.NewPipeline(landerCfg)
	if err != nil {
		logger.Fatalf("build submission pipeline: %v", err)
	}

	// TODO: a validator announcement registry reader (ValidatorAnnounce
	// contract eth_call, keyed by validator address) to populate this map
	// does not exist yet; until it lands, checkpointSyncer never reaches
	// quorum and Prepare always returns NotReady even once the leaf/gas
	// indexers below are caught up.
	checkpointSyncer := checkpoint.NewMultisigCheckpointSyncer(map[hyptypes.H256]checkpoint.Store{})
	leafStore := store.NewMerkleInsertionStore(kv, origin)
	tree := merkle.NewIncrementalTree()

	ismBuilder, err := ismmeta.New(ismmeta.Config{
		IsmReader:        adapter,
		CheckpointSource: checkpointSyncer,
		ProofSource:      &checkpoint.TreeProofSource{Tree: tree},
		LeafIndexer:      leafStore,
	})
	if err != nil {
		logger.Fatalf("build ism metadata builder: %v", err)
	}

	stepper, err := relayer.New(&relayer.Config{
		IsmMeta:        ismBuilder,
		Variant:        ismmeta.MessageIdMultisig,
		Pipeline:       pipeline,
		Payloads:       payloadStore,
		Delivery:       adapter,
		MailboxAddress: mailboxAddr,
	})
	if err != nil {
		logger.Fatalf("build operation stepper: %v", err)
	}

	gasStore := store.NewGasPaymentStore(kv)

	reg := metrics.New("relayer")
	queueCfg := opqueue.DefaultConfig()
	queueCfg.Stepper = stepper
	queueCfg.Metrics = reg
	queueCfg.GasPolicy = opqueue.MinimumPaymentPolicy{Minimum: cfg.MinGasPayment}
	queue, err := opqueue.NewQueue(queueCfg)
	if err != nil {
		logger.Fatalf("build operation queue: %v", err)
	}

	chunkSize := uint64(cfg.IndexChunkSize)

	dispatchIndexer, err := evmchain.NewDispatchIndexer(cfg.OriginRPC, mailboxAddr.Address(), cfg.ReorgPeriodBlocks)
	if err != nil {
		logger.Fatalf("build dispatch indexer: %v", err)
	}
	dedupDispatch := indexer.NewDedup[hyptypes.Message](dispatchIndexer, kv, "relayer:dispatch")
	dispatchCursor, err := cursor.NewRateLimitedCursor(ctx, dispatchIndexer, chunkSize, cfg.IndexStartBlock)
	if err != nil {
		logger.Fatalf("build dispatch cursor: %v", err)
	}
	dispatchMessages := store.NewMessageStore(kv, origin)

	merkleHookAddr := hyptypes.BytesToH256([]byte(cfg.MerkleHookAddress))
	merkleIndexer, err := evmchain.NewMerkleHookIndexer(cfg.OriginRPC, merkleHookAddr.Address(), cfg.ReorgPeriodBlocks, kv)
	if err != nil {
		logger.Fatalf("build merkle hook indexer: %v", err)
	}
	dedupMerkle := indexer.NewDedup[hyptypes.MerkleTreeInsertion](merkleIndexer, kv, "relayer:merklehook")
	merkleCursor, err := cursor.NewRateLimitedCursor(ctx, merkleIndexer, chunkSize, cfg.IndexStartBlock)
	if err != nil {
		logger.Fatalf("build merkle hook cursor: %v", err)
	}

	reg.ServeMetrics(ctx, cfg.MetricsAddr)
	metrics.ServeHealth(ctx, cfg.HealthAddr)

	if err := pipeline.Start(ctx); err != nil {
		logger.Fatalf("start submission pipeline: %v", err)
	}

	go runDispatchSync(ctx, dedupDispatch, dispatchCursor, queue, dispatchMessages, logger)
	go runMerkleIngestion(ctx, dedupMerkle, merkleCursor, tree, leafStore, logger)
	go runQueueDriver(ctx, queue, gasStore, origin, logger)

	if cfg.InterchainGasPaymasterAddress != "" {
		igpAddr := hyptypes.BytesToH256([]byte(cfg.InterchainGasPaymasterAddress))
		gasIndexer, err := evmchain.NewGasPaymentIndexer(cfg.OriginRPC, igpAddr.Address(), cfg.ReorgPeriodBlocks)
		if err != nil {
			logger.Fatalf("build gas payment indexer: %v", err)
		}
		dedupGas := indexer.NewDedup[hyptypes.GasPayment](gasIndexer, kv, "relayer:gaspayment")
		gasCursor, err := cursor.NewRateLimitedCursor(ctx, gasIndexer, chunkSize, cfg.IndexStartBlock)
		if err != nil {
			logger.Fatalf("build gas payment cursor: %v", err)
		}
		go runGasPaymentSync(ctx, dedupGas, gasCursor, gasStore, origin, logger)
	} else {
		logger.Println("no interchain gas paymaster address configured, gas payment policy will never see a nonzero paid total")
	}

	logger.Println("relayer started")

	<-ctx.Done()
	logger.Println("shutting down")
	pipeline.Stop()
}

// runDispatchSync mirrors the mailbox's Dispatch events into the operation
// queue: every newly observed message becomes a pending operation starting
// in Prepare.
func runDispatchSync(ctx context.Context, idx indexer.Indexer[hyptypes.Message], cur cursor.BlockRangeCursor, queue *opqueue.Queue, messages *store.MessageStore, logger *log.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		rng, err := cur.NextRange(ctx)
		if err != nil {
			logger.Printf("dispatch sync: next range failed: %v", err)
			continue
		}
		if rng == nil {
			continue
		}
		events, err := idx.FetchLogsInRange(ctx, rng.From, rng.To)
		if err != nil {
			logger.Printf("dispatch sync: fetch [%d,%d] failed: %v", rng.From, rng.To, err)
			continue
		}
		for _, ev := range events {
			if err := messages.StoreMessage(ev.Event, ev.Meta.BlockNumber); err != nil {
				logger.Printf("dispatch sync: store message nonce %d failed: %v", ev.Event.Nonce, err)
				continue
			}
			queue.Push(&hyptypes.PendingOperation{
				Id:                uuid.New(),
				Message:           ev.Event,
				DestinationDomain: ev.Event.Destination,
				Stage:             hyptypes.StagePrepare,
			})
		}
	}
}

// runMerkleIngestion replays the mailbox's own merkle-hook insertions into
// the relayer's local tree, the same leaf-by-leaf ingestion
// checkpoint.Submitter runs on the validator side, here feeding
// ismmeta's proof and leaf-index lookups instead of a checkpoint signer.
func runMerkleIngestion(ctx context.Context, idx indexer.Indexer[hyptypes.MerkleTreeInsertion], cur cursor.BlockRangeCursor, tree *merkle.IncrementalTree, leaves *store.MerkleInsertionStore, logger *log.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		rng, err := cur.NextRange(ctx)
		if err != nil {
			logger.Printf("merkle ingestion: next range failed: %v", err)
			continue
		}
		if rng == nil {
			continue
		}
		insertions, err := idx.FetchLogsInRange(ctx, rng.From, rng.To)
		if err != nil {
			logger.Printf("merkle ingestion: fetch [%d,%d] failed: %v", rng.From, rng.To, err)
			continue
		}
		for _, ins := range insertions {
			leafIndex := tree.Ingest(ins.Event.MessageId)
			record := hyptypes.MerkleTreeInsertion{LeafIndex: leafIndex, MessageId: ins.Event.MessageId}
			if err := leaves.Store(record); err != nil {
				logger.Printf("merkle ingestion: store leaf %d failed: %v", leafIndex, err)
			}
		}
	}
}

// runGasPaymentSync replays interchain gas paymaster events into
// gasStore, the running per-message total opqueue's GasPaymentPolicy is
// evaluated against before Prepare runs.
func runGasPaymentSync(ctx context.Context, idx indexer.Indexer[hyptypes.GasPayment], cur cursor.BlockRangeCursor, gasStore *store.GasPaymentStore, origin hyptypes.Domain, logger *log.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		rng, err := cur.NextRange(ctx)
		if err != nil {
			logger.Printf("gas payment sync: next range failed: %v", err)
			continue
		}
		if rng == nil {
			continue
		}
		payments, err := idx.FetchLogsInRange(ctx, rng.From, rng.To)
		if err != nil {
			logger.Printf("gas payment sync: fetch [%d,%d] failed: %v", rng.From, rng.To, err)
			continue
		}
		for _, p := range payments {
			if _, err := gasStore.AddPayment(origin, p.Event.MessageId, p.Event.Payment); err != nil {
				logger.Printf("gas payment sync: record payment for %s failed: %v", p.Event.MessageId.Hex(), err)
			}
		}
	}
}

// runQueueDriver is the relayer's core loop: pop whatever operation is due,
// attach its observed paid gas total so the gas policy can gate Prepare,
// and step it once. PopReady returning nil just means nothing is due yet.
func runQueueDriver(ctx context.Context, queue *opqueue.Queue, gasStore *store.GasPaymentStore, origin hyptypes.Domain, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		op := queue.PopReady()
		if op == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		paid, err := gasStore.Total(origin, op.Message.Id())
		if err != nil {
			logger.Printf("queue driver: load paid total for %s failed: %v", op.Message.Id().Hex(), err)
		}
		if err := queue.Step(opqueue.WithPaidTotal(ctx, paid), op); err != nil {
			logger.Printf("queue driver: step %s failed: %v", op.Message.Id().Hex(), err)
		}
	}
}

func loadSignerKey(path string) (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(string(b), "0x")))
	if err != nil {
		return nil, err
	}
	return crypto.ToECDSA(raw)
}
