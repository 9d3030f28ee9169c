// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cloud.google.com/go/storage"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/ethereum/go-ethereum/crypto"
	"google.golang.org/api/option"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/checkpoint"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/config"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/cursor"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/evmchain"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/indexer"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/kvdb"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/merkle"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

func main() {
	logger := log.New(log.Writer(), "[Validator] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	signerKey, err := loadSignerKey(cfg.SignerKeyPath)
	if err != nil {
		logger.Fatalf("load signer key: %v", err)
	}
	signer, err := checkpoint.NewEcdsaSigner(signerKey)
	if err != nil {
		logger.Fatalf("build checkpoint signer: %v", err)
	}

	db, err := dbm.NewGoLevelDB("validator", cfg.DataDir)
	if err != nil {
		logger.Fatalf("open local db: %v", err)
	}
	kv := kvdb.NewLevelKV(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	checkpointStore, err := openCheckpointStore(ctx, cfg.CheckpointStoreURL, kv)
	if err != nil {
		logger.Fatalf("open checkpoint store: %v", err)
	}

	origin := hyptypes.Domain(cfg.OriginChainID)
	insertions := store.NewMerkleInsertionStore(kv, origin)
	tree := merkle.NewIncrementalTree()

	merkleHookAddr := hyptypes.BytesToH256([]byte(cfg.MerkleHookAddress))
	merkleIndexer, err := evmchain.NewMerkleHookIndexer(cfg.OriginRPC, merkleHookAddr.Address(), cfg.ReorgPeriodBlocks, kv)
	if err != nil {
		logger.Fatalf("build merkle hook indexer: %v", err)
	}
	dedupMerkle := indexer.NewDedup[hyptypes.MerkleTreeInsertion](merkleIndexer, kv, "validator:merklehook")
	merkleCursor, err := cursor.NewRateLimitedCursor(ctx, merkleIndexer, uint64(cfg.IndexChunkSize), cfg.IndexStartBlock)
	if err != nil {
		logger.Fatalf("build merkle hook cursor: %v", err)
	}

	mailboxAddr := hyptypes.BytesToH256([]byte(cfg.MailboxAddress))
	originRoot, err := evmchain.NewHistoricalRootSource(cfg.OriginRPC, mailboxAddr.Address(), kv)
	if err != nil {
		logger.Fatalf("build historical root source: %v", err)
	}

	submitterCfg := checkpoint.DefaultConfig()
	submitterCfg.Origin = origin
	submitterCfg.MailboxAddress = mailboxAddr
	submitterCfg.Cursor = merkleCursor
	submitterCfg.Indexer = dedupMerkle
	submitterCfg.Tree = tree
	submitterCfg.Insertions = insertions
	submitterCfg.Checkpoints = checkpointStore
	submitterCfg.Signer = signer
	submitterCfg.OriginRoot = originRoot
	submitterCfg.ReorgPeriodBlocks = cfg.ReorgPeriodBlocks
	submitterCfg.Logger = log.New(log.Writer(), "[Checkpoint] ", log.LstdFlags)

	submitter, err := checkpoint.NewSubmitter(submitterCfg)
	if err != nil {
		logger.Fatalf("build checkpoint submitter: %v", err)
	}
	if err := submitter.Start(ctx); err != nil {
		logger.Fatalf("start checkpoint submitter: %v", err)
	}

	// TODO: a validator announcement registry reader (ValidatorAnnounce
	// contract eth_call) that publishes this validator's checkpoint store
	// location on chain does not exist yet; the submitter above signs and
	// writes checkpoints regardless, but other validators and relayers have
	// no on-chain way to discover where to read them from.
	logger.Println("validator started")
	<-ctx.Done()
	logger.Println("shutting down")
	submitter.Stop()
}

func openCheckpointStore(ctx context.Context, rawURL string, kv store.KV) (checkpoint.Store, error) {
	switch {
	case strings.HasPrefix(rawURL, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(rawURL, "s3://"), "/")
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return checkpoint.NewS3Store(s3.NewFromConfig(awsCfg), bucket, prefix), nil
	case strings.HasPrefix(rawURL, "gs://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(rawURL, "gs://"), "/")
		var opts []option.ClientOption
		if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_FILE"); credFile != "" {
			opts = append(opts, option.WithCredentialsFile(credFile))
		}
		gcsClient, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("build gcs client: %w", err)
		}
		return checkpoint.NewGCSStore(gcsClient, bucket, prefix), nil
	case strings.HasPrefix(rawURL, "file://"), rawURL == "":
		return checkpoint.NewLocalStore(kv), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint store scheme: %s", rawURL)
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
