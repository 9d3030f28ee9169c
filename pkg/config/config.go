// Copyright 2025 Certen Protocol

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a relayer or validator process.
type Config struct {
	// Chain Configuration
	OriginChainID      int64
	OriginRPC          string
	DestinationRPCs    map[int64]string // destination domain -> RPC URL
	ReorgPeriodBlocks  uint64
	IndexChunkSize     int

	// Signer Configuration
	SignerKeyPath string
	DataDir       string

	// Contract Addresses
	MailboxAddress                string
	MerkleHookAddress             string
	InterchainGasPaymasterAddress string

	// Indexing Configuration
	IndexStartBlock uint64
	MinGasPayment   uint64

	// Service Configuration
	ValidatorID   string
	LogLevel      string

	// Checkpoint Store Configuration
	CheckpointStoreURL string // file://, s3://, or gs://
	CheckpointSignInterval time.Duration

	// Kaspa Bridge Configuration
	KaspaRPC           string
	KaspaEscrowValidators []string // hex-encoded Schnorr x-only pubkeys
	KaspaEscrowThreshold  int

	// Database Configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds
	DatabaseRequired    bool

	// Metrics/Health Configuration
	MetricsAddr string
	HealthAddr  string

	// Multisig ISM peer Configuration
	ValidatorAnnouncementPeers []string
}

// fileOverrides mirrors the subset of Config a YAML file may set. Any
// field env also sets takes precedence over the file, matching
// LoadAnchorConfig's layering in the file this package is modeled on.
type fileOverrides struct {
	OriginChainID      int64             `yaml:"origin_chain_id"`
	OriginRPC          string            `yaml:"origin_rpc"`
	DestinationRPCs    map[string]string `yaml:"destination_rpcs"`
	ReorgPeriodBlocks  int               `yaml:"reorg_period_blocks"`
	IndexChunkSize     int               `yaml:"index_chunk_size"`
	SignerKeyPath      string            `yaml:"signer_key_path"`
	DataDir            string            `yaml:"data_dir"`
	MailboxAddress     string            `yaml:"mailbox_address"`
	MerkleHookAddress  string            `yaml:"merkle_hook_address"`
	InterchainGasPaymasterAddress string        `yaml:"interchain_gas_paymaster_address"`
	IndexStartBlock    int               `yaml:"index_start_block"`
	MinGasPayment      int               `yaml:"min_gas_payment"`
	ValidatorID        string            `yaml:"validator_id"`
	LogLevel           string            `yaml:"log_level"`
	CheckpointStoreURL string            `yaml:"checkpoint_store_url"`
	KaspaRPC           string            `yaml:"kaspa_rpc"`
	DatabaseURL        string            `yaml:"database_url"`
	MetricsAddr        string            `yaml:"metrics_addr"`
	HealthAddr         string            `yaml:"health_addr"`
}

// loadFileOverrides reads a YAML overrides file at path, if set. A missing
// CONFIG_FILE is not an error, the process falls back to env-only config.
func loadFileOverrides() (*fileOverrides, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return &fileOverrides{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var f fileOverrides
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// Load reads configuration from environment variables, layered over an
// optional CONFIG_FILE YAML file. Environment variables always win.
//
// SECURITY: Required variables have no defaults and must be explicitly set.
// Call Validate() after Load() to ensure all required configuration is present.
func Load() (*Config, error) {
	f, err := loadFileOverrides()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OriginChainID:     getEnvInt64("ORIGIN_CHAIN_ID", f.OriginChainID),
		OriginRPC:         getEnv("ORIGIN_RPC", f.OriginRPC),
		ReorgPeriodBlocks: uint64(getEnvInt("REORG_PERIOD_BLOCKS", orDefault(f.ReorgPeriodBlocks, 1))),
		IndexChunkSize:    getEnvInt("INDEX_CHUNK_SIZE", orDefault(f.IndexChunkSize, 1000)),

		SignerKeyPath: getEnv("SIGNER_KEY_PATH", f.SignerKeyPath),
		DataDir:       getEnv("DATA_DIR", orDefaultStr(f.DataDir, "./data")),

		MailboxAddress:                getEnv("MAILBOX_ADDRESS", f.MailboxAddress),
		MerkleHookAddress:             getEnv("MERKLE_HOOK_ADDRESS", f.MerkleHookAddress),
		InterchainGasPaymasterAddress: getEnv("INTERCHAIN_GAS_PAYMASTER_ADDRESS", f.InterchainGasPaymasterAddress),

		IndexStartBlock: uint64(getEnvInt("INDEX_START_BLOCK", f.IndexStartBlock)),
		MinGasPayment:   uint64(getEnvInt("MIN_GAS_PAYMENT", f.MinGasPayment)),

		ValidatorID: getEnv("VALIDATOR_ID", f.ValidatorID),
		LogLevel:    getEnv("LOG_LEVEL", orDefaultStr(f.LogLevel, "info")),

		CheckpointStoreURL:     getEnv("CHECKPOINT_STORE_URL", f.CheckpointStoreURL),
		CheckpointSignInterval: getEnvDuration("CHECKPOINT_SIGN_INTERVAL", 5*time.Second),

		KaspaRPC:              getEnv("KASPA_RPC", f.KaspaRPC),
		KaspaEscrowValidators: parseCommaList(getEnv("KASPA_ESCROW_VALIDATORS", "")),
		KaspaEscrowThreshold:  getEnvInt("KASPA_ESCROW_THRESHOLD", 0),

		DatabaseURL:         getEnv("DATABASE_URL", f.DatabaseURL),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 10),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 1),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),
		DatabaseRequired:    getEnvBool("DATABASE_REQUIRED", false),

		MetricsAddr: getEnv("METRICS_ADDR", orDefaultStr(f.MetricsAddr, ":9090")),
		HealthAddr:  getEnv("HEALTH_ADDR", orDefaultStr(f.HealthAddr, ":8081")),

		ValidatorAnnouncementPeers: parseCommaList(getEnv("VALIDATOR_ANNOUNCEMENT_PEERS", "")),
	}

	cfg.DestinationRPCs = make(map[int64]string)
	for domain, url := range f.DestinationRPCs {
		id, err := strconv.ParseInt(strings.TrimSpace(domain), 10, 64)
		if err != nil {
			continue
		}
		cfg.DestinationRPCs[id] = strings.TrimSpace(url)
	}
	for _, entry := range parseCommaList(getEnv("DESTINATION_RPCS", "")) {
		domain, url, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(domain), 10, 64)
		if err != nil {
			continue
		}
		cfg.DestinationRPCs[id] = strings.TrimSpace(url)
	}

	return cfg, nil
}

func orDefault(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orDefaultStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.OriginChainID == 0 {
		return fmt.Errorf("ORIGIN_CHAIN_ID is required")
	}
	if c.OriginRPC == "" {
		return fmt.Errorf("ORIGIN_RPC is required")
	}
	if c.SignerKeyPath == "" {
		return fmt.Errorf("SIGNER_KEY_PATH is required")
	}
	if c.CheckpointStoreURL == "" {
		return fmt.Errorf("CHECKPOINT_STORE_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseCommaList parses a comma-separated list, trimming whitespace and
// dropping empty entries. Used for destination RPC pairs, escrow validator
// keys and announcement peer URLs.
func parseCommaList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
