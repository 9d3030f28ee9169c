// Copyright 2025 Certen Protocol
//
// Package evmchain is the EVM ChainAdapter the Lander pipeline drives for
// every EVM-compatible destination, plus the eth_call helpers the relayer
// and validator need against a mailbox and its ISMs: delivery checks and
// multisig ISM validator set reads.
package evmchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/lander"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/lander/nonce"
)

const multisigIsmABI = `[{"name":"validatorsAndThreshold","type":"function","stateMutability":"view","inputs":[{"name":"_message","type":"bytes"}],"outputs":[{"name":"","type":"address[]"},{"name":"","type":"uint8"}]}]`

var multisigIsmMethod abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(multisigIsmABI))
	if err != nil {
		panic(fmt.Sprintf("evmchain: parse multisig ism abi: %v", err))
	}
	multisigIsmMethod = parsed
}

// defaultEscalationPercent bumps the priority fee on each resubmission.
const defaultEscalationPercent = 25

// Config configures an Adapter.
type Config struct {
	RPC                    string
	ChainID                hyptypes.Domain
	Signer                 *ecdsa.PrivateKey
	MailboxAddress         common.Address
	ReorgPeriodBlocks      uint64
	MinResubmissionSeconds int64
	EscalationPercent      int64
	Logger                 *log.Logger
}

// Adapter implements lander.ChainAdapter for EVM chains.
type Adapter struct {
	cfg    *Config
	client *ethclient.Client
	nonces *nonce.Manager
	from   common.Address
	logger *log.Logger
}

func NewAdapter(cfg *Config, nonces *nonce.Manager) (*Adapter, error) {
	if cfg == nil || cfg.Signer == nil {
		return nil, ErrMissingSigner
	}
	if cfg.MinResubmissionSeconds == 0 {
		cfg.MinResubmissionSeconds = 60
	}
	if cfg.EscalationPercent == 0 {
		cfg.EscalationPercent = defaultEscalationPercent
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[EVMAdapter] ", log.LstdFlags)
	}
	client, err := ethclient.Dial(cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	publicKey, ok := cfg.Signer.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrInvalidSigner
	}
	return &Adapter{
		cfg:    cfg,
		client: client,
		nonces: nonces,
		from:   crypto.PubkeyToAddress(*publicKey),
		logger: cfg.Logger,
	}, nil
}

func (a *Adapter) Platform() string         { return "evm" }
func (a *Adapter) ChainID() hyptypes.Domain { return a.cfg.ChainID }

func (a *Adapter) MinTimeBetweenResubmissions() int64 {
	return a.cfg.MinResubmissionSeconds
}

// BuildTransactions batches one payload per transaction: every EVM
// Hyperlane call (process, postDispatch) stands alone because recipients
// need an accurate msg.sender and gas accounting per call.
func (a *Adapter) BuildTransactions(ctx context.Context, payloads []*hyptypes.Payload, maxBatchSize int) ([]lander.TxBuildingResult, error) {
	results := make([]lander.TxBuildingResult, 0, len(payloads))
	for _, p := range payloads {
		to := p.To
		tx := &hyptypes.Transaction{
			Uuid:       uuid.New(),
			PayloadIds: []uuid.UUID{p.Id},
			Precursor: hyptypes.VmSpecificTxData{
				VM:      "evm",
				EvmTo:   &to,
				EvmData: p.Calldata,
			},
			Signer: hyptypes.AddressToH256(a.from),
		}
		if _, err := a.dryRun(ctx, tx); err != nil {
			a.logger.Printf("dry run failed for payload %s: %v", p.Id, err)
			results = append(results, lander.TxBuildingResult{Payloads: []*hyptypes.Payload{p}})
			continue
		}
		results = append(results, lander.TxBuildingResult{Payloads: []*hyptypes.Payload{p}, Transaction: tx})
	}
	return results, nil
}

func (a *Adapter) dryRun(ctx context.Context, tx *hyptypes.Transaction) ([]byte, error) {
	return a.client.CallContract(ctx, a.callMsg(tx), nil)
}

func (a *Adapter) callMsg(tx *hyptypes.Transaction) ethereum.CallMsg {
	to := tx.Precursor.EvmTo.Address()
	return ethereum.CallMsg{From: a.from, To: &to, Data: tx.Precursor.EvmData}
}

func (a *Adapter) AssignNonce(ctx context.Context, tx *hyptypes.Transaction) error {
	if tx.Nonce != nil {
		return nil
	}
	n, err := a.nonces.AssignNonce(ctx, tx.Uuid)
	if err != nil {
		return fmt.Errorf("assign nonce: %w", err)
	}
	tx.Nonce = &n
	return nil
}

func (a *Adapter) EstimateGasLimit(ctx context.Context, tx *hyptypes.Transaction) (uint64, error) {
	limit, err := a.client.EstimateGas(ctx, a.callMsg(tx))
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return limit, nil
}

// EstimateGasPrice quotes an EIP-1559 price. On resubmission (escalate),
// the priority fee is bumped by EscalationPercent and the fee cap
// recomputed from the current base fee plus the bumped priority fee, per
// the submission pipeline's escalation rule.
func (a *Adapter) EstimateGasPrice(ctx context.Context, tx *hyptypes.Transaction, escalate bool, previous *lander.GasPrice) (*lander.GasPrice, error) {
	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get head header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	priority, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest tip cap: %w", err)
	}
	if escalate && previous != nil && previous.PriorityFee != nil {
		bumped := new(big.Int).Mul(previous.PriorityFee, big.NewInt(100+a.cfg.EscalationPercent))
		bumped.Div(bumped, big.NewInt(100))
		if bumped.Cmp(priority) > 0 {
			priority = bumped
		}
	}

	feeCap := new(big.Int).Add(baseFee, priority)
	feeCap.Mul(feeCap, big.NewInt(2))
	return &lander.GasPrice{BaseFee: baseFee, PriorityFee: priority, FeeCap: feeCap}, nil
}

func (a *Adapter) SubmitTransaction(ctx context.Context, tx *hyptypes.Transaction, price *lander.GasPrice) (hyptypes.H256, error) {
	to := tx.Precursor.EvmTo.Address()
	dtx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(int64(a.cfg.ChainID)),
		Nonce:     *tx.Nonce,
		GasTipCap: price.PriorityFee,
		GasFeeCap: price.FeeCap,
		Gas:       tx.GasLimit,
		To:        &to,
		Data:      tx.Precursor.EvmData,
	})
	signed, err := types.SignTx(dtx, types.LatestSignerForChainID(big.NewInt(int64(a.cfg.ChainID))), a.cfg.Signer)
	if err != nil {
		return hyptypes.H256{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return hyptypes.H256{}, fmt.Errorf("send transaction: %w", err)
	}
	return hyptypes.BytesToH256(signed.Hash().Bytes()), nil
}

func (a *Adapter) GetReceipt(ctx context.Context, txHash hyptypes.H256) (*lander.Receipt, error) {
	hash := common.BytesToHash(txHash[:])
	receipt, err := a.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &lander.Receipt{Found: false}, nil
		}
		return nil, fmt.Errorf("get transaction receipt: %w", err)
	}
	return &lander.Receipt{
		Found:       true,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
	}, nil
}

func (a *Adapter) FinalizedBlock(ctx context.Context) (uint64, error) {
	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("get head header: %w", err)
	}
	if head.Number.Uint64() < a.cfg.ReorgPeriodBlocks {
		return 0, nil
	}
	return head.Number.Uint64() - a.cfg.ReorgPeriodBlocks, nil
}

// deliveredSelector is the first 4 bytes of keccak256("delivered(bytes32)").
var deliveredSelector = crypto.Keccak256([]byte("delivered(bytes32)"))[:4]

// Delivered reports whether mailbox has already processed messageId, the
// eth_call the relayer's Confirm stage polls after enqueueing a process
// payload.
func (a *Adapter) Delivered(ctx context.Context, mailbox common.Address, messageId hyptypes.H256) (bool, error) {
	data := append(append([]byte{}, deliveredSelector...), messageId[:]...)
	result, err := a.client.CallContract(ctx, ethereum.CallMsg{From: a.from, To: &mailbox, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call mailbox.delivered: %w", err)
	}
	if len(result) < 32 {
		return false, fmt.Errorf("unexpected delivered() return length %d", len(result))
	}
	return result[31] != 0, nil
}

// ValidatorsAndThreshold implements ismmeta.IsmReader against a multisig
// ISM contract deployed at ismAddress, used to resolve op.Message's
// recipient ISM before building process() metadata.
func (a *Adapter) ValidatorsAndThreshold(ctx context.Context, ismAddress hyptypes.H256, message hyptypes.Message) ([]hyptypes.H256, uint8, error) {
	calldata, err := multisigIsmMethod.Pack("validatorsAndThreshold", message.Encode())
	if err != nil {
		return nil, 0, fmt.Errorf("pack validatorsAndThreshold calldata: %w", err)
	}
	to := ismAddress.Address()
	result, err := a.client.CallContract(ctx, ethereum.CallMsg{From: a.from, To: &to, Data: calldata}, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("call validatorsAndThreshold: %w", err)
	}
	outputs, err := multisigIsmMethod.Unpack("validatorsAndThreshold", result)
	if err != nil {
		return nil, 0, fmt.Errorf("unpack validatorsAndThreshold: %w", err)
	}
	if len(outputs) != 2 {
		return nil, 0, fmt.Errorf("unexpected validatorsAndThreshold output count %d", len(outputs))
	}
	addrs, ok := outputs[0].([]common.Address)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected validators type %T", outputs[0])
	}
	threshold, ok := outputs[1].(uint8)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected threshold type %T", outputs[1])
	}
	validators := make([]hyptypes.H256, len(addrs))
	for i, addr := range addrs {
		validators[i] = hyptypes.AddressToH256(addr)
	}
	return validators, threshold, nil
}

// RevertedPayloads runs each payload's on-chain post-check via eth_call and
// returns those whose postcondition doesn't hold.
func (a *Adapter) RevertedPayloads(ctx context.Context, tx *hyptypes.Transaction, payloads []*hyptypes.Payload) ([]*hyptypes.Payload, error) {
	var reverted []*hyptypes.Payload
	for _, p := range payloads {
		if p.SuccessCriteria == nil {
			continue
		}
		to := p.SuccessCriteria.To.Address()
		result, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: p.SuccessCriteria.CallData}, nil)
		if err != nil {
			reverted = append(reverted, p)
			continue
		}
		if !p.SuccessCriteria.Check(result) {
			reverted = append(reverted, p)
		}
	}
	return reverted, nil
}
