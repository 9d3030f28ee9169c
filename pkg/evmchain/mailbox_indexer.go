// Copyright 2025 Certen Protocol
//
// mailbox_indexer.go implements indexer.Indexer against a mailbox's
// Dispatch and InsertedIntoTree events and an interchain gas paymaster's
// GasPayment events: the concrete eth_getLogs sources the relayer's
// dispatch queue, the validator's merkle-tree submitter, and the relayer's
// gas payment policy all replay from.
package evmchain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/indexer"
	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/store"
)

const mailboxEventsABI = `[
	{"name":"Dispatch","type":"event","anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":true,"name":"destination","type":"uint32"},
		{"indexed":true,"name":"recipient","type":"bytes32"},
		{"indexed":false,"name":"message","type":"bytes"}
	]},
	{"name":"InsertedIntoTree","type":"event","anonymous":false,"inputs":[
		{"indexed":false,"name":"messageId","type":"bytes32"},
		{"indexed":false,"name":"index","type":"uint32"}
	]},
	{"name":"GasPayment","type":"event","anonymous":false,"inputs":[
		{"indexed":true,"name":"messageId","type":"bytes32"},
		{"indexed":false,"name":"destinationDomain","type":"uint32"},
		{"indexed":false,"name":"gasAmount","type":"uint256"},
		{"indexed":false,"name":"payment","type":"uint256"}
	]},
	{"name":"count","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
	{"name":"root","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
]`

var mailboxEvents abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(mailboxEventsABI))
	if err != nil {
		panic(fmt.Sprintf("evmchain: parse mailbox events abi: %v", err))
	}
	mailboxEvents = parsed
}

var (
	dispatchTopic         = mailboxEvents.Events["Dispatch"].ID
	insertedIntoTreeTopic = mailboxEvents.Events["InsertedIntoTree"].ID
	gasPaymentTopic       = mailboxEvents.Events["GasPayment"].ID
)

// LogSource is the eth_getLogs/head-polling plumbing every mailbox log
// indexer in this file is built from: one contract address, filtered by
// one event topic, capped at the chain's reorg-safe tip.
type LogSource struct {
	client            *ethclient.Client
	address           common.Address
	reorgPeriodBlocks uint64
}

func NewLogSource(rpc string, address common.Address, reorgPeriodBlocks uint64) (*LogSource, error) {
	client, err := ethclient.Dial(rpc)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return &LogSource{client: client, address: address, reorgPeriodBlocks: reorgPeriodBlocks}, nil
}

// GetFinalizedBlockNumber implements cursor.TipIndexer.
func (l *LogSource) GetFinalizedBlockNumber(ctx context.Context) (uint64, error) {
	head, err := l.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("get head header: %w", err)
	}
	if head.Number.Uint64() < l.reorgPeriodBlocks {
		return 0, nil
	}
	return head.Number.Uint64() - l.reorgPeriodBlocks, nil
}

func (l *LogSource) filterRange(ctx context.Context, from, to uint64, topic0 common.Hash) ([]types.Log, error) {
	return l.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{l.address},
		Topics:    [][]common.Hash{{topic0}},
	})
}

func (l *LogSource) filterTxHash(ctx context.Context, txHash hyptypes.H256, topic0 common.Hash) ([]types.Log, error) {
	receipt, err := l.client.TransactionReceipt(ctx, common.BytesToHash(txHash[:]))
	if err != nil {
		return nil, fmt.Errorf("get transaction receipt: %w", err)
	}
	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, lg := range receipt.Logs {
		if lg.Address == l.address && len(lg.Topics) > 0 && lg.Topics[0] == topic0 {
			logs = append(logs, *lg)
		}
	}
	return logs, nil
}

func logMeta(lg types.Log) indexer.LogMeta {
	return indexer.LogMeta{
		BlockNumber: lg.BlockNumber,
		BlockHash:   hyptypes.BytesToH256(lg.BlockHash.Bytes()),
		TxHash:      hyptypes.BytesToH256(lg.TxHash.Bytes()),
		TxIndex:     uint64(lg.TxIndex),
		LogIndex:    uint64(lg.Index),
	}
}

func leafBlockKey(index uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, index)
	return append([]byte("evmchain:leaf_block:"), b...)
}

// DispatchIndexer reads a mailbox's Dispatch events: every message the
// relayer's queue ever learns about comes from this log.
type DispatchIndexer struct {
	*LogSource
}

func NewDispatchIndexer(rpc string, mailbox common.Address, reorgPeriodBlocks uint64) (*DispatchIndexer, error) {
	src, err := NewLogSource(rpc, mailbox, reorgPeriodBlocks)
	if err != nil {
		return nil, err
	}
	return &DispatchIndexer{LogSource: src}, nil
}

func (d *DispatchIndexer) decode(lg types.Log) (indexer.Indexed[hyptypes.Message], error) {
	values, err := mailboxEvents.Unpack("Dispatch", lg.Data)
	if err != nil {
		return indexer.Indexed[hyptypes.Message]{}, fmt.Errorf("unpack dispatch: %w", err)
	}
	raw, ok := values[0].([]byte)
	if !ok {
		return indexer.Indexed[hyptypes.Message]{}, fmt.Errorf("unexpected dispatch message type %T", values[0])
	}
	msg, err := hyptypes.DecodeMessage(raw)
	if err != nil {
		return indexer.Indexed[hyptypes.Message]{}, fmt.Errorf("decode dispatched message: %w", err)
	}
	return indexer.Indexed[hyptypes.Message]{Event: msg, Meta: logMeta(lg)}, nil
}

func (d *DispatchIndexer) FetchLogsInRange(ctx context.Context, from, to uint64) ([]indexer.Indexed[hyptypes.Message], error) {
	logs, err := d.filterRange(ctx, from, to, dispatchTopic)
	if err != nil {
		return nil, fmt.Errorf("filter dispatch logs: %w", err)
	}
	out := make([]indexer.Indexed[hyptypes.Message], 0, len(logs))
	for _, lg := range logs {
		ev, err := d.decode(lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (d *DispatchIndexer) FetchLogsByTxHash(ctx context.Context, txHash hyptypes.H256) ([]indexer.Indexed[hyptypes.Message], error) {
	logs, err := d.filterTxHash(ctx, txHash, dispatchTopic)
	if err != nil {
		return nil, err
	}
	out := make([]indexer.Indexed[hyptypes.Message], 0, len(logs))
	for _, lg := range logs {
		ev, err := d.decode(lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// FetchCountAtTip implements cursor.NonceTipIndexer against the mailbox's
// count() view, the dispatch-nonce tip the sequence-aware cursor compares
// its own replayed nonce against.
func (d *DispatchIndexer) FetchCountAtTip(ctx context.Context) (uint32, uint64, error) {
	tip, err := d.GetFinalizedBlockNumber(ctx)
	if err != nil {
		return 0, 0, err
	}
	calldata, err := mailboxEvents.Pack("count")
	if err != nil {
		return 0, 0, fmt.Errorf("pack count calldata: %w", err)
	}
	result, err := d.client.CallContract(ctx, ethereum.CallMsg{To: &d.address, Data: calldata}, new(big.Int).SetUint64(tip))
	if err != nil {
		return 0, 0, fmt.Errorf("call mailbox.count: %w", err)
	}
	outputs, err := mailboxEvents.Unpack("count", result)
	if err != nil {
		return 0, 0, fmt.Errorf("unpack count: %w", err)
	}
	count, ok := outputs[0].(uint32)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected count type %T", outputs[0])
	}
	return count, tip, nil
}

// MerkleHookIndexer reads a mailbox's own merkle-tree-hook InsertedIntoTree
// events, the leaf-index/message-id records a validator replays into its
// incremental tree. It also records the block each leaf was inserted in,
// the input HistoricalRootSource needs to verify a checkpoint's root
// independently of the validator's own replayed tree.
type MerkleHookIndexer struct {
	*LogSource
	blocks store.KV
}

func NewMerkleHookIndexer(rpc string, hook common.Address, reorgPeriodBlocks uint64, blocks store.KV) (*MerkleHookIndexer, error) {
	src, err := NewLogSource(rpc, hook, reorgPeriodBlocks)
	if err != nil {
		return nil, err
	}
	return &MerkleHookIndexer{LogSource: src, blocks: blocks}, nil
}

func (m *MerkleHookIndexer) decode(lg types.Log) (indexer.Indexed[hyptypes.MerkleTreeInsertion], error) {
	values, err := mailboxEvents.Unpack("InsertedIntoTree", lg.Data)
	if err != nil {
		return indexer.Indexed[hyptypes.MerkleTreeInsertion]{}, fmt.Errorf("unpack insertedintotree: %w", err)
	}
	messageId, ok := values[0].([32]byte)
	if !ok {
		return indexer.Indexed[hyptypes.MerkleTreeInsertion]{}, fmt.Errorf("unexpected messageId type %T", values[0])
	}
	index, ok := values[1].(uint32)
	if !ok {
		return indexer.Indexed[hyptypes.MerkleTreeInsertion]{}, fmt.Errorf("unexpected index type %T", values[1])
	}
	if m.blocks != nil {
		block := make([]byte, 8)
		binary.BigEndian.PutUint64(block, lg.BlockNumber)
		if err := m.blocks.Set(leafBlockKey(index), block); err != nil {
			return indexer.Indexed[hyptypes.MerkleTreeInsertion]{}, fmt.Errorf("record leaf block: %w", err)
		}
	}
	ins := hyptypes.MerkleTreeInsertion{LeafIndex: index, MessageId: hyptypes.H256(messageId)}
	return indexer.Indexed[hyptypes.MerkleTreeInsertion]{Event: ins, Meta: logMeta(lg)}, nil
}

func (m *MerkleHookIndexer) FetchLogsInRange(ctx context.Context, from, to uint64) ([]indexer.Indexed[hyptypes.MerkleTreeInsertion], error) {
	logs, err := m.filterRange(ctx, from, to, insertedIntoTreeTopic)
	if err != nil {
		return nil, fmt.Errorf("filter insertedintotree logs: %w", err)
	}
	out := make([]indexer.Indexed[hyptypes.MerkleTreeInsertion], 0, len(logs))
	for _, lg := range logs {
		ev, err := m.decode(lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *MerkleHookIndexer) FetchLogsByTxHash(ctx context.Context, txHash hyptypes.H256) ([]indexer.Indexed[hyptypes.MerkleTreeInsertion], error) {
	logs, err := m.filterTxHash(ctx, txHash, insertedIntoTreeTopic)
	if err != nil {
		return nil, err
	}
	out := make([]indexer.Indexed[hyptypes.MerkleTreeInsertion], 0, len(logs))
	for _, lg := range logs {
		ev, err := m.decode(lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// HistoricalRootSource implements checkpoint.OriginRootSource by calling a
// mailbox's root() view at the historical block height the requested leaf
// was recorded at, independent of the validator's own locally replayed
// tree, so a reorg that silently changed history is actually detectable.
type HistoricalRootSource struct {
	client  *ethclient.Client
	mailbox common.Address
	blocks  store.KV
}

func NewHistoricalRootSource(rpc string, mailbox common.Address, blocks store.KV) (*HistoricalRootSource, error) {
	client, err := ethclient.Dial(rpc)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return &HistoricalRootSource{client: client, mailbox: mailbox, blocks: blocks}, nil
}

func (h *HistoricalRootSource) RootAtIndex(ctx context.Context, index uint32) (hyptypes.H256, error) {
	b, err := h.blocks.Get(leafBlockKey(index))
	if err != nil {
		return hyptypes.H256{}, err
	}
	if b == nil {
		return hyptypes.H256{}, fmt.Errorf("evmchain: no recorded block for leaf index %d", index)
	}
	block := binary.BigEndian.Uint64(b)

	calldata, err := mailboxEvents.Pack("root")
	if err != nil {
		return hyptypes.H256{}, fmt.Errorf("pack root calldata: %w", err)
	}
	result, err := h.client.CallContract(ctx, ethereum.CallMsg{To: &h.mailbox, Data: calldata}, new(big.Int).SetUint64(block))
	if err != nil {
		return hyptypes.H256{}, fmt.Errorf("call mailbox.root at block %d: %w", block, err)
	}
	outputs, err := mailboxEvents.Unpack("root", result)
	if err != nil {
		return hyptypes.H256{}, fmt.Errorf("unpack root: %w", err)
	}
	root, ok := outputs[0].([32]byte)
	if !ok {
		return hyptypes.H256{}, fmt.Errorf("unexpected root type %T", outputs[0])
	}
	return hyptypes.H256(root), nil
}

// GasPaymentIndexer reads an interchain gas paymaster's GasPayment events,
// the input the relayer's gas payment policy aggregates into
// store.GasPaymentStore before a message is allowed into Prepare.
type GasPaymentIndexer struct {
	*LogSource
}

func NewGasPaymentIndexer(rpc string, igp common.Address, reorgPeriodBlocks uint64) (*GasPaymentIndexer, error) {
	src, err := NewLogSource(rpc, igp, reorgPeriodBlocks)
	if err != nil {
		return nil, err
	}
	return &GasPaymentIndexer{LogSource: src}, nil
}

func (g *GasPaymentIndexer) decode(lg types.Log) (indexer.Indexed[hyptypes.GasPayment], error) {
	if len(lg.Topics) < 2 {
		return indexer.Indexed[hyptypes.GasPayment]{}, fmt.Errorf("gas payment log missing indexed messageId topic")
	}
	values, err := mailboxEvents.Unpack("GasPayment", lg.Data)
	if err != nil {
		return indexer.Indexed[hyptypes.GasPayment]{}, fmt.Errorf("unpack gaspayment: %w", err)
	}
	payment, ok := values[2].(*big.Int)
	if !ok {
		return indexer.Indexed[hyptypes.GasPayment]{}, fmt.Errorf("unexpected payment type %T", values[2])
	}
	gp := hyptypes.GasPayment{
		MessageId: hyptypes.BytesToH256(lg.Topics[1].Bytes()),
		Payment:   payment.Uint64(),
	}
	return indexer.Indexed[hyptypes.GasPayment]{Event: gp, Meta: logMeta(lg)}, nil
}

func (g *GasPaymentIndexer) FetchLogsInRange(ctx context.Context, from, to uint64) ([]indexer.Indexed[hyptypes.GasPayment], error) {
	logs, err := g.filterRange(ctx, from, to, gasPaymentTopic)
	if err != nil {
		return nil, fmt.Errorf("filter gas payment logs: %w", err)
	}
	out := make([]indexer.Indexed[hyptypes.GasPayment], 0, len(logs))
	for _, lg := range logs {
		ev, err := g.decode(lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (g *GasPaymentIndexer) FetchLogsByTxHash(ctx context.Context, txHash hyptypes.H256) ([]indexer.Indexed[hyptypes.GasPayment], error) {
	logs, err := g.filterTxHash(ctx, txHash, gasPaymentTopic)
	if err != nil {
		return nil, err
	}
	out := make([]indexer.Indexed[hyptypes.GasPayment], 0, len(logs))
	for _, lg := range logs {
		ev, err := g.decode(lg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
