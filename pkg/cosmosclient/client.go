// Copyright 2025 Certen Protocol
//
// Package cosmosclient is a minimal read-only client for the Cosmos-Hub
// mailbox the Kaspa bridge confirms against: ABCI queries for a
// withdrawal's processed status and for the escrow's last-committed anchor
// outpoint, over CometBFT's RPC/HTTP client.
package cosmosclient

import (
	"context"
	"encoding/json"
	"fmt"

	rpcclient "github.com/cometbft/cometbft/rpc/client"
	cmthttp "github.com/cometbft/cometbft/rpc/client/http"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

var queryOpts = rpcclient.ABCIQueryOptions{Prove: false}

// Client queries the hub mailbox's Kaspa bridge module over ABCI.
type Client struct {
	rpc *cmthttp.HTTP
}

// New dials the hub's CometBFT RPC endpoint (e.g. "http://127.0.0.1:26657").
func New(rpcURL string) (*Client, error) {
	rpc, err := cmthttp.New(rpcURL, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("dial cometbft rpc: %w", err)
	}
	return &Client{rpc: rpc}, nil
}

// withdrawalStatusResponse mirrors the hub module's ABCI query response
// for "custom/kaspabridge/withdrawal_status/<message_id>".
type withdrawalStatusResponse struct {
	Unprocessed bool `json:"unprocessed"`
}

// IsUnprocessed reports whether messageId is still a pending withdrawal
// on the hub. It takes a context, so *Client does not satisfy
// pkg/kaspa.UnprocessedWithdrawals, whose IsUnprocessed takes none.
func (c *Client) IsUnprocessed(ctx context.Context, messageId hyptypes.H256) (bool, error) {
	path := fmt.Sprintf("custom/kaspabridge/withdrawal_status/%s", messageId.Hex())
	result, err := c.rpc.ABCIQueryWithOptions(ctx, path, nil, queryOpts)
	if err != nil {
		return false, fmt.Errorf("query withdrawal status: %w", err)
	}
	if result.Response.Code != 0 {
		return false, fmt.Errorf("withdrawal status query failed: %s", result.Response.Log)
	}
	var resp withdrawalStatusResponse
	if err := json.Unmarshal(result.Response.Value, &resp); err != nil {
		return false, fmt.Errorf("decode withdrawal status: %w", err)
	}
	return resp.Unprocessed, nil
}

// outpointResponse mirrors the hub module's ABCI query response for
// "custom/kaspabridge/anchor".
type outpointResponse struct {
	TxId  string `json:"tx_id"`
	Index uint32 `json:"index"`
}

// LatestAnchor returns the hub's last-committed escrow anchor outpoint.
func (c *Client) LatestAnchor(ctx context.Context) (txId hyptypes.H256, index uint32, err error) {
	result, err := c.rpc.ABCIQueryWithOptions(ctx, "custom/kaspabridge/anchor", nil, queryOpts)
	if err != nil {
		return hyptypes.H256{}, 0, fmt.Errorf("query anchor: %w", err)
	}
	if result.Response.Code != 0 {
		return hyptypes.H256{}, 0, fmt.Errorf("anchor query failed: %s", result.Response.Log)
	}
	var resp outpointResponse
	if err := json.Unmarshal(result.Response.Value, &resp); err != nil {
		return hyptypes.H256{}, 0, fmt.Errorf("decode anchor: %w", err)
	}
	return hyptypes.BytesToH256([]byte(resp.TxId)), resp.Index, nil
}
