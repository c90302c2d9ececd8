package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/wnt/solforge/internal/metrics"
)

// BalanceSource resolves a wallet's SOL balance.
type BalanceSource interface {
	Balance(ctx context.Context, wallet string) (float64, error)
}

// Client queries wallet balances from a Solana RPC endpoint. The ledger
// never depends on it for correctness: balance lookups are informational
// and callers fall back to zero on failure.
type Client struct {
	rpcClient *rpc.Client
	endpoint  string
	logger    zerolog.Logger
}

// NewClient creates a new Solana client and verifies connectivity.
func NewClient(endpoint string, log zerolog.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("RPC endpoint is not set")
	}

	rpcClient := rpc.New(endpoint)

	// Check connection by getting the latest block height
	_, err := rpcClient.GetBlockHeight(context.Background(), rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Solana RPC: %w", err)
	}

	return &Client{
		rpcClient: rpcClient,
		endpoint:  endpoint,
		logger:    log.With().Str("component", "chain").Logger(),
	}, nil
}

// Balance returns the SOL balance for a wallet address.
func (c *Client) Balance(ctx context.Context, wallet string) (float64, error) {
	pubkey, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		metrics.RecordBalanceLookup("failed")
		return 0, fmt.Errorf("invalid wallet address: %w", err)
	}

	out, err := c.rpcClient.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		metrics.RecordBalanceLookup("failed")
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	metrics.RecordBalanceLookup("success")
	return float64(out.Value) / 1e9, nil // lamports to SOL
}
