// Package rpcclient wraps the JSON-RPC connection to the target chain.
package rpcclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dev-protocol/send-transactions/common/retry"
)

const defaultDialAttempts = 3

// ChainClient is one JSON-RPC session. The relay opens one per invocation
// and closes it when the invocation ends.
type ChainClient struct {
	RpcUrl string
	client *ethclient.Client
}

// Dial connects to rpcUrl, retrying transient dial failures.
func Dial(ctx context.Context, rpcUrl string) (*ChainClient, error) {
	log.Debug("dial chain rpc", "url", rpcUrl)
	strategy := &retry.ExponentialStrategy{Min: 200 * time.Millisecond, Max: 2 * time.Second, MaxJitter: 100 * time.Millisecond}
	client, err := retry.Do[*ethclient.Client](ctx, defaultDialAttempts, strategy, func() (*ethclient.Client, error) {
		return ethclient.DialContext(ctx, rpcUrl)
	})
	if err != nil {
		log.Error("dial chain rpc failed", "url", rpcUrl, "err", err)
		return nil, fmt.Errorf("dial %s: %w", rpcUrl, err)
	}
	return &ChainClient{RpcUrl: rpcUrl, client: client}, nil
}

func (c *ChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.client.ChainID(ctx)
}

func (c *ChainClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		log.Warn("eth_maxPriorityFeePerGas failed", "url", c.RpcUrl, "err", err)
		return nil, err
	}
	return tip, nil
}

func (c *ChainClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.client.HeaderByNumber(ctx, number)
}

func (c *ChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.client.EstimateGas(ctx, msg)
}

func (c *ChainClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.client.PendingNonceAt(ctx, account)
}

func (c *ChainClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	log.Info("send tx", "hash", tx.Hash(), "nonce", tx.Nonce(), "url", c.RpcUrl)
	return c.client.SendTransaction(ctx, tx)
}

func (c *ChainClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.client.TransactionReceipt(ctx, hash)
}

func (c *ChainClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.client.CodeAt(ctx, account, blockNumber)
}

func (c *ChainClient) Close() {
	c.client.Close()
}
