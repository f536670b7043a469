package sender

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Intent is one validated request to call a contract method. Data, when
// set, replaces ABI, Method and Args as the encoded call.
type Intent struct {
	Contract common.Address
	ABI      *abi.ABI
	Method   string
	Args     []interface{}
	Data     []byte
	ChainID  uint64
	RPCURL   string
}

// CallData encodes the method call. Encoding does not touch the network, so
// it is also what the dedup key is derived from.
func (i Intent) CallData() ([]byte, error) {
	if i.ABI == nil {
		if i.Method != "" {
			return nil, fmt.Errorf("%w: no ABI for method %q", ErrMethodNotCallable, i.Method)
		}
		return common.CopyBytes(i.Data), nil
	}
	if _, ok := i.ABI.Methods[i.Method]; !ok {
		return nil, fmt.Errorf("%w: contract has no method %q", ErrMethodNotCallable, i.Method)
	}
	data, err := i.ABI.Pack(i.Method, i.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", ErrMethodNotCallable, i.Method, err)
	}
	return data, nil
}

type FeeSource string

const (
	FeeSourceGasStation FeeSource = "gas-station"
	FeeSourceChain      FeeSource = "chain"
)

// FeeEstimate is in wei with the multiplier already applied.
type FeeEstimate struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Source               FeeSource
}

type UnsignedTx struct {
	To       common.Address
	Data     []byte
	GasLimit uint64
	Fee      FeeEstimate
}

type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Interval: 350 * time.Millisecond}

func (p RetryPolicy) Check() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy needs at least 1 attempt, got %d", p.MaxAttempts)
	}
	if p.Interval < 0 {
		return fmt.Errorf("retry interval cannot be negative")
	}
	return nil
}

// Outcome is the result of one invocation: Tx on success, Reason otherwise.
type Outcome struct {
	Tx       *types.Transaction
	Reason   error
	Attempts int

	RequestID string
	ChainID   uint64
	To        common.Address
}

func (o Outcome) Success() bool {
	return o.Tx != nil && o.Reason == nil
}

type SendOptions struct {
	RequestID string
	// Retry overrides the engine's default policy when set.
	Retry *RetryPolicy
}

// ChainClient is the slice of the JSON-RPC API the relay uses.
// *rpcclient.ChainClient implements it.
type ChainClient interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

type Dialer func(ctx context.Context, rpcURL string) (ChainClient, error)

type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

type Metricer interface {
	RecordSend(result string, attempts int, duration time.Duration)
	RecordFeeSource(source string)
	RecordGuardRejection(reason string)
}

type noopMetricer struct{}

func (noopMetricer) RecordSend(string, int, time.Duration) {}
func (noopMetricer) RecordFeeSource(string)                {}
func (noopMetricer) RecordGuardRejection(string)           {}

var NoopMetrics Metricer = noopMetricer{}
