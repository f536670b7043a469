package sender

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/gasstation"
	"github.com/dev-protocol/send-transactions/store"
	"github.com/dev-protocol/send-transactions/wallet"
)

const (
	testKey      = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testChainID  = uint64(137)
	testStation  = "http://gas.station.invalid/v2"
	testTokenABI = `[{"type":"function","name":"mint","stateMutability":"nonpayable",
		"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}]`
)

var (
	testContract  = common.HexToAddress("0x5caf454ba92e6f2c929df14667ee360ed9fd5b26")
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	gwei          = big.NewInt(1_000_000_000)
)

func gweiOf(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), gwei)
}

func float(v float64) *float64 {
	return &v
}

func testConfig() *config.Config {
	return &config.Config{
		Fee: config.FeeConfig{
			Multiplier:  decimal.RequireFromString("1.2"),
			GasStations: map[uint64]string{testChainID: testStation},
			Timeout:     time.Second,
		},
		Idempotency: config.IdempotencyConfig{
			Cooldown: time.Minute,
			Lock:     true,
			LockTTL:  2 * time.Minute,
		},
		Retry: config.RetryConfig{MaxAttempts: 5, Interval: 350 * time.Millisecond},
	}
}

func testIntent(t *testing.T) Intent {
	parsed, err := abi.JSON(strings.NewReader(testTokenABI))
	require.NoError(t, err)
	return Intent{
		Contract: testContract,
		ABI:      &parsed,
		Method:   "mint",
		Args:     []interface{}{testRecipient, big.NewInt(1000)},
		ChainID:  testChainID,
		RPCURL:   "http://rpc.invalid",
	}
}

func testSigner(t *testing.T) *wallet.KeySigner {
	signer, err := wallet.FromHex(testKey)
	require.NoError(t, err)
	return signer
}

// fakeChain is a scripted JSON-RPC backend. sendErrs[i] is returned by the
// i-th SendTransaction call; calls past the end succeed.
type fakeChain struct {
	mu sync.Mutex

	tip         *big.Int
	tipErr      error
	baseFee     *big.Int
	headerErr   error
	gas         uint64
	estimateErr error
	nonce       uint64
	nonceErrs   []error
	sendErrs    []error

	tipCalls, headerCalls, estimateCalls, nonceCalls, sendCalls int
	dials, closes                                               int
	sent                                                        []*types.Transaction
	lastCall                                                    ethereum.CallMsg
}

func newFakeChain() *fakeChain {
	return &fakeChain{tip: gweiOf(30), baseFee: gweiOf(50), gas: 100_000, nonce: 7}
}

func (f *fakeChain) dial(ctx context.Context, url string) (ChainClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	return f, nil
}

func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tipCalls++
	return f.tip, f.tipErr
}

func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headerCalls++
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	return &types.Header{Number: big.NewInt(1), BaseFee: f.baseFee}, nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateCalls++
	f.lastCall = msg
	return f.gas, f.estimateErr
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.nonceCalls
	f.nonceCalls++
	if idx < len(f.nonceErrs) && f.nonceErrs[idx] != nil {
		return 0, f.nonceErrs[idx]
	}
	return f.nonce, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.sendCalls
	f.sendCalls++
	if idx < len(f.sendErrs) && f.sendErrs[idx] != nil {
		return f.sendErrs[idx]
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(2)}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

type fakeGasStation struct {
	mu         sync.Mutex
	suggestion *gasstation.Suggestion
	err        error
	calls      int
	urls       []string
}

func healthyGasStation() *fakeGasStation {
	return &fakeGasStation{suggestion: &gasstation.Suggestion{
		Fast: &gasstation.Tier{MaxFee: float(100.5), MaxPriorityFee: float(30)},
	}}
}

func (f *fakeGasStation) Suggest(ctx context.Context, url string) (*gasstation.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append(f.urls, url)
	return f.suggestion, f.err
}

// failingStore fails the operations it has an error for.
type failingStore struct {
	getErr error
	setErr error
	closed bool
}

func (s *failingStore) Get(ctx context.Context, key string) (store.Record, bool, error) {
	return store.Record{}, false, s.getErr
}

func (s *failingStore) Set(ctx context.Context, key string, record store.Record) error {
	return s.setErr
}

func (s *failingStore) Close() error {
	s.closed = true
	return nil
}

var errRPC = errors.New("connection reset by peer")

type recordingJournal struct {
	mu       sync.Mutex
	keys     []string
	outcomes []Outcome
}

func (j *recordingJournal) Append(ctx context.Context, key string, outcome Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.keys = append(j.keys, key)
	j.outcomes = append(j.outcomes, outcome)
	return nil
}
