package sender

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/shopspring/decimal"

	"github.com/dev-protocol/send-transactions/common/bigint"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/gasstation"
)

// GasStation is the fee-estimation service. *gasstation.Client implements it.
type GasStation interface {
	Suggest(ctx context.Context, url string) (*gasstation.Suggestion, error)
}

// FeeChain is the chain's own fee data, used as the fallback source.
type FeeChain interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

type FeeResolver struct {
	stations             map[uint64]string
	gasStation           GasStation
	multiplier           decimal.Decimal
	fallbackUnknownChain bool
}

func NewFeeResolver(cfg config.FeeConfig, gasStation GasStation) *FeeResolver {
	if gasStation == nil {
		gasStation = gasstation.NewClient(cfg.Timeout)
	}
	return &FeeResolver{
		stations:             cfg.GasStations,
		gasStation:           gasStation,
		multiplier:           cfg.Multiplier,
		fallbackUnknownChain: cfg.FallbackUnknownChain,
	}
}

// Resolve prefers the chain's gas station fast tier and falls back to the
// chain's fee data once when the station is unusable.
func (r *FeeResolver) Resolve(ctx context.Context, chainID uint64, chain FeeChain) (FeeEstimate, error) {
	var stationErr error
	url, ok := r.stations[chainID]
	switch {
	case ok:
		fee, err := r.fromGasStation(ctx, url)
		if err == nil {
			return fee, nil
		}
		if ctx.Err() != nil {
			return FeeEstimate{}, ctx.Err()
		}
		log.Warn("gas station unusable, falling back to chain fee data", "chainId", chainID, "url", url, "err", err)
		stationErr = err
	case r.fallbackUnknownChain:
		stationErr = fmt.Errorf("no gas station for chain %d", chainID)
		log.Debug("no gas station configured, using chain fee data", "chainId", chainID)
	default:
		return FeeEstimate{}, fmt.Errorf("%w: no gas station for chain %d", ErrUnsupportedChain, chainID)
	}

	fee, err := r.fromChain(ctx, chain)
	if err != nil {
		if ctx.Err() != nil {
			return FeeEstimate{}, ctx.Err()
		}
		return FeeEstimate{}, fmt.Errorf("%w: %w", ErrFeeUnavailable, errors.Join(stationErr, err))
	}
	return fee, nil
}

func (r *FeeResolver) fromGasStation(ctx context.Context, url string) (FeeEstimate, error) {
	suggestion, err := r.gasStation.Suggest(ctx, url)
	if err != nil {
		return FeeEstimate{}, err
	}
	if !suggestion.Fast.Complete() {
		return FeeEstimate{}, errors.New("missing fee data: fast.maxFee, fast.maxPriorityFee")
	}
	fee := FeeEstimate{
		MaxFeePerGas:         bigint.GweiToWei(*suggestion.Fast.MaxFee, r.multiplier),
		MaxPriorityFeePerGas: bigint.GweiToWei(*suggestion.Fast.MaxPriorityFee, r.multiplier),
		Source:               FeeSourceGasStation,
	}
	if err := fee.check(); err != nil {
		return FeeEstimate{}, err
	}
	return fee, nil
}

// fromChain follows the usual EIP-1559 client estimate: the node's suggested
// tip, and a fee cap of twice the latest base fee plus that tip.
func (r *FeeResolver) fromChain(ctx context.Context, chain FeeChain) (FeeEstimate, error) {
	if chain == nil {
		return FeeEstimate{}, errors.New("no chain client for fee data")
	}
	tip, err := chain.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("suggest gas tip cap: %w", err)
	}
	head, err := chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee == nil {
		return FeeEstimate{}, errors.New("missing fee data: chain has no base fee")
	}
	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)

	fee := FeeEstimate{
		MaxFeePerGas:         bigint.Scale(maxFee, r.multiplier),
		MaxPriorityFeePerGas: bigint.Scale(tip, r.multiplier),
		Source:               FeeSourceChain,
	}
	if err := fee.check(); err != nil {
		return FeeEstimate{}, err
	}
	return fee, nil
}

func (f FeeEstimate) check() error {
	if !bigint.IsPositive(f.MaxFeePerGas) || !bigint.IsPositive(f.MaxPriorityFeePerGas) {
		return fmt.Errorf("non-positive fee from %s: maxFee=%v maxPriorityFee=%v", f.Source, f.MaxFeePerGas, f.MaxPriorityFeePerGas)
	}
	return nil
}
