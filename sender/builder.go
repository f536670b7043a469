package sender

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dev-protocol/send-transactions/common/bigint"
)

type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

type Builder struct {
	multiplier decimal.Decimal
}

func NewBuilder(multiplier decimal.Decimal) *Builder {
	return &Builder{multiplier: multiplier}
}

// Build simulates the call from the sender's address and buffers the gas
// estimate with the fee multiplier. A failed simulation means the call would
// revert or the method does not exist.
func (b *Builder) Build(ctx context.Context, chain GasEstimator, from common.Address, intent Intent, fee FeeEstimate) (UnsignedTx, error) {
	data, err := intent.CallData()
	if err != nil {
		return UnsignedTx{}, err
	}
	to := intent.Contract
	gas, err := chain.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		if ctx.Err() != nil {
			return UnsignedTx{}, ctx.Err()
		}
		return UnsignedTx{}, fmt.Errorf("%w: estimate gas for %s: %w", ErrMethodNotCallable, to, err)
	}
	return UnsignedTx{
		To:       to,
		Data:     data,
		GasLimit: bigint.ScaleUint64(gas, b.multiplier),
		Fee:      fee,
	}, nil
}
