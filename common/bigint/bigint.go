package bigint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var weiPerGwei = decimal.New(1, 9)

// Scale multiplies x by multiplier and rounds half away from zero to an
// integer. Ledger amounts have no fractional base units.
func Scale(x *big.Int, multiplier decimal.Decimal) *big.Int {
	if x == nil {
		return nil
	}
	return decimal.NewFromBigInt(x, 0).Mul(multiplier).Round(0).BigInt()
}

// ScaleUint64 is Scale for gas limits.
func ScaleUint64(x uint64, multiplier decimal.Decimal) uint64 {
	return Scale(new(big.Int).SetUint64(x), multiplier).Uint64()
}

// GweiToWei converts a gwei amount that may carry a fractional part to wei,
// applying multiplier before rounding.
func GweiToWei(gwei float64, multiplier decimal.Decimal) *big.Int {
	return decimal.NewFromFloat(gwei).Mul(weiPerGwei).Mul(multiplier).Round(0).BigInt()
}

// IsPositive reports whether x is non-nil and strictly greater than zero.
func IsPositive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}
