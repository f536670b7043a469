package bigint

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestScale(t *testing.T) {
	m := decimal.RequireFromString("1.2")

	require.Equal(t, big.NewInt(120), Scale(big.NewInt(100), m))
	// 3 * 1.2 = 3.6 rounds up
	require.Equal(t, big.NewInt(4), Scale(big.NewInt(3), m))
	// 2 * 1.2 = 2.4 rounds down
	require.Equal(t, big.NewInt(2), Scale(big.NewInt(2), m))
	// 5 * 1.1 = 5.5 rounds half up
	require.Equal(t, big.NewInt(6), Scale(big.NewInt(5), decimal.RequireFromString("1.1")))
	require.Nil(t, Scale(nil, m))
}

func TestScaleUint64(t *testing.T) {
	m := decimal.RequireFromString("1.2")
	require.Equal(t, uint64(25200), ScaleUint64(21000, m))
	require.Equal(t, uint64(1), ScaleUint64(1, m))
}

func TestGweiToWei(t *testing.T) {
	one := decimal.NewFromInt(1)
	require.Equal(t, "30000000000", GweiToWei(30, one).String())
	require.Equal(t, "36000000000", GweiToWei(30, decimal.RequireFromString("1.2")).String())
	require.Equal(t, "1500000000", GweiToWei(1.5, one).String())
	// fractional gwei below one wei is rounded
	require.Equal(t, "1", GweiToWei(0.0000000006, one).String())
}

func TestIsPositive(t *testing.T) {
	require.False(t, IsPositive(nil))
	require.False(t, IsPositive(big.NewInt(0)))
	require.False(t, IsPositive(big.NewInt(-1)))
	require.True(t, IsPositive(big.NewInt(1)))
}
