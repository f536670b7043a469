package config

import (
	"flag"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/dev-protocol/send-transactions/flags"
)

func newCliContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(&cli.App{Flags: flags.Flags}, set, nil)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(newCliContext(t))
	require.NoError(t, err)

	require.True(t, cfg.Fee.Multiplier.Equal(decimal.RequireFromString("1.2")))
	require.Equal(t, DefaultGasStations, cfg.Fee.GasStations)
	require.Equal(t, 60*time.Second, cfg.Idempotency.Cooldown)
	require.True(t, cfg.Idempotency.Lock)
	require.Equal(t, 5, cfg.Retry.MaxAttempts)
	require.Equal(t, 350*time.Millisecond, cfg.Retry.Interval)
	require.Equal(t, StoreRedis, cfg.Store.Backend)
	require.Equal(t, uint64(137), cfg.Chain.ChainId)
	require.Empty(t, cfg.Notify.Url)
	require.Equal(t, 5*time.Second, cfg.Notify.Interval)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(newCliContext(t,
		"--fee.multiplier", "1.5",
		"--fee.gas-station", "1=https://fees.example/v2",
		"--retry.attempts", "3",
		"--store", "Memory",
	))
	require.NoError(t, err)
	require.True(t, cfg.Fee.Multiplier.Equal(decimal.RequireFromString("1.5")))
	require.Equal(t, map[uint64]string{1: "https://fees.example/v2"}, cfg.Fee.GasStations)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, StoreMemory, cfg.Store.Backend)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	_, err := LoadConfig(newCliContext(t, "--fee.multiplier", "abc"))
	require.Error(t, err)

	_, err = LoadConfig(newCliContext(t, "--retry.attempts", "0"))
	require.Error(t, err)

	_, err = LoadConfig(newCliContext(t, "--store", "etcd"))
	require.Error(t, err)

	_, err = LoadConfig(newCliContext(t, "--journal"))
	require.Error(t, err)
}

func TestParseGasStations(t *testing.T) {
	got, err := ParseGasStations([]string{"137=https://a", " 80002 = https://b "})
	require.NoError(t, err)
	require.Equal(t, map[uint64]string{137: "https://a", 80002: "https://b"}, got)

	_, err = ParseGasStations([]string{"137"})
	require.Error(t, err)
	_, err = ParseGasStations([]string{"polygon=https://a"})
	require.Error(t, err)
}
