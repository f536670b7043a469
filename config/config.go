package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/dev-protocol/send-transactions/flags"
)

// DefaultGasStations are the fee estimation services known out of the box.
var DefaultGasStations = map[uint64]string{
	137:   "https://gasstation.polygon.technology/v2",
	80001: "https://gasstation-testnet.polygon.technology/v2",
	80002: "https://gasstation.polygon.technology/amoy",
}

type Config struct {
	Chain       ChainConfig
	Fee         FeeConfig
	Idempotency IdempotencyConfig
	Retry       RetryConfig
	Store       StoreConfig
	Redis       RedisConfig
	MasterDB    DBConfig
	Journal     bool
	Notify      NotifyConfig
	Signer      SignerConfig
	Worker      WorkerConfig
	Metrics     ServerConfig
	Log         LogConfig
}

type ChainConfig struct {
	RpcUrl  string
	ChainId uint64
}

type FeeConfig struct {
	Multiplier           decimal.Decimal
	GasStations          map[uint64]string
	FallbackUnknownChain bool
	Timeout              time.Duration
}

type IdempotencyConfig struct {
	Cooldown time.Duration
	Lock     bool
	LockTTL  time.Duration
}

type RetryConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

type StoreConfig struct {
	Backend string
}

type RedisConfig struct {
	Url      string
	Username string
	Password string
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

type NotifyConfig struct {
	Url      string
	Interval time.Duration
	Timeout  time.Duration
}

type SignerConfig struct {
	PrivateKey string
	Mnemonic   string
	HDPath     string
}

type WorkerConfig struct {
	Stream       string
	ResultStream string
	Group        string
	Consumer     string
	Concurrency  int
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

func LoadConfig(cliCtx *cli.Context) (Config, error) {
	multiplier, err := decimal.NewFromString(cliCtx.String(flags.FeeMultiplierFlag.Name))
	if err != nil {
		return Config{}, fmt.Errorf("invalid fee multiplier: %w", err)
	}

	gasStations := DefaultGasStations
	if entries := cliCtx.StringSlice(flags.GasStationFlag.Name); len(entries) > 0 {
		gasStations, err = ParseGasStations(entries)
		if err != nil {
			return Config{}, err
		}
	}

	consumer := cliCtx.String(flags.WorkerConsumerFlag.Name)
	if consumer == "" {
		consumer, _ = os.Hostname()
	}

	cfg := Config{
		Chain: ChainConfig{
			RpcUrl:  cliCtx.String(flags.RpcUrlFlag.Name),
			ChainId: cliCtx.Uint64(flags.ChainIdFlag.Name),
		},
		Fee: FeeConfig{
			Multiplier:           multiplier,
			GasStations:          gasStations,
			FallbackUnknownChain: cliCtx.Bool(flags.FeeFallbackUnknownChainFlag.Name),
			Timeout:              cliCtx.Duration(flags.FeeTimeoutFlag.Name),
		},
		Idempotency: IdempotencyConfig{
			Cooldown: cliCtx.Duration(flags.CooldownFlag.Name),
			Lock:     cliCtx.Bool(flags.LockFlag.Name),
			LockTTL:  cliCtx.Duration(flags.LockTTLFlag.Name),
		},
		Retry: RetryConfig{
			MaxAttempts: cliCtx.Int(flags.RetryAttemptsFlag.Name),
			Interval:    cliCtx.Duration(flags.RetryIntervalFlag.Name),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(cliCtx.String(flags.StoreBackendFlag.Name)),
		},
		Redis: RedisConfig{
			Url:      cliCtx.String(flags.RedisUrlFlag.Name),
			Username: cliCtx.String(flags.RedisUsernameFlag.Name),
			Password: cliCtx.String(flags.RedisPasswordFlag.Name),
		},
		MasterDB: DBConfig{
			Host:     cliCtx.String(flags.MasterDbHostFlag.Name),
			Port:     cliCtx.Int(flags.MasterDbPortFlag.Name),
			Name:     cliCtx.String(flags.MasterDbNameFlag.Name),
			User:     cliCtx.String(flags.MasterDbUserFlag.Name),
			Password: cliCtx.String(flags.MasterDbPasswordFlag.Name),
		},
		Journal: cliCtx.Bool(flags.JournalFlag.Name),
		Notify: NotifyConfig{
			Url:      cliCtx.String(flags.NotifyUrlFlag.Name),
			Interval: cliCtx.Duration(flags.NotifyIntervalFlag.Name),
			Timeout:  cliCtx.Duration(flags.NotifyTimeoutFlag.Name),
		},
		Signer: SignerConfig{
			PrivateKey: cliCtx.String(flags.PrivateKeyFlag.Name),
			Mnemonic:   cliCtx.String(flags.MnemonicFlag.Name),
			HDPath:     cliCtx.String(flags.HDPathFlag.Name),
		},
		Worker: WorkerConfig{
			Stream:       cliCtx.String(flags.WorkerStreamFlag.Name),
			ResultStream: cliCtx.String(flags.WorkerResultStreamFlag.Name),
			Group:        cliCtx.String(flags.WorkerGroupFlag.Name),
			Consumer:     consumer,
			Concurrency:  cliCtx.Int(flags.WorkerConcurrencyFlag.Name),
		},
		Metrics: ServerConfig{
			Host: cliCtx.String(flags.MetricsHostFlag.Name),
			Port: cliCtx.Int(flags.MetricsPortFlag.Name),
		},
		Log: LogConfig{
			Level:  cliCtx.String(flags.LogLevelFlag.Name),
			Format: cliCtx.String(flags.LogFormatFlag.Name),
		},
	}
	return cfg, cfg.Check()
}

// Check validates values that flags alone cannot express.
func (c Config) Check() error {
	if !c.Fee.Multiplier.IsPositive() {
		return fmt.Errorf("fee multiplier must be positive, got %s", c.Fee.Multiplier)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Interval < 0 {
		return fmt.Errorf("retry interval cannot be negative")
	}
	if c.Idempotency.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative")
	}
	switch c.Store.Backend {
	case StoreRedis, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Journal && c.MasterDB.Host == "" {
		return fmt.Errorf("journal requires a master database")
	}
	return nil
}

// ParseGasStations reads <chainId>=<url> entries.
func ParseGasStations(entries []string) (map[uint64]string, error) {
	out := make(map[uint64]string, len(entries))
	for _, entry := range entries {
		id, url, ok := strings.Cut(entry, "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("invalid gas station entry %q, want <chainId>=<url>", entry)
		}
		chainId, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in gas station entry %q: %w", entry, err)
		}
		out[chainId] = strings.TrimSpace(url)
	}
	return out, nil
}
