package flags

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dev-protocol/send-transactions/common"
)

const envVarPrefix = "SEND_TX"

func prefixEnvVars(name string) []string {
	return common.PrefixEnvVar(envVarPrefix, name)
}

var (
	// Chain
	RpcUrlFlag = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "JSON-RPC endpoint of the target chain",
		EnvVars: prefixEnvVars("RPC_URL"),
	}
	ChainIdFlag = &cli.Uint64Flag{
		Name:    "chain-id",
		Usage:   "Chain id of the target chain",
		Value:   137,
		EnvVars: prefixEnvVars("CHAIN_ID"),
	}

	// Fees
	FeeMultiplierFlag = &cli.StringFlag{
		Name:    "fee.multiplier",
		Usage:   "Multiplier applied to fee estimates and gas limits",
		Value:   "1.2",
		EnvVars: prefixEnvVars("FEE_MULTIPLIER"),
	}
	GasStationFlag = &cli.StringSliceFlag{
		Name:    "fee.gas-station",
		Usage:   "Fee estimation endpoint per chain as <chainId>=<url>; replaces the built-in list when set",
		EnvVars: prefixEnvVars("FEE_GAS_STATION"),
	}
	FeeFallbackUnknownChainFlag = &cli.BoolFlag{
		Name:    "fee.fallback-unknown-chain",
		Usage:   "Use the chain's own fee data for chains without a gas station instead of failing",
		EnvVars: prefixEnvVars("FEE_FALLBACK_UNKNOWN_CHAIN"),
	}
	FeeTimeoutFlag = &cli.DurationFlag{
		Name:    "fee.timeout",
		Usage:   "HTTP timeout for gas station requests",
		Value:   5 * time.Second,
		EnvVars: prefixEnvVars("FEE_TIMEOUT"),
	}

	// Idempotency
	CooldownFlag = &cli.DurationFlag{
		Name:    "idempotency.cooldown",
		Usage:   "Minimum time between two accepted submissions with the same dedup key",
		Value:   60 * time.Second,
		EnvVars: prefixEnvVars("IDEMPOTENCY_COOLDOWN"),
	}
	LockFlag = &cli.BoolFlag{
		Name:    "idempotency.lock",
		Usage:   "Hold a per-key store lock from the duplicate check until the record is written",
		Value:   true,
		EnvVars: prefixEnvVars("IDEMPOTENCY_LOCK"),
	}
	LockTTLFlag = &cli.DurationFlag{
		Name:    "idempotency.lock-ttl",
		Usage:   "Expiry of the per-key admission lock",
		Value:   2 * time.Minute,
		EnvVars: prefixEnvVars("IDEMPOTENCY_LOCK_TTL"),
	}

	// Retry
	RetryAttemptsFlag = &cli.IntFlag{
		Name:    "retry.attempts",
		Usage:   "Maximum broadcast attempts per request",
		Value:   5,
		EnvVars: prefixEnvVars("RETRY_ATTEMPTS"),
	}
	RetryIntervalFlag = &cli.DurationFlag{
		Name:    "retry.interval",
		Usage:   "Delay between broadcast attempts",
		Value:   350 * time.Millisecond,
		EnvVars: prefixEnvVars("RETRY_INTERVAL"),
	}

	// Store
	StoreBackendFlag = &cli.StringFlag{
		Name:    "store",
		Usage:   "Idempotency store backend: redis, postgres or memory",
		Value:   "redis",
		EnvVars: prefixEnvVars("STORE"),
	}
	RedisUrlFlag = &cli.StringFlag{
		Name:    "redis.url",
		Usage:   "Redis URL (redis://host:port/db) or host:port",
		Value:   "redis://127.0.0.1:6379/0",
		EnvVars: prefixEnvVars("REDIS_URL"),
	}
	RedisUsernameFlag = &cli.StringFlag{
		Name:    "redis.username",
		EnvVars: prefixEnvVars("REDIS_USERNAME"),
	}
	RedisPasswordFlag = &cli.StringFlag{
		Name:    "redis.password",
		EnvVars: prefixEnvVars("REDIS_PASSWORD"),
	}

	// MasterDb Flags
	MasterDbHostFlag = &cli.StringFlag{
		Name:    "master-db-host",
		Usage:   "The host of the master database",
		EnvVars: prefixEnvVars("MASTER_DB_HOST"),
	}
	MasterDbPortFlag = &cli.IntFlag{
		Name:    "master-db-port",
		Usage:   "The port of the master database",
		EnvVars: prefixEnvVars("MASTER_DB_PORT"),
	}
	MasterDbUserFlag = &cli.StringFlag{
		Name:    "master-db-user",
		Usage:   "The user of the master database",
		EnvVars: prefixEnvVars("MASTER_DB_USER"),
	}
	MasterDbPasswordFlag = &cli.StringFlag{
		Name:    "master-db-password",
		Usage:   "The password of the master database",
		EnvVars: prefixEnvVars("MASTER_DB_PASSWORD"),
	}
	MasterDbNameFlag = &cli.StringFlag{
		Name:    "master-db-name",
		Usage:   "The db name of the master database",
		EnvVars: prefixEnvVars("MASTER_DB_NAME"),
	}
	JournalFlag = &cli.BoolFlag{
		Name:    "journal",
		Usage:   "Write every send outcome to the submissions table of the master database",
		EnvVars: prefixEnvVars("JOURNAL"),
	}

	// Notify
	NotifyUrlFlag = &cli.StringFlag{
		Name:    "notify.url",
		Usage:   "Callback URL that receives every send outcome; empty disables it",
		EnvVars: prefixEnvVars("NOTIFY_URL"),
	}
	NotifyIntervalFlag = &cli.DurationFlag{
		Name:    "notify.interval",
		Usage:   "How often queued outcomes are posted to the callback URL",
		Value:   5 * time.Second,
		EnvVars: prefixEnvVars("NOTIFY_INTERVAL"),
	}
	NotifyTimeoutFlag = &cli.DurationFlag{
		Name:    "notify.timeout",
		Value:   10 * time.Second,
		EnvVars: prefixEnvVars("NOTIFY_TIMEOUT"),
	}

	// Signer
	PrivateKeyFlag = &cli.StringFlag{
		Name:    "signer.private-key",
		Usage:   "Hex encoded private key of the relaying account",
		EnvVars: prefixEnvVars("PRIVATE_KEY"),
	}
	MnemonicFlag = &cli.StringFlag{
		Name:    "signer.mnemonic",
		Usage:   "BIP-39 mnemonic of the relaying account",
		EnvVars: prefixEnvVars("MNEMONIC"),
	}
	HDPathFlag = &cli.StringFlag{
		Name:    "signer.hd-path",
		Usage:   "Derivation path used with the mnemonic",
		Value:   "m/44'/60'/0'/0/0",
		EnvVars: prefixEnvVars("HD_PATH"),
	}

	// Worker
	WorkerStreamFlag = &cli.StringFlag{
		Name:    "worker.stream",
		Usage:   "Redis stream the relay worker consumes intents from",
		Value:   "send-transactions:intents",
		EnvVars: prefixEnvVars("WORKER_STREAM"),
	}
	WorkerResultStreamFlag = &cli.StringFlag{
		Name:    "worker.result-stream",
		Usage:   "Redis stream the relay worker publishes outcomes to",
		Value:   "send-transactions:results",
		EnvVars: prefixEnvVars("WORKER_RESULT_STREAM"),
	}
	WorkerGroupFlag = &cli.StringFlag{
		Name:    "worker.group",
		Value:   "send-transactions",
		EnvVars: prefixEnvVars("WORKER_GROUP"),
	}
	WorkerConsumerFlag = &cli.StringFlag{
		Name:    "worker.consumer",
		Usage:   "Consumer name inside the group; defaults to the hostname",
		EnvVars: prefixEnvVars("WORKER_CONSUMER"),
	}
	WorkerConcurrencyFlag = &cli.IntFlag{
		Name:    "worker.concurrency",
		Usage:   "Number of intents processed in parallel",
		Value:   4,
		EnvVars: prefixEnvVars("WORKER_CONCURRENCY"),
	}

	// Metrics
	MetricsHostFlag = &cli.StringFlag{
		Name:    "metrics.host",
		Value:   "0.0.0.0",
		EnvVars: prefixEnvVars("METRICS_HOST"),
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:    "metrics.port",
		Usage:   "Prometheus listen port, 0 disables the endpoint",
		Value:   7300,
		EnvVars: prefixEnvVars("METRICS_PORT"),
	}

	// Log
	LogLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
	}
	LogFormatFlag = &cli.StringFlag{
		Name:    "log.format",
		Usage:   "terminal or json",
		Value:   "terminal",
		EnvVars: prefixEnvVars("LOG_FORMAT"),
	}
)

var requireFlags = []cli.Flag{
	RpcUrlFlag,
	ChainIdFlag,
}

var optionalFlags = []cli.Flag{
	FeeMultiplierFlag,
	GasStationFlag,
	FeeFallbackUnknownChainFlag,
	FeeTimeoutFlag,
	CooldownFlag,
	LockFlag,
	LockTTLFlag,
	RetryAttemptsFlag,
	RetryIntervalFlag,
	StoreBackendFlag,
	RedisUrlFlag,
	RedisUsernameFlag,
	RedisPasswordFlag,
	MasterDbHostFlag,
	MasterDbPortFlag,
	MasterDbUserFlag,
	MasterDbPasswordFlag,
	MasterDbNameFlag,
	JournalFlag,
	NotifyUrlFlag,
	NotifyIntervalFlag,
	NotifyTimeoutFlag,
	PrivateKeyFlag,
	MnemonicFlag,
	HDPathFlag,
	WorkerStreamFlag,
	WorkerResultStreamFlag,
	WorkerGroupFlag,
	WorkerConsumerFlag,
	WorkerConcurrencyFlag,
	MetricsHostFlag,
	MetricsPortFlag,
	LogLevelFlag,
	LogFormatFlag,
}

func init() {
	Flags = append(requireFlags, optionalFlags...)
}

var Flags []cli.Flag

// EnvVarPrefix is exported for env var validation at startup.
const EnvVarPrefix = envVarPrefix
