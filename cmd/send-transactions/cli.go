package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	sendtransactions "github.com/dev-protocol/send-transactions"
	"github.com/dev-protocol/send-transactions/common"
	"github.com/dev-protocol/send-transactions/common/cliapp"
	"github.com/dev-protocol/send-transactions/common/opio"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/database"
	flags2 "github.com/dev-protocol/send-transactions/flags"
	"github.com/dev-protocol/send-transactions/rpcclient"
	"github.com/dev-protocol/send-transactions/sender"
	"github.com/dev-protocol/send-transactions/worker"
)

const Version = "0.1.0"

var (
	ToFlag = &cli.StringFlag{
		Name:     "to",
		Usage:    "Contract address to call",
		Required: true,
	}
	AbiFlag = &cli.StringFlag{
		Name:  "abi",
		Usage: "Contract ABI as inline JSON or a path to a JSON file",
	}
	MethodFlag = &cli.StringFlag{
		Name:  "method",
		Usage: "Method name to call",
	}
	ArgsFlag = &cli.StringFlag{
		Name:  "args",
		Usage: "Method arguments as a JSON array",
		Value: "[]",
	}
	DataFlag = &cli.StringFlag{
		Name:  "data",
		Usage: "Pre-encoded call data (hex), used instead of --abi/--method/--args",
	}
	RequestIdFlag = &cli.StringFlag{
		Name:  "request-id",
		Usage: "Caller-supplied id that separates otherwise identical calls",
	}
	WaitFlag = &cli.BoolFlag{
		Name:  "wait",
		Usage: "Wait until the transaction is mined",
	}
	MigrationsDirFlag = &cli.StringFlag{
		Name:  "migrations-dir",
		Usage: "Directory of SQL migrations; empty uses the model definitions",
		Value: "./migrations",
	}
)

func NewCli(GitCommit string, GitDate string) *cli.App {
	flags := flags2.Flags
	return &cli.App{
		Version:              versionWithCommit(GitCommit, GitDate),
		Description:          "Relay contract calls to EVM chains at most once per cooldown window",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:        "send",
				Flags:       append(append([]cli.Flag{}, flags...), ToFlag, AbiFlag, MethodFlag, ArgsFlag, DataFlag, RequestIdFlag, WaitFlag),
				Description: "Send one contract call",
				Action:      runSend,
			},
			{
				Name:        "fee",
				Flags:       flags,
				Description: "Print the fee the next send would use",
				Action:      runFee,
			},
			{
				Name:        "relay",
				Flags:       flags,
				Description: "Run the stream relay worker",
				Action:      cliapp.LifecycleCmd(runRelay),
			},
			{
				Name:        "migrate",
				Flags:       append(append([]cli.Flag{}, flags...), MigrationsDirFlag),
				Description: "Create the relay tables in the master database",
				Action:      runMigrations,
			},
		},
	}
}

func versionWithCommit(gitCommit, gitDate string) string {
	v := Version
	if len(gitCommit) >= 8 {
		v += "-" + gitCommit[:8]
	}
	if gitDate != "" {
		v += "-" + gitDate
	}
	return v
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	common.ValidateEnvVars(flags2.EnvVarPrefix, flags2.Flags, log.Root())
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Error("failed to load config", "err", err)
		return cfg, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}
	var logger log.Logger
	switch cfg.Format {
	case "json":
		logger = log.NewLogger(log.JSONHandlerWithLevel(os.Stderr, level))
	case "terminal", "":
		logger = log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, isTerminal(os.Stderr)))
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	log.SetDefault(logger)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info", "":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit", "critical":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func runSend(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	req, err := requestFromFlags(ctx)
	if err != nil {
		return err
	}
	intent, opts, err := req.Intent(cfg.Chain)
	if err != nil {
		return err
	}

	runCtx := opio.CancelOnInterrupt(ctx.Context)
	stack, err := sendtransactions.NewStack(runCtx, &cfg, sendtransactions.StackOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.Warn("failed to close connections", "err", err)
		}
	}()

	tx, err := stack.Engine.Send(runCtx, intent, opts)
	var recErr *sender.RecordingError
	switch {
	case errors.As(err, &recErr):
		log.Warn("transaction sent but not recorded", "hash", tx.Hash(), "err", recErr.Err)
	case err != nil:
		return err
	}
	log.Info("transaction sent", "hash", tx.Hash(), "nonce", tx.Nonce(), "to", intent.Contract, "chain", intent.ChainID)
	fmt.Println(tx.Hash().Hex())

	if ctx.Bool(WaitFlag.Name) {
		receipt, err := stack.Engine.Wait(runCtx, intent.RPCURL, tx)
		if err != nil {
			return fmt.Errorf("wait for receipt: %w", err)
		}
		log.Info("transaction mined", "hash", tx.Hash(), "block", receipt.BlockNumber, "status", receipt.Status, "gasUsed", receipt.GasUsed)
	}
	return err
}

// requestFromFlags builds the same request document the relay worker reads
// from its stream.
func requestFromFlags(ctx *cli.Context) (*worker.Request, error) {
	req := &worker.Request{
		To:        ctx.String(ToFlag.Name),
		Method:    ctx.String(MethodFlag.Name),
		RequestID: ctx.String(RequestIdFlag.Name),
	}
	if raw := ctx.String(DataFlag.Name); raw != "" {
		data, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
		req.Data = data
		return req, nil
	}
	if raw := ctx.String(AbiFlag.Name); raw != "" {
		abiJSON, err := readABI(raw)
		if err != nil {
			return nil, err
		}
		req.ABI = abiJSON
	}
	args := json.RawMessage(ctx.String(ArgsFlag.Name))
	if !json.Valid(args) {
		return nil, fmt.Errorf("--args is not valid JSON")
	}
	req.Args = args
	return req, nil
}

func readABI(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}
	content, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read abi file: %w", err)
	}
	// Accept hardhat/foundry artifacts as well as bare ABI arrays.
	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(content, &artifact); err == nil && len(artifact.ABI) > 0 {
		return artifact.ABI, nil
	}
	return content, nil
}

func runFee(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	runCtx := opio.CancelOnInterrupt(ctx.Context)
	chain, err := rpcclient.Dial(runCtx, cfg.Chain.RpcUrl)
	if err != nil {
		return err
	}
	defer chain.Close()

	fee, err := sender.NewFeeResolver(cfg.Fee, nil).Resolve(runCtx, cfg.Chain.ChainId, chain)
	if err != nil {
		return err
	}
	maxFee := decimal.NewFromBigInt(fee.MaxFeePerGas, -9)
	tip := decimal.NewFromBigInt(fee.MaxPriorityFeePerGas, -9)
	log.Info("resolved fee", "chain", cfg.Chain.ChainId, "source", fee.Source, "maxFeePerGas", fee.MaxFeePerGas, "maxPriorityFeePerGas", fee.MaxPriorityFeePerGas)
	fmt.Printf("source=%s maxFeePerGas=%s gwei maxPriorityFeePerGas=%s gwei\n", fee.Source, maxFee.String(), tip.String())
	return nil
}

func runRelay(ctx *cli.Context, shutdown context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	log.Info("starting relay")
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sendtransactions.NewRelayService(ctx.Context, &cfg, shutdown)
}

func runMigrations(ctx *cli.Context) error {
	ctx.Context = opio.CancelOnInterrupt(ctx.Context)
	log.Info("running migrations...")
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := database.NewDB(ctx.Context, cfg.MasterDB)
	if err != nil {
		log.Error("failed to connect to database", "err", err)
		return err
	}
	defer func(db *database.DB) {
		if err := db.Close(); err != nil {
			log.Error("fail to close database", "err", err)
		}
	}(db)

	if dir := ctx.String(MigrationsDirFlag.Name); dir != "" {
		return db.ExecuteSQLMigration(dir)
	}
	return db.AutoMigrate()
}
