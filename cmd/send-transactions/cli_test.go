package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/dev-protocol/send-transactions/config"
)

const mintABI = `[{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"}],"outputs":[]}]`

func TestReadABI(t *testing.T) {
	inline, err := readABI(" " + mintABI)
	require.NoError(t, err)
	require.JSONEq(t, mintABI, string(inline))

	dir := t.TempDir()
	bare := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(bare, []byte(mintABI), 0o600))
	fromFile, err := readABI(bare)
	require.NoError(t, err)
	require.JSONEq(t, mintABI, string(fromFile))

	artifact := filepath.Join(dir, "Token.json")
	require.NoError(t, os.WriteFile(artifact, []byte(`{"contractName":"Token","abi":`+mintABI+`}`), 0o600))
	fromArtifact, err := readABI(artifact)
	require.NoError(t, err)
	require.JSONEq(t, mintABI, string(fromArtifact))

	_, err = readABI(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestVersionWithCommit(t *testing.T) {
	require.Equal(t, Version, versionWithCommit("", ""))
	require.Equal(t, Version+"-0123abcd-20241018", versionWithCommit("0123abcdef", "20241018"))
}

func TestSetupLogging(t *testing.T) {
	require.NoError(t, setupLogging(config.LogConfig{Level: "debug", Format: "json"}))
	require.NoError(t, setupLogging(config.LogConfig{Level: "INFO", Format: "terminal"}))
	require.Error(t, setupLogging(config.LogConfig{Level: "loud", Format: "terminal"}))
	require.Error(t, setupLogging(config.LogConfig{Level: "info", Format: "xml"}))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"trace": log.LevelTrace,
		"DEBUG": log.LevelDebug,
		"info":  log.LevelInfo,
		"warn":  log.LevelWarn,
		"error": log.LevelError,
		"crit":  log.LevelCrit,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := parseLevel("verbose")
	require.Error(t, err)
}

func TestSendRejectsInvalidRequest(t *testing.T) {
	app := NewCli("", "")
	err := app.RunContext(context.Background(), []string{"send-transactions", "send",
		"--rpc-url", "http://127.0.0.1:1",
		"--store", "memory",
		"--signer.private-key", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		"--to", "0x00000000000000000000000000000000000000cc",
		"--method", "mint",
	})
	require.ErrorContains(t, err, "without abi")

	err = app.RunContext(context.Background(), []string{"send-transactions", "send",
		"--rpc-url", "http://127.0.0.1:1",
		"--store", "memory",
		"--to", "0x00000000000000000000000000000000000000cc",
		"--data", "0xzz",
	})
	require.ErrorContains(t, err, "invalid --data")
}
