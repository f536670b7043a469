package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateEnvVars(t *testing.T) {
	provided := []string{"SEND_TX_RPC_URL=http://x", "SEND_TX_TYPO=1", "PATH=/bin"}
	defined := map[string]struct{}{"SEND_TX_RPC_URL": {}}

	invalid := validateEnvVars("SEND_TX", provided, defined)
	require.Equal(t, []string{"SEND_TX_TYPO=1"}, invalid)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619")
	require.NoError(t, err)
	require.True(t, strings.EqualFold("0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", addr.Hex()))

	_, err = ParseAddress("not-an-address")
	require.Error(t, err)
}
