package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"otcvault/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, uint64(100000), cfg.CommissionDenominator)
	require.FileExists(t, path)

	// Loading again reads the file written above.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, reloaded.RPCAddress)
	require.Equal(t, "otcvault-local", reloaded.NetworkName)
}

func TestCommissionPolicyDecoding(t *testing.T) {
	var wallet [20]byte
	wallet[19] = 0x01
	addr := crypto.NewAddress(crypto.Prefix, wallet).String()

	cfg := &Config{
		CommissionDenominator: 100000,
		CommissionRecipients: []CommissionReceiver{
			{Address: addr, Numerator: 8},
		},
	}
	policy, err := cfg.CommissionPolicy()
	require.NoError(t, err)
	require.Len(t, policy.Recipients, 1)
	require.Equal(t, wallet, policy.Recipients[0].Wallet)
	require.Equal(t, uint64(8), policy.Recipients[0].Numerator)
}

func TestCommissionPolicyRejectsBadRecipients(t *testing.T) {
	cfg := &Config{
		CommissionDenominator: 100000,
		CommissionRecipients: []CommissionReceiver{
			{Address: "not-bech32", Numerator: 8},
		},
	}
	_, err := cfg.CommissionPolicy()
	require.Error(t, err)
}

func TestLoadRejectsInvalidCommission(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "RPCAddress = \":8080\"\nCommissionDenominator = 100\n\n[[CommissionRecipients]]\nAddress = \"bogus\"\nNumerator = 8\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
