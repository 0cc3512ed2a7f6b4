package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"otcvault/crypto"
	"otcvault/native/fees"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	LogFile     string `toml:"LogFile"`
	NetworkName string `toml:"NetworkName"`

	// Commission splits a settled price between the recipients below.
	// Each recipient takes Numerator/CommissionDenominator of the price,
	// rounded down.
	CommissionDenominator uint64               `toml:"CommissionDenominator"`
	CommissionRecipients  []CommissionReceiver `toml:"CommissionRecipients"`
}

type CommissionReceiver struct {
	Address   string `toml:"Address"`
	Numerator uint64 `toml:"Numerator"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "otcvault-local"
	}
	if cfg.CommissionDenominator == 0 {
		cfg.CommissionDenominator = 100000
	}

	if _, err := cfg.CommissionPolicy(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// CommissionPolicy decodes the configured recipients into a validated fee
// policy.
func (c *Config) CommissionPolicy() (fees.Policy, error) {
	policy := fees.Policy{Denominator: c.CommissionDenominator}
	for _, recipient := range c.CommissionRecipients {
		addr, err := crypto.DecodeAddress(recipient.Address)
		if err != nil {
			return fees.Policy{}, fmt.Errorf("commission recipient %q: %w", recipient.Address, err)
		}
		policy.Recipients = append(policy.Recipients, fees.Recipient{
			Wallet:    addr.Bytes(),
			Numerator: recipient.Numerator,
		})
	}
	if err := policy.Validate(); err != nil {
		return fees.Policy{}, err
	}
	return policy, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:            ":8080",
		DataDir:               "./otcvault-data",
		GenesisFile:           "",
		LogFile:               "",
		NetworkName:           "otcvault-local",
		CommissionDenominator: 100000,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
