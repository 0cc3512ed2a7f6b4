package genesis

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"otcvault/crypto"
)

// Allocation seeds the ledger on first start: native balances per account
// and managed token book balances per holder.
type Allocation struct {
	Accounts []AccountAlloc `yaml:"accounts"`
	Tokens   []TokenAlloc   `yaml:"tokens"`
}

// AccountAlloc credits native denominations to one bech32 address.
type AccountAlloc struct {
	Address  string            `yaml:"address"`
	Balances map[string]string `yaml:"balances"`
}

// TokenAlloc credits holders of one managed token book, identified by its
// 40-hex-character address.
type TokenAlloc struct {
	Token   string            `yaml:"token"`
	Holders map[string]string `yaml:"holders"`
}

// Load reads an allocation file. A missing path yields an empty allocation
// so fresh nodes can start without one.
func Load(path string) (*Allocation, error) {
	if path == "" {
		return &Allocation{}, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Allocation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	alloc := &Allocation{}
	if err := yaml.Unmarshal(raw, alloc); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	return alloc, nil
}

// Seeder receives the decoded allocation entries.
type Seeder interface {
	SeedAccount(addr [20]byte, denom string, amount *big.Int) error
	SeedToken(token, holder [20]byte, amount *big.Int) error
}

// Apply decodes and forwards every allocation entry to the seeder.
func (a *Allocation) Apply(seeder Seeder) error {
	if a == nil {
		return nil
	}
	for _, acct := range a.Accounts {
		addr, err := crypto.DecodeAddress(acct.Address)
		if err != nil {
			return fmt.Errorf("genesis: account %q: %w", acct.Address, err)
		}
		for denom, raw := range acct.Balances {
			amount, err := parseAmount(raw)
			if err != nil {
				return fmt.Errorf("genesis: account %q balance %s: %w", acct.Address, denom, err)
			}
			if err := seeder.SeedAccount(addr.Bytes(), denom, amount); err != nil {
				return err
			}
		}
	}
	for _, tok := range a.Tokens {
		token, err := parseTokenAddress(tok.Token)
		if err != nil {
			return fmt.Errorf("genesis: token %q: %w", tok.Token, err)
		}
		for holderStr, raw := range tok.Holders {
			holder, err := crypto.DecodeAddress(holderStr)
			if err != nil {
				return fmt.Errorf("genesis: token holder %q: %w", holderStr, err)
			}
			amount, err := parseAmount(raw)
			if err != nil {
				return fmt.Errorf("genesis: token %q holder %q: %w", tok.Token, holderStr, err)
			}
			if err := seeder.SeedToken(token, holder.Bytes(), amount); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be a positive decimal, got %q", raw)
	}
	return amount, nil
}

func parseTokenAddress(raw string) ([20]byte, error) {
	var token [20]byte
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return token, err
	}
	if len(decoded) != 20 {
		return token, fmt.Errorf("token address must be 20 bytes, got %d", len(decoded))
	}
	copy(token[:], decoded)
	return token, nil
}
