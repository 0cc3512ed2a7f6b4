package types

import "math/big"

// Account is the ledger record for a single address. Balances are keyed by
// denomination so the same account can hold any number of native units.
type Account struct {
	Nonce    uint64              `json:"nonce"`
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the balance held in the given denomination, never nil.
func (a *Account) Balance(denom string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	bal, ok := a.Balances[denom]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// SetBalance stores the balance for the denomination, dropping zero entries so
// serialized accounts stay compact.
func (a *Account) SetBalance(denom string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil || amount.Sign() == 0 {
		delete(a.Balances, denom)
		return
	}
	a.Balances[denom] = new(big.Int).Set(amount)
}

// Clone returns a deep copy so callers can mutate the result without touching
// the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balances: make(map[string]*big.Int, len(a.Balances))}
	for denom, bal := range a.Balances {
		if bal == nil {
			continue
		}
		clone.Balances[denom] = new(big.Int).Set(bal)
	}
	return clone
}
