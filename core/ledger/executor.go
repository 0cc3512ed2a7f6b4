package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"otcvault/core/types"
	"otcvault/native/asset"
	"otcvault/native/token"
)

// ErrInsufficientFunds rejects a direct transfer exceeding the sender's
// balance.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

type accountState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Executor applies movement directives to the ledger: direct transfers move
// native balances between accounts, delegated calls are routed to the
// managed token registry. It runs against staged state, so the host can
// discard everything when any single movement fails.
type Executor struct {
	accounts accountState
	tokens   *token.Registry
}

// NewExecutor creates an executor over the supplied account state and token
// registry.
func NewExecutor(accounts accountState, tokens *token.Registry) *Executor {
	return &Executor{accounts: accounts, tokens: tokens}
}

// Apply executes the movements in order. The first failure aborts; callers
// are expected to discard the staged state in that case.
func (x *Executor) Apply(movements []asset.Movement) error {
	for _, movement := range movements {
		switch m := movement.(type) {
		case asset.DirectTransfer:
			if err := x.transfer(m); err != nil {
				return fmt.Errorf("ledger: %s: %w", m.Describe(), err)
			}
		case asset.DelegatedCall:
			if err := x.tokens.Execute(m); err != nil {
				return fmt.Errorf("ledger: %s: %w", m.Describe(), err)
			}
		default:
			return fmt.Errorf("ledger: unsupported movement %T", movement)
		}
	}
	return nil
}

// Credit mints native units into an account. Used for genesis allocations
// and test fixtures only; regular operation conserves balances.
func (x *Executor) Credit(addr [20]byte, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("ledger: credit amount must be positive")
	}
	account, err := x.accounts.GetAccount(addr)
	if err != nil {
		return err
	}
	account.SetBalance(denom, new(big.Int).Add(account.Balance(denom), amount))
	return x.accounts.PutAccount(addr, account)
}

// BalanceOf reports an account's native balance in the given denomination.
func (x *Executor) BalanceOf(addr [20]byte, denom string) (*big.Int, error) {
	account, err := x.accounts.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance(denom), nil
}

func (x *Executor) transfer(m asset.DirectTransfer) error {
	if m.Amount == nil || m.Amount.Sign() < 0 {
		return fmt.Errorf("ledger: negative transfer amount")
	}
	if m.Amount.Sign() == 0 || m.From == m.To {
		return nil
	}
	from, err := x.accounts.GetAccount(m.From)
	if err != nil {
		return err
	}
	balance := from.Balance(m.Denom)
	if balance.Cmp(m.Amount) < 0 {
		return ErrInsufficientFunds
	}
	to, err := x.accounts.GetAccount(m.To)
	if err != nil {
		return err
	}
	from.SetBalance(m.Denom, balance.Sub(balance, m.Amount))
	to.SetBalance(m.Denom, new(big.Int).Add(to.Balance(m.Denom), m.Amount))
	if err := x.accounts.PutAccount(m.From, from); err != nil {
		return err
	}
	return x.accounts.PutAccount(m.To, to)
}
