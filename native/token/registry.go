package token

import (
	"errors"
	"fmt"
	"math/big"

	"otcvault/native/asset"
)

var (
	// ErrInsufficientBalance rejects a transfer exceeding the holder's book
	// balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance rejects a transferFrom exceeding the allowance
	// granted to the call origin.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	errNilState = errors.New("token registry: state not configured")
)

// State is the persistence the registry needs: per-token balance and
// allowance books.
type State interface {
	TokenBalanceGet(token, holder [20]byte) (*big.Int, error)
	TokenBalancePut(token, holder [20]byte, amount *big.Int) error
	TokenAllowanceGet(token, owner, spender [20]byte) (*big.Int, error)
	TokenAllowancePut(token, owner, spender [20]byte, amount *big.Int) error
}

// Registry executes delegated calls against managed token books. It plays
// the role of the external token contract: the engines only encode
// instructions, the registry decodes and applies them.
type Registry struct {
	state State
}

// NewRegistry creates a registry bound to the supplied state backend.
func NewRegistry(state State) *Registry {
	return &Registry{state: state}
}

// Execute decodes and applies a delegated call. transferFrom spends the
// allowance the funds owner granted to the call origin; transfer spends the
// origin's own balance.
func (r *Registry) Execute(call asset.DelegatedCall) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	instr, err := asset.DecodeCalldata(call.Calldata)
	if err != nil {
		return err
	}
	if instr.Amount == nil || instr.Amount.Sign() < 0 {
		return fmt.Errorf("token: invalid instruction amount")
	}
	if instr.Amount.Sign() == 0 {
		return nil
	}
	switch instr.Op {
	case asset.OpTransfer:
		return r.move(call.Token, call.Origin, instr.To, instr.Amount)
	case asset.OpTransferFrom:
		if instr.From != call.Origin {
			if err := r.spendAllowance(call.Token, instr.From, call.Origin, instr.Amount); err != nil {
				return err
			}
		}
		return r.move(call.Token, instr.From, instr.To, instr.Amount)
	default:
		return fmt.Errorf("token: unsupported instruction %d", instr.Op)
	}
}

// Mint credits a holder's book balance. Used for genesis allocations and
// tests; managed supply policy is the token issuer's concern, not ours.
func (r *Registry) Mint(token, to [20]byte, amount *big.Int) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: mint amount must be positive")
	}
	balance, err := r.state.TokenBalanceGet(token, to)
	if err != nil {
		return err
	}
	return r.state.TokenBalancePut(token, to, new(big.Int).Add(balance, amount))
}

// Approve sets the allowance the owner grants the spender.
func (r *Registry) Approve(token, owner, spender [20]byte, amount *big.Int) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: allowance must be non-negative")
	}
	return r.state.TokenAllowancePut(token, owner, spender, amount)
}

// BalanceOf reports a holder's book balance.
func (r *Registry) BalanceOf(token, holder [20]byte) (*big.Int, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.state.TokenBalanceGet(token, holder)
}

// Allowance reports the unspent allowance from owner to spender.
func (r *Registry) Allowance(token, owner, spender [20]byte) (*big.Int, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.state.TokenAllowanceGet(token, owner, spender)
}

func (r *Registry) move(token, from, to [20]byte, amount *big.Int) error {
	fromBal, err := r.state.TokenBalanceGet(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := r.state.TokenBalanceGet(token, to)
	if err != nil {
		return err
	}
	if err := r.state.TokenBalancePut(token, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return r.state.TokenBalancePut(token, to, new(big.Int).Add(toBal, amount))
}

func (r *Registry) spendAllowance(token, owner, spender [20]byte, amount *big.Int) error {
	allowance, err := r.state.TokenAllowanceGet(token, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	return r.state.TokenAllowancePut(token, owner, spender, new(big.Int).Sub(allowance, amount))
}
