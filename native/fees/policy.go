package fees

import (
	"fmt"
	"math/big"
)

// Recipient pairs a commission wallet with the numerator of its rate. The
// effective rate is Numerator/Denominator of the amount being split.
type Recipient struct {
	Wallet    [20]byte
	Numerator uint64
}

// Policy captures the configured commission split. Recipients and rates are
// construction-time configuration, never runtime inputs.
type Policy struct {
	Denominator uint64
	Recipients  []Recipient
}

// Split is the deterministic outcome of applying a policy to an amount: one
// share per recipient plus the remainder that stays with the counterparty.
type Split struct {
	Shares    []*big.Int
	Remainder *big.Int
}

// Validate checks the policy is usable: a positive denominator and share
// rates that cannot consume the whole amount.
func (p Policy) Validate() error {
	if p.Denominator == 0 {
		return fmt.Errorf("fees: denominator must be positive")
	}
	var total uint64
	for i, r := range p.Recipients {
		if r.Numerator == 0 {
			return fmt.Errorf("fees: recipient %d has zero rate", i)
		}
		if r.Wallet == ([20]byte{}) {
			return fmt.Errorf("fees: recipient %d has empty wallet", i)
		}
		total += r.Numerator
	}
	if total >= p.Denominator {
		return fmt.Errorf("fees: combined rate %d/%d consumes the full amount", total, p.Denominator)
	}
	return nil
}

// Clone returns a deep copy so callers cannot alias the recipient slice.
func (p Policy) Clone() Policy {
	clone := Policy{Denominator: p.Denominator}
	if len(p.Recipients) > 0 {
		clone.Recipients = append([]Recipient(nil), p.Recipients...)
	}
	return clone
}

// Apply splits the amount into per-recipient shares and a remainder. Each
// share is computed independently with truncating integer division,
// share_i = amount * numerator_i / denominator, so results are reproducible
// bit-for-bit. Nil or non-positive amounts produce zero shares.
func (p Policy) Apply(amount *big.Int) Split {
	shares := make([]*big.Int, len(p.Recipients))
	remainder := big.NewInt(0)
	if amount != nil && amount.Sign() > 0 {
		remainder = new(big.Int).Set(amount)
	}
	den := new(big.Int).SetUint64(p.Denominator)
	for i, r := range p.Recipients {
		share := big.NewInt(0)
		if remainder.Sign() > 0 && p.Denominator > 0 {
			share = new(big.Int).Mul(amount, new(big.Int).SetUint64(r.Numerator))
			share.Div(share, den)
		}
		shares[i] = share
	}
	for _, share := range shares {
		remainder.Sub(remainder, share)
	}
	return Split{Shares: shares, Remainder: remainder}
}

// Total returns the sum of all shares in the split.
func (s Split) Total() *big.Int {
	total := big.NewInt(0)
	for _, share := range s.Shares {
		if share != nil {
			total.Add(total, share)
		}
	}
	return total
}
