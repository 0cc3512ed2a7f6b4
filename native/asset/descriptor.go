package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrNotOneAsset signals that an asset selector did not choose exactly one
	// of a native denomination or a managed token book.
	ErrNotOneAsset = errors.New("asset: exactly one of denom or token must be set")
	// ErrInvalidAmount signals a nil, zero or negative amount where a positive
	// value is required.
	ErrInvalidAmount = errors.New("asset: amount must be positive")
)

// Kind distinguishes directly-transferable ledger units from managed token
// books reached through delegated calls.
type Kind uint8

const (
	Native Kind = iota + 1
	Managed
)

// String returns a label for the asset kind.
func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Managed:
		return "managed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Descriptor is a tagged amount of one asset: either `Amount` units of the
// native denomination `Denom`, or `Amount` units held by the managed token
// book at `Token`. Engines hold descriptors and ask them for movement
// directives instead of branching on the kind themselves.
type Descriptor struct {
	Kind   Kind
	Denom  string
	Token  [20]byte
	Amount *big.Int
}

// NativeAsset describes an amount of a ledger-native denomination.
func NativeAsset(denom string, amount *big.Int) (Descriptor, error) {
	trimmed := strings.TrimSpace(denom)
	if trimmed == "" {
		return Descriptor{}, ErrNotOneAsset
	}
	if amount == nil || amount.Sign() <= 0 {
		return Descriptor{}, ErrInvalidAmount
	}
	return Descriptor{Kind: Native, Denom: trimmed, Amount: new(big.Int).Set(amount)}, nil
}

// ManagedAsset describes an amount of a managed token identified by the token
// book address.
func ManagedAsset(token [20]byte, amount *big.Int) (Descriptor, error) {
	if token == ([20]byte{}) {
		return Descriptor{}, ErrNotOneAsset
	}
	if amount == nil || amount.Sign() <= 0 {
		return Descriptor{}, ErrInvalidAmount
	}
	return Descriptor{Kind: Managed, Token: token, Amount: new(big.Int).Set(amount)}, nil
}

// Describe resolves the one-of selector used at the API boundary. Exactly one
// of denom and token must be supplied; both or neither fails with
// ErrNotOneAsset before any business logic runs.
func Describe(denom string, token *[20]byte, amount *big.Int) (Descriptor, error) {
	hasDenom := strings.TrimSpace(denom) != ""
	hasToken := token != nil && *token != ([20]byte{})
	switch {
	case hasDenom && hasToken:
		return Descriptor{}, ErrNotOneAsset
	case hasDenom:
		return NativeAsset(denom, amount)
	case hasToken:
		return ManagedAsset(*token, amount)
	default:
		return Descriptor{}, ErrNotOneAsset
	}
}

// Valid reports whether the descriptor carries a positive amount and a
// well-formed identifier for its kind.
func (d Descriptor) Valid() bool {
	if d.Amount == nil || d.Amount.Sign() <= 0 {
		return false
	}
	switch d.Kind {
	case Native:
		return strings.TrimSpace(d.Denom) != ""
	case Managed:
		return d.Token != ([20]byte{})
	default:
		return false
	}
}

// Identifier returns the denomination for native assets and the hex token
// address for managed ones, used for event attributes and status responses.
func (d Descriptor) Identifier() string {
	if d.Kind == Managed {
		return fmt.Sprintf("%x", d.Token)
	}
	return d.Denom
}

// WithAmount returns a copy of the descriptor holding a different amount.
// Used when a stored amount is split into commission shares.
func (d Descriptor) WithAmount(amount *big.Int) Descriptor {
	clone := d
	if amount != nil {
		clone.Amount = new(big.Int).Set(amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return clone
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	return d.WithAmount(d.Amount)
}

// Transfer produces the directive moving this asset out of the origin's own
// holdings to the recipient: a direct ledger transfer for native assets, a
// delegated `transfer` call against the token book for managed ones.
func (d Descriptor) Transfer(origin, to [20]byte) Movement {
	if d.Kind == Managed {
		return DelegatedCall{Token: d.Token, Origin: origin, Calldata: EncodeTransfer(to, d.Amount)}
	}
	return DirectTransfer{From: origin, To: to, Denom: d.Denom, Amount: cloneAmount(d.Amount)}
}

// TransferFrom produces the directive pulling this asset from the owner's
// holdings to the recipient on behalf of origin. Managed assets require the
// owner to have granted the origin an allowance on the token book.
func (d Descriptor) TransferFrom(origin, owner, to [20]byte) Movement {
	if d.Kind == Managed {
		return DelegatedCall{Token: d.Token, Origin: origin, Calldata: EncodeTransferFrom(owner, to, d.Amount)}
	}
	return DirectTransfer{From: owner, To: to, Denom: d.Denom, Amount: cloneAmount(d.Amount)}
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Coin is a denominated amount attached to a call by the host. Attached funds
// are untrusted input and validated by the engines.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// FindCoin returns the attached amount in the requested denomination, or zero
// when no such coin was attached.
func FindCoin(attached []Coin, denom string) *big.Int {
	for _, c := range attached {
		if c.Denom == denom && c.Amount != nil {
			return new(big.Int).Set(c.Amount)
		}
	}
	return big.NewInt(0)
}
