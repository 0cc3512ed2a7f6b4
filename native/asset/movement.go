package asset

import (
	"fmt"
	"math/big"
)

// Movement is an instruction describing one asset transfer the host ledger
// must perform. Engines produce movements; they never execute them.
type Movement interface {
	movement()
	// Describe renders the directive for logs and event attributes.
	Describe() string
}

// DirectTransfer moves native ledger units between two accounts.
type DirectTransfer struct {
	From   [20]byte
	To     [20]byte
	Denom  string
	Amount *big.Int
}

func (DirectTransfer) movement() {}

// Describe implements Movement.
func (m DirectTransfer) Describe() string {
	return fmt.Sprintf("transfer %s %s %x->%x", m.Amount, m.Denom, m.From, m.To)
}

// DelegatedCall carries an encoded instruction for a managed token book. The
// origin is the identity the token book observes as the caller, which matters
// for allowance checks on transferFrom.
type DelegatedCall struct {
	Token    [20]byte
	Origin   [20]byte
	Calldata []byte
}

func (DelegatedCall) movement() {}

// Describe implements Movement.
func (m DelegatedCall) Describe() string {
	return fmt.Sprintf("call token %x origin %x data %x", m.Token, m.Origin, m.Calldata)
}
