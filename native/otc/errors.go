package otc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFunds rejects an open call whose offered or asked amount is
	// missing or zero.
	ErrNoFunds = errors.New("otc: required amount missing or zero")
	// ErrClosed rejects mutating calls against a terminal agreement.
	ErrClosed = errors.New("otc: agreement already closed")
	// ErrOfferFail rejects a buy whose attached payment does not cover the
	// stored price.
	ErrOfferFail = errors.New("otc: attached payment below asking price")
	// ErrNotFound signals a lookup of an unknown agreement identifier.
	ErrNotFound = errors.New("otc: agreement not found")
	// ErrExists rejects opening the same agreement identifier twice.
	ErrExists = errors.New("otc: agreement identifier already exists")

	errNilState = errors.New("otc engine: state not configured")
)

// NotOwnerError rejects an owner-only action and carries the identity that
// would have been authorized so callers get actionable feedback.
type NotOwnerError struct {
	Owner [20]byte
}

func (e NotOwnerError) Error() string {
	return fmt.Sprintf("otc: unauthorized, only %x may perform this action", e.Owner)
}
