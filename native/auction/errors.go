package auction

import (
	"errors"
	"fmt"
)

var (
	// ErrBidEmpty rejects a bid carrying no funds in the auction
	// denomination.
	ErrBidEmpty = errors.New("auction: bid carried no funds in the auction denomination")
	// ErrBidTooLow rejects a bid whose cumulative net total stays below the
	// current high mark.
	ErrBidTooLow = errors.New("auction: cumulative bid below the current highest bid")
	// ErrNoBids rejects a close without any bid, or a retraction without a
	// ledger entry.
	ErrNoBids = errors.New("auction: no eligible bid or ledger entry")
	// ErrClosed rejects mutating calls against a closed auction.
	ErrClosed = errors.New("auction: already closed")
	// ErrNotClosed rejects retraction before the auction has closed.
	ErrNotClosed = errors.New("auction: not closed yet")
	// ErrNotFound signals a lookup of an unknown auction identifier.
	ErrNotFound = errors.New("auction: not found")
	// ErrExists rejects creating the same auction identifier twice.
	ErrExists = errors.New("auction: identifier already exists")

	errNilState = errors.New("auction engine: state not configured")
)

// NotOwnerError rejects an owner-only action and names the authorized
// identity.
type NotOwnerError struct {
	Owner [20]byte
}

func (e NotOwnerError) Error() string {
	return fmt.Sprintf("auction: unauthorized, only %x may perform this action", e.Owner)
}
