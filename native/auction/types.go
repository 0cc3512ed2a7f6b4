package auction

import (
	"fmt"
	"math/big"
	"strings"

	"otcvault/native/asset"
)

// Auction is the persisted record of one sealed-ledger ascending auction.
// Bids accumulate per bidder in a single denomination; the commission rate
// and owner are fixed at creation. HighestBid never decreases while the
// auction is open, and Winner mirrors HighestBidder at the instant of close.
type Auction struct {
	ID              [32]byte
	Owner           [20]byte
	Denom           string
	RateNumerator   uint64
	RateDenominator uint64
	HighestBid      *big.Int
	HighestBidder   *[20]byte
	Closed          bool
	Winner          *[20]byte
	CreatedAt       int64
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.HighestBid != nil {
		clone.HighestBid = new(big.Int).Set(a.HighestBid)
	} else {
		clone.HighestBid = big.NewInt(0)
	}
	if a.HighestBidder != nil {
		bidder := *a.HighestBidder
		clone.HighestBidder = &bidder
	}
	if a.Winner != nil {
		winner := *a.Winner
		clone.Winner = &winner
	}
	return &clone
}

// Sanitize validates a stored auction before the engine trusts it.
func Sanitize(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("auction: nil auction")
	}
	clone := a.Clone()
	if strings.TrimSpace(clone.Denom) == "" {
		return nil, fmt.Errorf("auction: stored denomination empty for %x", clone.ID)
	}
	if clone.RateDenominator == 0 || clone.RateNumerator >= clone.RateDenominator {
		return nil, fmt.Errorf("auction: stored commission rate %d/%d invalid for %x", clone.RateNumerator, clone.RateDenominator, clone.ID)
	}
	if clone.HighestBid.Sign() < 0 {
		return nil, fmt.Errorf("auction: stored high bid negative for %x", clone.ID)
	}
	return clone, nil
}

// coin returns a descriptor for an amount of the auction denomination.
func (a *Auction) coin(amount *big.Int) asset.Descriptor {
	return asset.Descriptor{Kind: asset.Native, Denom: a.Denom, Amount: new(big.Int).Set(amount)}
}
