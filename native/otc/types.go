package otc

import (
	"fmt"

	"otcvault/native/asset"
)

// Agreement is the persisted record of one escrowed value exchange: a
// custodied offer, an asking price and the depositor entitled to the
// proceeds. Terminal agreements are kept for query and audit; Completed
// distinguishes a settled purchase from an owner cancellation since both
// clear Open.
type Agreement struct {
	ID        [32]byte
	Offer     asset.Descriptor
	Price     asset.Descriptor
	Receiver  [20]byte
	Open      bool
	Completed bool
	CreatedAt int64
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a *Agreement) Clone() *Agreement {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Offer = a.Offer.Clone()
	clone.Price = a.Price.Clone()
	return &clone
}

// Sanitize validates a stored agreement before the engine trusts it. Both
// assets must carry positive amounts and a resolved kind.
func Sanitize(a *Agreement) (*Agreement, error) {
	if a == nil {
		return nil, fmt.Errorf("otc: nil agreement")
	}
	clone := a.Clone()
	if !clone.Offer.Valid() {
		return nil, fmt.Errorf("otc: stored offer invalid for agreement %x", clone.ID)
	}
	if !clone.Price.Valid() {
		return nil, fmt.Errorf("otc: stored price invalid for agreement %x", clone.ID)
	}
	return clone, nil
}
