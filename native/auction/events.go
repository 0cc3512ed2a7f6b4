package auction

import (
	"encoding/hex"
	"strconv"

	"otcvault/core/types"
)

const (
	EventTypeCreated   = "auction.created"
	EventTypeBidPlaced = "auction.bid_placed"
	EventTypeClosed    = "auction.closed"
	EventTypeRetracted = "auction.retracted"
)

// NewCreatedEvent returns the canonical payload for a newly created auction.
func NewCreatedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeCreated, a, nil)
}

// NewBidPlacedEvent returns the payload emitted when a bid is accepted.
func NewBidPlacedEvent(a *Auction, bidder [20]byte) *types.Event {
	return newAuctionEvent(EventTypeBidPlaced, a, map[string]string{
		"bidder": hex.EncodeToString(bidder[:]),
	})
}

// NewClosedEvent returns the payload emitted when the owner closes the sale.
func NewClosedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeClosed, a, nil)
}

// NewRetractedEvent returns the payload emitted when a losing bidder
// retracts their entry.
func NewRetractedEvent(a *Auction, bidder, recipient [20]byte, amount string) *types.Event {
	return newAuctionEvent(EventTypeRetracted, a, map[string]string{
		"bidder":    hex.EncodeToString(bidder[:]),
		"recipient": hex.EncodeToString(recipient[:]),
		"amount":    amount,
	})
}

func newAuctionEvent(eventType string, a *Auction, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := Sanitize(a)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(sanitized.ID[:])
	attrs["owner"] = hex.EncodeToString(sanitized.Owner[:])
	attrs["denom"] = sanitized.Denom
	attrs["highestBid"] = sanitized.HighestBid.String()
	if sanitized.HighestBidder != nil {
		attrs["highestBidder"] = hex.EncodeToString(sanitized.HighestBidder[:])
	}
	attrs["closed"] = strconv.FormatBool(sanitized.Closed)
	if sanitized.Winner != nil {
		attrs["winner"] = hex.EncodeToString(sanitized.Winner[:])
	}
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
