package otc

import (
	"encoding/hex"
	"strconv"

	"otcvault/core/types"
)

const (
	EventTypeOpened    = "otc.opened"
	EventTypeSettled   = "otc.settled"
	EventTypeCancelled = "otc.cancelled"
)

// NewOpenedEvent returns the canonical payload for a newly opened agreement.
func NewOpenedEvent(a *Agreement) *types.Event { return newAgreementEvent(EventTypeOpened, a, nil) }

// NewSettledEvent returns the payload emitted when a buyer settles the
// agreement.
func NewSettledEvent(a *Agreement, buyer [20]byte) *types.Event {
	return newAgreementEvent(EventTypeSettled, a, &buyer)
}

// NewCancelledEvent returns the payload emitted when the receiver reclaims
// the escrowed offer.
func NewCancelledEvent(a *Agreement) *types.Event {
	return newAgreementEvent(EventTypeCancelled, a, nil)
}

func newAgreementEvent(eventType string, a *Agreement, counterparty *[20]byte) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := Sanitize(a)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(sanitized.ID[:])
	attrs["receiver"] = hex.EncodeToString(sanitized.Receiver[:])
	attrs["offerKind"] = sanitized.Offer.Kind.String()
	attrs["offerId"] = sanitized.Offer.Identifier()
	attrs["offerAmount"] = sanitized.Offer.Amount.String()
	attrs["priceKind"] = sanitized.Price.Kind.String()
	attrs["priceId"] = sanitized.Price.Identifier()
	attrs["priceAmount"] = sanitized.Price.Amount.String()
	attrs["open"] = strconv.FormatBool(sanitized.Open)
	attrs["completed"] = strconv.FormatBool(sanitized.Completed)
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	if counterparty != nil {
		attrs["buyer"] = hex.EncodeToString(counterparty[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
