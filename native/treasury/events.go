package treasury

import (
	"encoding/hex"
	"strconv"

	"zenbeasts/core/types"
)

const (
	EventTypeCollected = "treasury.collected"
	EventTypePayout    = "treasury.payout"
	EventTypeBurned    = "treasury.burned"
)

// NewCollectedEvent records a fee collection and how it split between the
// burn and the treasury.
func NewCollectedEvent(payer [20]byte, amount, burned, retained uint64) *types.Event {
	return &types.Event{Type: EventTypeCollected, Attributes: map[string]string{
		"payer":    hex.EncodeToString(payer[:]),
		"amount":   strconv.FormatUint(amount, 10),
		"burned":   strconv.FormatUint(burned, 10),
		"retained": strconv.FormatUint(retained, 10),
	}}
}

// NewPayoutEvent records a treasury-funded payout.
func NewPayoutEvent(treasury, recipient [20]byte, amount uint64) *types.Event {
	return &types.Event{Type: EventTypePayout, Attributes: map[string]string{
		"treasury":  hex.EncodeToString(treasury[:]),
		"recipient": hex.EncodeToString(recipient[:]),
		"amount":    strconv.FormatUint(amount, 10),
	}}
}

// NewBurnedEvent records tokens leaving circulation outside a fee split.
func NewBurnedEvent(holder [20]byte, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeBurned, Attributes: map[string]string{
		"holder": hex.EncodeToString(holder[:]),
		"amount": strconv.FormatUint(amount, 10),
	}}
}
