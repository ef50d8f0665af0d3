package models

import "time"

// CheckoutState is the current step of a checkout session.
type CheckoutState string

const (
	StateServiceType     CheckoutState = "SERVICE_TYPE"
	StatePickupOrg       CheckoutState = "PICKUP_ORG"
	StateCity            CheckoutState = "CITY"
	StateStreet          CheckoutState = "STREET"
	StateHouse           CheckoutState = "HOUSE"
	StateEntrance        CheckoutState = "ENTRANCE"
	StateFloor           CheckoutState = "FLOOR"
	StateFlat            CheckoutState = "FLAT"
	StateComment         CheckoutState = "COMMENT"
	StateTimeSlot        CheckoutState = "TIME_SLOT"
	StateBonus           CheckoutState = "BONUS"
	StatePaymentMethod   CheckoutState = "PAYMENT_METHOD"
	StateAwaitingPayment CheckoutState = "AWAITING_PAYMENT"
)

// CheckoutSession accumulates order fields across conversational turns.
// There is at most one live session per customer; it lives in Redis and
// expires after the configured idle TTL.
type CheckoutSession struct {
	CustomerID  string        `json:"customer_id"`
	State       CheckoutState `json:"state"`
	ServiceType string        `json:"service_type,omitempty"`

	City     string `json:"city,omitempty"`
	Street   string `json:"street,omitempty"`
	House    string `json:"house,omitempty"`
	Entrance string `json:"entrance,omitempty"`
	Floor    string `json:"floor,omitempty"`
	Flat     string `json:"flat,omitempty"`
	Comment  string `json:"comment,omitempty"`

	TimeSlot time.Time `json:"time_slot,omitempty"`

	// Fixed by the serviceability check for the rest of the session.
	OrganizationID     string `json:"organization_id,omitempty"`
	TerminalGroupID    string `json:"terminal_group_id,omitempty"`
	SurchargeProductID string `json:"surcharge_product_id,omitempty"`

	UseBonus      bool   `json:"use_bonus"`
	PaymentMethod string `json:"payment_method,omitempty"`

	// Fixed when the gateway intent is created; the settled amounts must
	// match what the intent was priced with, not a later balance read.
	BonusApplied    int64  `json:"bonus_applied,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddressStates lists the states that collect address parts, in order.
var AddressStates = []CheckoutState{
	StateCity, StateStreet, StateHouse, StateEntrance, StateFloor, StateFlat, StateComment,
}

// NextAddressState returns the state following s in the address flow, or
// StateTimeSlot once the flow is exhausted.
func NextAddressState(s CheckoutState) CheckoutState {
	for i, st := range AddressStates {
		if st == s {
			if i+1 < len(AddressStates) {
				return AddressStates[i+1]
			}
			return StateTimeSlot
		}
	}
	return StateTimeSlot
}

// Skippable reports whether the address extra collected at s may be skipped.
func Skippable(s CheckoutState) bool {
	switch s {
	case StateEntrance, StateFloor, StateFlat, StateComment:
		return true
	}
	return false
}
