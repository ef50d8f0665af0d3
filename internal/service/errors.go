package service

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnavailable means the POS could not be reached and the
	// freshness of the mirror cannot be guaranteed.
	ErrCatalogUnavailable = errors.New("catalog service unavailable")

	// ErrStaleReference means a product or group no longer matches the
	// mirror's current revision.
	ErrStaleReference = errors.New("stale catalog reference")

	// ErrStaleCart means the cart contains lines the current menu no
	// longer carries; the customer has to rebuild the cart.
	ErrStaleCart = errors.New("cart contains stale items")

	// ErrNotServiceable means no terminal can serve the address and sum.
	ErrNotServiceable = errors.New("address is not serviceable")

	// ErrValidation is a local input error; the session re-prompts the
	// same step without advancing.
	ErrValidation = errors.New("validation failed")

	ErrPaymentMismatch     = errors.New("payment does not match the session")
	ErrPaymentNotConfirmed = errors.New("payment is not confirmed")
	ErrInsufficientBonus   = errors.New("bonus balance does not cover the order")

	ErrNoActiveSession  = errors.New("no active checkout session")
	ErrWrongState       = errors.New("action not allowed in the current checkout step")
	ErrEmptyCart        = errors.New("cart is empty, nothing to checkout")
	ErrCartLineNotFound = errors.New("cart line not found")
)

// NotServiceableError carries the delivery-zone reference shown to the
// customer when the serviceability check rejects the address.
type NotServiceableError struct {
	ZoneMapURL string
}

func (e *NotServiceableError) Error() string {
	return fmt.Sprintf("%v (zones: %s)", ErrNotServiceable, e.ZoneMapURL)
}

func (e *NotServiceableError) Unwrap() error {
	return ErrNotServiceable
}
