package engine

import (
	"errors"
)

// Validation errors: malformed or missing caller input. No persistence
// side effects.
var (
	ErrMissingWallet     = errors.New("wallet is required")
	ErrMissingName       = errors.New("name is required")
	ErrInvalidSymbol     = errors.New("symbol must be 2-10 alphanumeric characters")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrInvalidSide       = errors.New("side must be buy or sell")
	ErrInvalidKind       = errors.New("unknown withdrawal kind")
	ErrMissingReferrer   = errors.New("referrer is required")
	ErrSelfReferral      = errors.New("cannot refer yourself")
)

// State-precondition errors: the operation is not permitted given current
// entity state. Checked before any mutation.
var (
	ErrCoinNotFound        = errors.New("coin not found")
	ErrCoinNotLive         = errors.New("coin is not live")
	ErrInsufficientHolding = errors.New("insufficient holding")
	ErrOwnershipCap        = errors.New("ownership cap exceeded")
	ErrReferralExists      = errors.New("referral already set")
	ErrSupplyExhausted     = errors.New("coin supply exhausted")
)

// ErrPersist marks failures of the backing store. The in-memory mutation
// may be correct but unsaved; callers must not assume durability.
var ErrPersist = errors.New("snapshot persistence failed")

// IsRejection reports whether err is a validation or state-precondition
// rejection, as opposed to an internal fault. Rejections surface as
// {ok:false, error} responses; faults as transport-level errors.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrMissingWallet, ErrMissingName, ErrInvalidSymbol,
		ErrNonPositiveAmount, ErrNegativeAmount, ErrInvalidSide,
		ErrInvalidKind, ErrMissingReferrer, ErrSelfReferral,
		ErrCoinNotFound, ErrCoinNotLive, ErrInsufficientHolding,
		ErrOwnershipCap, ErrReferralExists, ErrSupplyExhausted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
