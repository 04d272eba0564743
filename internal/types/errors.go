package types

import "errors"

// Validation errors. All of these are raised before any state is touched.
var (
	ErrEmptyQuestion     = errors.New("empty question")
	ErrEmptyTokenNames   = errors.New("empty token names")
	ErrEmptyTokenSymbols = errors.New("empty token symbols")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrFeeTooHigh        = errors.New("fee exceeds maximum")
	ErrInvalidSide       = errors.New("invalid side")
)

// Payment errors.
var (
	ErrNoPayment           = errors.New("no payment in configured denom")
	ErrPaymentMismatch     = errors.New("payment does not match declared amount")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Authorization errors.
var ErrUnauthorized = errors.New("unauthorized")

// State-machine violations.
var (
	ErrMarketEnded        = errors.New("market has ended")
	ErrMarketStillActive  = errors.New("market is still active")
	ErrMarketNotResolved  = errors.New("market not resolved")
	ErrAlreadyResolved    = errors.New("market already resolved")
	ErrEpochNotStarted    = errors.New("epoch not started")
	ErrEpochNotEnded      = errors.New("epoch not ended")
	ErrAlreadyDistributed = errors.New("epoch already distributed")
	ErrNothingToWithdraw  = errors.New("no stakes to withdraw")
)

// Saga-integrity errors. These abort the enclosing transaction and can
// leave orphaned provisioning state behind (see DESIGN.md).
var (
	ErrNoComponentAddress  = errors.New("no component address in creation result")
	ErrUnknownContinuation = errors.New("unknown continuation tag")
)

// Boundary errors.
var (
	ErrUnknownMessage   = errors.New("unknown message")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)
