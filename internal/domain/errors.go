package domain

import "errors"

var (
	// ErrInvalidArgument is returned when an operation receives a malformed
	// or out-of-place argument (empty principal, zero amount, sender ==
	// receiver, mismatched batch lengths)
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTokenNotFound is returned when a token id does not exist
	ErrTokenNotFound = errors.New("token not found")

	// ErrNotRegistered is returned when a principal has no balance entry for
	// a token; absence is distinct from a zero balance
	ErrNotRegistered = errors.New("account not registered for token")

	// ErrAlreadyRegistered is returned when registering a balance entry that
	// already exists
	ErrAlreadyRegistered = errors.New("account already registered for token")

	// ErrUnauthorized is returned when a sender is neither the owner of
	// record nor the holder of a live approval
	ErrUnauthorized = errors.New("sender not authorized")

	// ErrApprovalMismatch is returned when a supplied approval id does not
	// match the stored approval
	ErrApprovalMismatch = errors.New("approval id mismatch")

	// ErrOverflow is returned when checked addition exceeds 2^128 - 1
	ErrOverflow = errors.New("amount overflow")

	// ErrUnderflow is returned when checked subtraction goes below zero
	ErrUnderflow = errors.New("amount underflow")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the
	// holder's balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAmountOutOfRange is returned when a decimal amount string exceeds
	// 2^128 - 1
	ErrAmountOutOfRange = errors.New("amount out of range")

	// ErrIDSpaceExhausted is returned when the token id counter has reached
	// its maximum and no further tokens can be minted
	ErrIDSpaceExhausted = errors.New("token id space exhausted")

	// ErrInvalidMetadata is returned when metadata is required but absent,
	// or not valid JSON
	ErrInvalidMetadata = errors.New("invalid token metadata")

	// ErrPrecheckFailed is returned when a transfer-call fails its payment
	// or budget precheck before any state is touched
	ErrPrecheckFailed = errors.New("transfer-call precheck failed")

	// ErrHookNotRegistered is returned when a transfer-call targets a
	// receiver with no registered notification hook
	ErrHookNotRegistered = errors.New("receiver hook not registered")

	// ErrSagaNotFound is returned when a transfer saga id does not exist
	ErrSagaNotFound = errors.New("transfer saga not found")

	// ErrSagaCallerMismatch is returned when resolution is attempted by a
	// workflow other than the one the saga recorded
	ErrSagaCallerMismatch = errors.New("saga caller mismatch")

	// ErrSagaStateConflict is returned on an illegal saga state transition
	ErrSagaStateConflict = errors.New("saga state conflict")
)
