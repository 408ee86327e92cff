package domain

import "errors"

// Sentinel errors for the batch domain. Use errors.Is() to check these.
var (
	// ErrBatchNotFound indicates no batch was ever minted under the identifier.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrMalformedIdentifier indicates an identifier payload that cannot be decoded.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	// ErrInvalidTransition indicates the stage is not a legal next step for the
	// batch's current state, including any append after the batch was sold.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrNonMonotonicTime indicates a stage timestamp earlier than the last recorded stage.
	ErrNonMonotonicTime = errors.New("stage time precedes last recorded stage")

	// ErrInvalidIntake indicates producer intake data violates domain constraints.
	ErrInvalidIntake = errors.New("invalid batch intake")

	// ErrInvalidStage indicates a stage record violates domain constraints.
	ErrInvalidStage = errors.New("invalid stage record")

	// ErrDuplicateIdentifier indicates a freshly minted identifier is already taken.
	// The batch service retries minting; callers should not normally see it.
	ErrDuplicateIdentifier = errors.New("duplicate batch identifier")

	// ErrIdentifierExhausted indicates every mint attempt collided.
	ErrIdentifierExhausted = errors.New("identifier mint attempts exhausted")
)
