// Package coupling maintains the processor chain and coupling graph of a
// NEMS / NUOPC modeling system and renders its run sequence.
//
// None of the types in this package are safe for concurrent mutation. A
// RunSequence and the entries registered on it must be owned by a single
// writer for the duration of any sequence of mutating calls.
package coupling

import "errors"

// Common errors returned by the coupling types.
var (
	ErrUnknownModel       = errors.New("unknown model")
	ErrDuplicateModelType = errors.New("duplicate model type")
	ErrModelTypeExists    = errors.New("model type already registered")
	ErrInvalidSequence    = errors.New("invalid sequence")
	ErrMalformedEntry     = errors.New("malformed model entry")
	ErrChainCycle         = errors.New("processor chain cycle")
	ErrInvalidProcessors  = errors.New("processors must be positive")
	ErrInvalidName        = errors.New("invalid model name")
)
