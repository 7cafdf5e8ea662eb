package types

import (
	"fmt"
	"strings"
)

// Verbosity is the coupler's logging level for a component.
type Verbosity string

const (
	VerbosityMinimum Verbosity = "min"
	VerbosityMaximum Verbosity = "max"
	VerbosityOff     Verbosity = "off"
	VerbosityLow     Verbosity = "low"
	VerbosityHigh    Verbosity = "high"
)

// DefaultVerbosity is used when an entry does not set one.
const DefaultVerbosity = VerbosityMinimum

// ParseVerbosity accepts the wire value or the spelled-out name.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min", "minimum":
		return VerbosityMinimum, nil
	case "max", "maximum":
		return VerbosityMaximum, nil
	case "off":
		return VerbosityOff, nil
	case "low":
		return VerbosityLow, nil
	case "high":
		return VerbosityHigh, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVerbosity, s)
}
