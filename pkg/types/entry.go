// Package types provides the shared enumerations and attribute values of a
// NEMS / NUOPC coupling configuration.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the parse functions.
var (
	ErrUnknownEntryType   = errors.New("unknown entry type")
	ErrUnknownRemapMethod = errors.New("unknown remap method")
	ErrUnknownVerbosity   = errors.New("unknown verbosity")
)

// EntryType identifies the kind of coupled component.
type EntryType int

const (
	Atmospheric EntryType = iota
	Wave
	Ocean
	Hydrological
	Ice
	Mediator
)

var entryCodes = [...]string{
	Atmospheric:  "ATM",
	Wave:         "WAV",
	Ocean:        "OCN",
	Hydrological: "HYD",
	Ice:          "ICE",
	Mediator:     "MED",
}

var entryNames = [...]string{
	Atmospheric:  "ATMOSPHERIC",
	Wave:         "WAVE",
	Ocean:        "OCEAN",
	Hydrological: "HYDROLOGICAL",
	Ice:          "ICE",
	Mediator:     "MEDIATOR",
}

// aliases maps lowercase spellings accepted by ParseEntryType.
var aliases = map[string]EntryType{
	"atm":          Atmospheric,
	"atmospheric":  Atmospheric,
	"atmosphere":   Atmospheric,
	"wav":          Wave,
	"wave":         Wave,
	"waves":        Wave,
	"ocn":          Ocean,
	"ocean":        Ocean,
	"hyd":          Hydrological,
	"hydrological": Hydrological,
	"hydrology":    Hydrological,
	"hydrologic":   Hydrological,
	"ice":          Ice,
	"med":          Mediator,
	"mediator":     Mediator,
}

// EntryTypes returns every entry type in component-list order.
func EntryTypes() []EntryType {
	return []EntryType{Atmospheric, Wave, Ocean, Hydrological, Ice, Mediator}
}

// Valid reports whether t is one of the declared entry types.
func (t EntryType) Valid() bool {
	return t >= Atmospheric && t <= Mediator
}

// Code returns the three-letter wire code (e.g. "ATM").
func (t EntryType) Code() string {
	if !t.Valid() {
		return fmt.Sprintf("EntryType(%d)", int(t))
	}
	return entryCodes[t]
}

// String returns the long name (e.g. "ATMOSPHERIC").
func (t EntryType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("EntryType(%d)", int(t))
	}
	return entryNames[t]
}

// ParseEntryType resolves a wire code or long name, case-insensitively.
func ParseEntryType(s string) (EntryType, error) {
	if t, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEntryType, s)
}

// MarshalText encodes t as its wire code.
func (t EntryType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntryType, int(t))
	}
	return []byte(t.Code()), nil
}

// UnmarshalText accepts anything ParseEntryType does.
func (t *EntryType) UnmarshalText(text []byte) error {
	parsed, err := ParseEntryType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
