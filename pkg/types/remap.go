package types

import (
	"fmt"
	"strings"
)

// RemapMethod is the interpolation strategy used when field data crosses grids.
type RemapMethod string

const (
	Redistribute               RemapMethod = "redist"
	Bilinear                   RemapMethod = "bilinear"
	Patch                      RemapMethod = "patch"
	NearestSourceToDestination RemapMethod = "nearest_stod"
	NearestDestinationToSource RemapMethod = "nearest_dtos"
	Conservative               RemapMethod = "conserve"
)

var remapAliases = map[string]RemapMethod{
	"redist":                        Redistribute,
	"redistribute":                  Redistribute,
	"bilinear":                      Bilinear,
	"patch":                         Patch,
	"nearest_stod":                  NearestSourceToDestination,
	"nearest-source-to-destination": NearestSourceToDestination,
	"nearest_dtos":                  NearestDestinationToSource,
	"nearest-destination-to-source": NearestDestinationToSource,
	"conserve":                      Conservative,
	"conservative":                  Conservative,
}

// RemapMethods returns all remap methods.
func RemapMethods() []RemapMethod {
	return []RemapMethod{
		Redistribute,
		Bilinear,
		Patch,
		NearestSourceToDestination,
		NearestDestinationToSource,
		Conservative,
	}
}

// Valid reports whether m is a declared method.
func (m RemapMethod) Valid() bool {
	for _, known := range RemapMethods() {
		if m == known {
			return true
		}
	}
	return false
}

// ParseRemapMethod resolves a wire value ("redist") or a long name
// ("redistribute"), case-insensitively.
func ParseRemapMethod(s string) (RemapMethod, error) {
	if m, ok := remapAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRemapMethod, s)
}
