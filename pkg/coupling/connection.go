package coupling

import (
	"fmt"

	"github.com/flexinfer/nemsgen/pkg/types"
)

// SequenceEntry is anything that can appear inside the run loop body:
// a bare *ModelEntry, a Connection or a *Mediation.
type SequenceEntry interface {
	SequenceText() string
}

// DefaultConnectionMethod is used by NewConnection when no method is given.
const DefaultConnectionMethod = types.Bilinear

// Connection is a one-directional coupling edge. Two connections are equal
// when they join the same entries with the same method.
type Connection struct {
	Source *ModelEntry
	Target *ModelEntry
	Method types.RemapMethod
}

// NewConnection joins source to target. An empty method means bilinear.
func NewConnection(source, target *ModelEntry, method types.RemapMethod) (Connection, error) {
	if method == "" {
		method = DefaultConnectionMethod
	}
	if err := checkMethod(method); err != nil {
		return Connection{}, err
	}
	return Connection{Source: source, Target: target, Method: method}, nil
}

func checkMethod(method types.RemapMethod) error {
	if !method.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownRemapMethod, method)
	}
	return nil
}

// SequenceText renders "SRC -> DST   :remapMethod=<method>".
func (c Connection) SequenceText() string {
	route := c.Source.Type().Code() + " -> " + c.Target.Type().Code()
	return fmt.Sprintf("%-13s:remapMethod=%s", route, c.Method)
}

func (c Connection) String() string {
	return c.SequenceText()
}
