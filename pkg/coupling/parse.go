package coupling

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flexinfer/nemsgen/pkg/types"
)

// ParseModelEntry reads a model block produced by ModelEntry.String.
//
// Processors are recovered from the petlist bounds and the parsed start
// processor is kept, so rendering the result reproduces the input. Attribute
// values come back as strings whatever their original kind.
func ParseModelEntry(text string) (*ModelEntry, error) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) < 4 {
		return nil, fmt.Errorf("%w: expected at least 4 lines, got %d", ErrMalformedEntry, len(lines))
	}

	code, name, ok := cutField(lines[0], "_model:")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: bad model line %q", ErrMalformedEntry, lines[0])
	}
	entryType, err := types.ParseEntryType(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}

	boundsCode, bounds, ok := cutField(lines[1], "_petlist_bounds:")
	if !ok || boundsCode != code {
		return nil, fmt.Errorf("%w: bad petlist line %q", ErrMalformedEntry, lines[1])
	}
	start, end, err := parseBounds(bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}

	if lines[2] != code+"_attributes::" {
		return nil, fmt.Errorf("%w: bad attributes header %q", ErrMalformedEntry, lines[2])
	}
	if lines[len(lines)-1] != "::" {
		return nil, fmt.Errorf("%w: missing closing \"::\"", ErrMalformedEntry)
	}

	attrs := &types.Attributes{}
	for _, line := range lines[3 : len(lines)-1] {
		if !strings.HasPrefix(line, indentation) {
			return nil, fmt.Errorf("%w: attribute line not indented: %q", ErrMalformedEntry, line)
		}
		key, value, found := strings.Cut(strings.TrimPrefix(line, indentation), " = ")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: bad attribute line %q", ErrMalformedEntry, line)
		}
		attrs.Set(key, types.String(value))
	}

	m, err := NewModelEntry(entryType, name, end-start+1, WithAttributes(attrs))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	m.start = start
	return m, nil
}

// cutField splits "<CODE><suffix> <value>" into code and trimmed value.
func cutField(line, suffix string) (code, value string, ok bool) {
	i := strings.Index(line, suffix)
	if i <= 0 {
		return "", "", false
	}
	return line[:i], strings.TrimSpace(line[i+len(suffix):]), true
}

func parseBounds(s string) (start, end int, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected two petlist bounds, got %q", s)
	}
	if start, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, fmt.Errorf("start processor: %w", err)
	}
	if end, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, fmt.Errorf("end processor: %w", err)
	}
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("invalid petlist bounds %d %d", start, end)
	}
	return start, end, nil
}
