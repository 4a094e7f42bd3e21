// Package status defines the lifecycle codes of a processing step.
//
// Codes are ordered: a larger value means further along, except Error and
// DataNotAvailable which are terminal-negative outcomes.
package status

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code is a step lifecycle code. It encodes to JSON as a number.
type Code int

const (
	Init             Code = 0
	DataReady        Code = 10
	Processing       Code = 20
	Done             Code = 30
	Error            Code = 40
	DataNotAvailable Code = 41
)

var names = map[Code]string{
	Init:             "INIT",
	DataReady:        "DATA_READY",
	Processing:       "PROCESSING",
	Done:             "DONE",
	Error:            "ERROR",
	DataNotAvailable: "DATA_NOT_AVAILABLE",
}

// All returns every known code in ascending order.
func All() []Code {
	return []Code{Init, DataReady, Processing, Done, Error, DataNotAvailable}
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("STATUS(%d)", int(c))
}

// Valid reports whether c is one of the known codes.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}

// Terminal reports whether a run attempt stops at c.
func (c Code) Terminal() bool {
	return c == Done || c == Error || c == DataNotAvailable
}

// Failed reports whether c is a terminal-negative outcome.
func (c Code) Failed() bool {
	return c == Error || c == DataNotAvailable
}

// Parse converts a name such as "DONE" (case-insensitive) to its code.
func Parse(s string) (Code, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for c, n := range names {
		if n == up {
			return c, nil
		}
	}
	return Init, fmt.Errorf("unknown status %q", s)
}

// UnmarshalJSON accepts both the numeric form and the name form.
func (c *Code) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*c = Code(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
