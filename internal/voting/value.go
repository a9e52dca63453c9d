package voting

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a vote direction.
type Value int8

const (
	Down Value = -1
	Up   Value = 1
)

// NewValue accepts exactly -1 or 1.
func NewValue(v int) (Value, error) {
	switch v {
	case -1:
		return Down, nil
	case 1:
		return Up, nil
	default:
		return 0, fmt.Errorf("%w: got %d", ErrInvalidVote, v)
	}
}

// ParseValue parses a signed integer vote from a request field.
func ParseValue(s string) (Value, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidVote, s)
	}
	return NewValue(n)
}

func (v Value) String() string {
	if v == Up {
		return "up"
	}
	return "down"
}
