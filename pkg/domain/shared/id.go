package shared

import (
	"fmt"
	"strconv"
)

// ID is a database-assigned identifier. Zero means "not yet persisted".
type ID int64

// ParseID parses a decimal identifier, rejecting zero and negative values.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrValidation, s)
	}
	return ID(n), nil
}

// Int64 returns the identifier as an int64.
func (id ID) Int64() int64 {
	return int64(id)
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id == 0
}

// String returns the decimal form of the identifier.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
