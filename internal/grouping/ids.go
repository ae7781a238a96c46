package grouping

import (
	"strconv"

	"github.com/google/uuid"
)

const (
	EventIDPrefix = "ev_"
	GroupIDPrefix = "group_"
)

// IDFunc produces a fresh identifier with the given prefix.
type IDFunc func(prefix string) string

// NewID is the default IDFunc: prefix followed by a random UUID.
func NewID(prefix string) string {
	return prefix + uuid.NewString()
}

// SequenceIDs returns an IDFunc yielding prefix1, prefix2, ... per prefix.
// Tests use it to get predictable ids.
func SequenceIDs() IDFunc {
	counters := map[string]int{}
	return func(prefix string) string {
		counters[prefix]++
		return prefix + strconv.Itoa(counters[prefix])
	}
}
