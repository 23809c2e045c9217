// Package enums holds the string-backed status and event types persisted by the
// marketplace. Each type lists its members once; membership and parsing go
// through the shared helpers below.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func member[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](set []T, kind, raw string) (T, error) {
	v := T(strings.TrimSpace(raw))
	if member(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
