// Package pagination normalizes offset-based paging inputs.
package pagination

import (
	"strconv"
	"strings"
)

// ParseOffset reads a raw offset query value. Empty, malformed and negative
// values all normalize to 0; callers never see an error.
func ParseOffset(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
