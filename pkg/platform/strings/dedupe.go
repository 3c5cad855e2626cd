// Package strings provides list parsing helpers for query strings and
// environment variables.
package strings

import (
	"strings"
)

// SplitList splits every value on commas, trims whitespace, and drops empty
// and repeated items. First-seen order is preserved.
//
// Example:
//
//	SplitList("SOX_ACTIVITY, SECURITY_EVENT", "SOX_ACTIVITY")
//	// Returns: []string{"SOX_ACTIVITY", "SECURITY_EVENT"}
func SplitList(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
