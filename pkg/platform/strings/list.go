// Package strings parses the comma-separated lists and signer=value pairs
// used in environment configuration.
package strings

import (
	"strings"
)

// SplitList splits raw on commas, trims each item and drops empty and
// repeated items. The first occurrence keeps its position.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ParsePairs reads "name=value,name2=value2". Items without '=' or with an
// empty name are skipped; a repeated name keeps its last value.
func ParsePairs(raw string) map[string]string {
	out := map[string]string{}
	for _, item := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}
