package util

import "strings"

func StringPtr(s string) *string {
	return &s
}

// ParseKeyValues splits "key=value" pairs. Entries without '=' are skipped.
func ParseKeyValues(pairs []string) map[string]string {
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		result[key] = value
	}
	return result
}
