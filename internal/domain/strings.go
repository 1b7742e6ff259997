package domain

import "strings"

func normalizeUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
