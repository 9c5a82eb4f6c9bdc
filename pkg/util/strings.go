package util

import "strings"

// Tail returns at most the last n bytes of s, trimmed of surrounding space.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
