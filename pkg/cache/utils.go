package cache

import "fmt"

// GenerateKey joins prefix and parts with ':'.
func GenerateKey(prefix string, parts ...interface{}) string {
	key := prefix
	for _, p := range parts {
		key = fmt.Sprintf("%s:%v", key, p)
	}
	return key
}
