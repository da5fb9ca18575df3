package redis

import "fmt"

// LastAppliedKey returns the key for the last display values a service applied (hash)
// Pattern: {service}:display:last
func LastAppliedKey(service string) string {
	return fmt.Sprintf("%s:display:last", service)
}
