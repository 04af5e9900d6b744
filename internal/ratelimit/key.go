package ratelimit

import "fmt"

// KeyForInitiation builds the limiter key for a client's payment initiations.
func KeyForInitiation(clientID uint64) string {
	if clientID == 0 {
		return ""
	}
	return fmt.Sprintf("stk:c:%d", clientID)
}
