package middleware

import (
	"fmt"
	"hash/fnv"
)

// ColorFromUserID gives every user the same presence colour on every
// client without the server storing one.
func ColorFromUserID(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	hash := h.Sum32()

	hue := int(hash % 360)
	return fmt.Sprintf("hsl(%d, 70%%, 55%%)", hue)
}
