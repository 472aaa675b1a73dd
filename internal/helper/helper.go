package helper

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash8 is a short stable digest, used to key rate-limit buckets without
// storing raw client addresses.
func Hash8(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
