package donors

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the donor datastore's request signature: SHA-256 over
// nonce+timestamp+key, hex encoded, then hashed again with the secret
// appended.
func Sign(secret, nonce, apiKey, ts string) string {
	h1 := sha256.Sum256([]byte(nonce + ts + apiKey))
	h2 := sha256.Sum256([]byte(hex.EncodeToString(h1[:]) + secret))
	return hex.EncodeToString(h2[:])
}
