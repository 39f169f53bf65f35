package pkg

import (
	"crypto/sha1"
	"encoding/hex"
)

// ETag derives a weak validator from a rendered response body.
func ETag(body []byte) string {
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}
