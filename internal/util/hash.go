package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex digests b to lowercase hex. Paper identities fall back to a
// prefix of this when a candidate carries no arXiv id, so the encoding must
// stay stable across runs.
func SHA256Hex(b []byte) string {
	x := sha256.Sum256(b)
	return hex.EncodeToString(x[:])
}
