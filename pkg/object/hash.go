package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashLen is the length of a hex-encoded object hash.
const HashLen = 64

// ComputeHash computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256.
func ComputeHash(objType Type, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ValidHash reports whether s looks like a full hex object hash.
func ValidHash(s string) bool {
	if len(s) != HashLen {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
