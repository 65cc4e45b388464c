package hash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hash returns the hash value of data.
func Hash(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// FastHash hashes short strings such as prompts.
func FastHash(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Hex formats a 64-bit hash as 16 hex digits.
func Hex(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
