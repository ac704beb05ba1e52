// Package digest computes BLAKE3 content digests of lyric buffers.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Size is the length of a hex digest in characters.
const Size = 64

// Sum returns the hex BLAKE3-256 digest of data.
func Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String returns the hex BLAKE3-256 digest of s.
func String(s string) string {
	return Sum([]byte(s))
}

// Reader streams r through BLAKE3 and returns the hex digest.
func Reader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Short returns the first 12 characters of a digest, for display.
func Short(d string) string {
	if len(d) <= 12 {
		return d
	}
	return d[:12]
}

// Valid reports whether d looks like a hex digest produced by this package.
func Valid(d string) bool {
	if len(d) != Size {
		return false
	}
	for _, c := range d {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
