// Package checksum fingerprints media content for change detection and
// duplicate suppression.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumReader streams r through SHA-256 and returns the hex digest together
// with the number of bytes read.
func SumReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("checksum: read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
