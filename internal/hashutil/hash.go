// Package hashutil provides the content hashing primitive shared by the
// snapshot store and the post-write recorder: a
// normalised-line-ending SHA-256 digest over whole content or a 1-based
// inclusive line range.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// emptyDigest is the fixed value hashed whenever a requested line range is
// empty or wholly out of bounds.
var emptyDigest = Digest("")

// normalize collapses CRLF and stray CR into LF so the same logical content
// hashes identically regardless of the platform that produced it.
func normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return content
}

// Digest returns the 64 lowercase hex character SHA-256 digest of content
// after line-ending normalisation. It never fails.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(normalize(content)))
	return hex.EncodeToString(sum[:])
}

// DigestRange returns the digest of the 1-based inclusive line range
// [startLine, endLine] of content, after normalisation. Out-of-range bounds
// are clamped; a range that is empty or wholly outside the content after
// clamping hashes the empty string.
func DigestRange(content string, startLine, endLine int) string {
	normalized := normalize(content)
	lines := strings.Split(normalized, "\n")
	n := len(lines)

	start := startLine
	if start < 1 {
		start = 1
	}
	end := endLine
	if end > n {
		end = n
	}

	if start > end || start > n || end < 1 {
		return emptyDigest
	}

	selected := lines[start-1 : end]
	return Digest(strings.Join(selected, "\n"))
}
