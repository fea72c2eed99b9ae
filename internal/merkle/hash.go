package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// FingerprintLen is the stored width of every fingerprint: a SHA-256 digest
// truncated to the first 12 hex characters. Wide enough that a collision
// inside one project tree is not a practical concern, narrow enough to keep
// persisted snapshots small.
const FingerprintLen = 12

// Compute returns the fingerprint of raw content.
func Compute(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:FingerprintLen]
}

// ComputeFile reads a file from disk and fingerprints its content.
func ComputeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Compute(data), nil
}

// HashChildren derives a directory fingerprint from its children, which must
// already be sorted by name. Each (name, hash) pair is encoded with a NUL
// between name and hash and a newline between pairs, so two different child
// lists can never serialize to the same byte stream. Renaming a child changes
// the parent hash even when content is untouched.
func HashChildren(children []*Node) string {
	var buf bytes.Buffer
	for _, c := range children {
		buf.WriteString(c.Name)
		buf.WriteByte(0)
		buf.WriteString(c.Hash)
		buf.WriteByte('\n')
	}
	return Compute(buf.Bytes())
}

// ValidFingerprint reports whether s has the exact width and lowercase hex
// alphabet of a fingerprint. Anything read from persisted state goes through
// this before being trusted.
func ValidFingerprint(s string) bool {
	if len(s) != FingerprintLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
