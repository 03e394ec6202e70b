package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Keccak256Hex returns the legacy Keccak-256 digest of s as lowercase hex with a 0x prefix.
func Keccak256Hex(s string) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(s))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// SourceHash is the only identifier of a request source that leaves the process.
func SourceHash(ip string) string {
	return Keccak256Hex(ip)
}

// ShortDigest is a 16 hex char prefix of the Keccak-256 digest of s.
func ShortDigest(s string) string {
	return Keccak256Hex(s)[2:18]
}
