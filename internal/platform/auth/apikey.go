package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	apiKeyPrefix    = "tak"
	apiKeyByteLen   = 24
	apiKeyPrefixLen = 12
)

// GenerateAPIKey returns a raw opaque key and its sha256 digest. The raw key
// carries no claims; the store keeps only the digest plus a display prefix.
func GenerateAPIKey() (raw, digest, displayPrefix string, err error) {
	buf := make([]byte, apiKeyByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate random bytes: %w", err)
	}

	raw = fmt.Sprintf("%s_%s", apiKeyPrefix, hex.EncodeToString(buf))
	displayPrefix = raw[:apiKeyPrefixLen] + "..."
	return raw, DigestAPIKey(raw), displayPrefix, nil
}

func DigestAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
