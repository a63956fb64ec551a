package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint hashes arbitrary request material into a fixed-length hex
// key. Deterministic: identical material always yields the identical key.
func Fingerprint(material string) string {
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// TransmuteMaterial builds the cache material for a content transmutation.
// Every contributing field changes the resulting fingerprint.
func TransmuteMaterial(userID, content, mode string) string {
	return fmt.Sprintf("%s-%s-%s", userID, content, mode)
}

// ChatMaterial builds the cache material for an open-ended chat prompt.
func ChatMaterial(userID, prompt string) string {
	return fmt.Sprintf("%s-%s", userID, prompt)
}
