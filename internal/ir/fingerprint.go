package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainDocument is the hash domain for IR document fingerprints.
// The version suffix allows the encoding to change without collisions.
const DomainDocument = "vizgen/ir/v1"

// DomainSource is the hash domain for generated renderer source.
const DomainSource = "vizgen/source/v1"

func sum(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable content hash of the document.
// encoding/json sorts map keys, so equal documents hash equally.
func Fingerprint(d Document) (string, error) {
	raw, err := d.Bytes()
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return sum(DomainDocument, raw), nil
}

// SourceFingerprint returns a stable content hash of renderer source.
func SourceFingerprint(source string) string {
	return sum(DomainSource, []byte(source))
}
