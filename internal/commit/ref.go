package commit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-derived identity. The version suffix leaves
// room for algorithm migration without colliding with existing refs.
const (
	DomainCommit  = "filament/commit/v1"
	DomainRefusal = "filament/refusal/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Ref derives the commit ref for (entityID, index). The derivation is a
// pure function: anyone holding the pair can reconstruct the ref without a
// lookup table, and re-deriving always yields the same value.
func Ref(entityID string, index uint64) string {
	idBytes, err := marshalCanonicalString(entityID)
	if err != nil {
		// marshalCanonicalString has no failure path for a Go string.
		panic(fmt.Sprintf("canonical entity id: %v", err))
	}
	var buf []byte
	buf = append(buf, `{"commit_index":`...)
	buf = fmt.Appendf(buf, "%d", index)
	buf = append(buf, `,"entity_id":`...)
	buf = append(buf, idBytes...)
	buf = append(buf, '}')
	return hashWithDomain(DomainCommit, buf)
}

// PayloadHash computes a content hash over a payload object. Used by
// projectors that need a stable identity for derived output.
func PayloadHash(payload Object) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("PayloadHash: %w", err)
	}
	return hashWithDomain(DomainCommit, canonical), nil
}
