package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDesign   = "querycanvas/design/v1"
	DomainRelation = "querycanvas/relation/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DesignHash fingerprints the canvas content of a design.
// The design name is not part of the hash: two designs with identical
// instances and connections share a fingerprint.
func DesignHash(d Design) (string, error) {
	canonical, err := MarshalCanonical(d)
	if err != nil {
		return "", fmt.Errorf("DesignHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDesign, canonical), nil
}

// RelationHash fingerprints a relation definition, columns in order.
func RelationHash(r RelationDefinition) (string, error) {
	columns := make([]any, len(r.Columns))
	for i, c := range r.Columns {
		columns[i] = map[string]any{
			"id":             c.ID,
			"name":           c.Name,
			"type":           c.Type,
			"is_primary_key": c.IsPrimaryKey,
		}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"columns":     columns,
	})
	if err != nil {
		return "", fmt.Errorf("RelationHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRelation, canonical), nil
}

// MustDesignHash is like DesignHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDesignHash(d Design) string {
	h, err := DesignHash(d)
	if err != nil {
		panic(err)
	}
	return h
}
