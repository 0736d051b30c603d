// Package types carries the few identifier helpers that don't belong in
// any single domain package. Everything else the trapperkeeper teacher
// kept here (Payload, Metadata, the rule-engine DNF structs, and their
// sentinel errors) belonged to the sensor-ingestion domain this broker
// replaces; see DESIGN.md for why those were dropped rather than adapted.
package types

import (
	"time"

	"github.com/google/uuid"
)

// AuditID is a UUIDv7 audit-record identifier. Time-ordering keeps
// sequential inserts clustered in the audit_log table's primary-key index,
// the same rationale the teacher applied to its event/rule IDs.
type AuditID string

// NewAuditID generates a UUIDv7 audit-record identifier. Panics (uuid.Must)
// if uuid.NewV7 returns an error, which happens only when the random source
// fails; acceptable for ID generation.
func NewAuditID() AuditID {
	return AuditID(uuid.Must(uuid.NewV7()).String())
}

// ParseAuditID validates and converts a string to AuditID.
func ParseAuditID(s string) (AuditID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return AuditID(s), nil
}

// AuditIDTime extracts the timestamp embedded in a UUIDv7 audit ID.
// Returns the zero time for a malformed ID; callers should check IsZero().
func AuditIDTime(id AuditID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
