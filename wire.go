package resolvers

import (
	"strings"

	"github.com/asyncresolve/resolvers/internal/wiremsg"
)

// normalizeName strips a trailing root dot and folds case, so names that differ only in whether
// they're written "example.org" or "example.org." compare equal, matching DNS's own name equality.
func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSuffix(s, "."))
}

// wireType maps a RecordType to its DNS wire-format query type value.
func wireType(t RecordType) uint16 {
	switch t {
	case RecordAAAA:
		return wiremsg.TypeAAAA
	case RecordCNAME:
		return wiremsg.TypeCNAME
	case RecordSRV:
		return wiremsg.TypeSRV
	default:
		return wiremsg.TypeA
	}
}

func recordTypeFromWire(t uint16) (RecordType, bool) {
	switch t {
	case wiremsg.TypeA:
		return RecordA, true
	case wiremsg.TypeAAAA:
		return RecordAAAA, true
	case wiremsg.TypeCNAME:
		return RecordCNAME, true
	case wiremsg.TypeSRV:
		return RecordSRV, true
	default:
		return 0, false
	}
}

// encodeName converts hostname to wire label form, reporting any StrToDNLabel failure as
// ErrInvalidHostname. Link time also returns that error for names ValidHostname rejects.
func encodeName(hostname string) (wiremsg.Name, error) {
	name, err := wiremsg.StrToDNLabel(hostname)
	if err != nil {
		return wiremsg.Name{}, ErrInvalidHostname
	}
	return name, nil
}

// buildQuery encodes a single-question query for qtype, mapped to its wire type value.
func buildQuery(buf []byte, id uint16, qtype RecordType, maxPayload uint16, name wiremsg.Name) (int, error) {
	return wiremsg.BuildQuery(buf, id, wireType(qtype), maxPayload, name)
}
