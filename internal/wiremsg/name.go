/*
Package wiremsg is the hand-rolled DNS wire-format codec for the resolver core: it builds outgoing
queries and decodes the header, question, and name-compression parts of incoming responses.

It deliberately does not delegate to github.com/miekg/dns's Msg.Pack/Unpack. Those expose a
message-shaped API, not the byte-exact, depth-capped name decompressor this package's callers
depend on for their own correctness proofs (see the root resolvers package's response processor,
and DESIGN.md for the full rationale). It does reuse miekg/dns's RR type/class constants so the
numeric wire values it emits and checks agree with the rest of the ecosystem.
*/
package wiremsg

import (
	"strings"

	"github.com/miekg/dns"

	"github.com/asyncresolve/resolvers/internal/rslvconst"
)

// RR types and classes this package knows about, aliased from miekg/dns so the numeric values never
// drift from the library the rest of the Go DNS ecosystem uses.
const (
	TypeA     = dns.TypeA
	TypeNS    = dns.TypeNS
	TypeCNAME = dns.TypeCNAME
	TypeSOA   = dns.TypeSOA
	TypeSRV   = dns.TypeSRV
	TypeAAAA  = dns.TypeAAAA
	TypeOPT   = dns.TypeOPT

	ClassINET = dns.ClassINET
)

// compressionPointerMask identifies the two high bits that mark a length byte as a compression
// pointer rather than a label length.
const compressionPointerMask = 0xC0

// Name is a DNS name in wire label form: length-prefixed labels terminated by a zero byte.
//
// Bytes holds the full wire encoding, including the terminating zero byte, ready to be copied
// straight into a question section. Len is the length of Bytes *excluding* that terminator; it is
// the value compared when two resolutions are coalesced and the value bounded by the 255-byte
// hostname limit.
type Name struct {
	Bytes []byte
	Len   int
}

// ValidHostname reports whether s satisfies the hostname grammar: total length <= 255, each label
// <= 63 bytes, and every label byte drawn from [A-Za-z0-9_-]. A single trailing dot is tolerated.
func ValidHostname(s string) bool {
	consts := rslvconst.Get()

	s = strings.TrimSuffix(s, ".")
	if len(s) == 0 || len(s) > consts.MaxNameLength {
		return false
	}

	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 || len(label) > consts.MaxLabelLength {
			return false
		}
		for i := 0; i < len(label); i++ {
			if !validHostnameByte(label[i]) {
				return false
			}
		}
	}

	return true
}

func validHostnameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	default:
		return false
	}
}

// StrToDNLabel converts a dotted string into wire label form. It rejects empty labels (including
// the double-dot case) and oversized labels/names. A single trailing dot is tolerated and stripped
// before encoding. The returned Name.Len excludes the terminating null byte that Name.Bytes carries.
func StrToDNLabel(s string) (Name, error) {
	consts := rslvconst.Get()

	trimmed := strings.TrimSuffix(s, ".")
	if len(trimmed) == 0 {
		return Name{}, ErrEmptyLabel
	}

	labels := strings.Split(trimmed, ".")
	out := make([]byte, 0, len(trimmed)+2)

	for _, label := range labels {
		if len(label) == 0 {
			return Name{}, ErrEmptyLabel
		}
		if len(label) > consts.MaxLabelLength {
			return Name{}, ErrLabelTooLong
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	out = append(out, 0x00)

	n := Name{Bytes: out, Len: len(out) - 1}
	if n.Len > consts.MaxNameLength {
		return Name{}, ErrNameTooLong
	}

	return n, nil
}

// DNLabelToString converts wire label form back to a dotted, trailing-dot-terminated string. src may
// or may not include the terminating zero byte; decoding stops at the first zero byte or the end of
// src, whichever comes first.
func DNLabelToString(src []byte) (string, error) {
	var sb strings.Builder

	pos := 0
	for pos < len(src) {
		length := int(src[pos])
		if length == 0 {
			break
		}
		if length&compressionPointerMask != 0 {
			return "", ErrBadLabelLength
		}
		pos++
		if pos+length > len(src) {
			return "", ErrNameTruncated
		}
		sb.Write(src[pos : pos+length])
		sb.WriteByte('.')
		pos += length
	}

	if sb.Len() == 0 {
		return ".", nil
	}

	return sb.String(), nil
}

// ReadName decodes a DNS name starting at buf[cursor], following compression pointers as needed.
// It never reads outside [0, len(buf)) and never writes outside dest[0:cap(dest)].
//
// written is the number of label-form bytes (excluding the terminating zero) copied into dest;
// for a name with no compression this is exactly what StrToDNLabel would have produced for the
// same dotted name.
//
// consumed is always measured from the original cursor to the first terminator or pointer
// encountered in the input buffer, regardless of how many indirections following a pointer
// required: a terminator contributes 1 byte, a pointer contributes 2, independent of where the
// pointer leads.
func ReadName(buf []byte, cursor int, dest []byte) (written int, consumed int, err error) {
	consts := rslvconst.Get()

	pos := cursor
	consumedFixed := false
	jumps := 0

	for {
		if pos < 0 || pos >= len(buf) {
			return 0, 0, ErrNameTruncated
		}

		length := int(buf[pos])

		if length == 0 {
			pos++
			if !consumedFixed {
				consumed = pos - cursor
			}
			return written, consumed, nil
		}

		if length&compressionPointerMask == compressionPointerMask {
			if pos+1 >= len(buf) {
				return 0, 0, ErrNameTruncated
			}
			if !consumedFixed {
				consumed = (pos + 2) - cursor
				consumedFixed = true
			}

			ptr := ((length &^ compressionPointerMask) << 8) | int(buf[pos+1])
			if ptr >= pos {
				return 0, 0, ErrBadPointer
			}

			jumps++
			if jumps >= consts.MaxNameCompressionDepth {
				return 0, 0, ErrNameTooDeep
			}

			pos = ptr
			continue
		}

		if length&compressionPointerMask != 0 {
			return 0, 0, ErrBadLabelLength
		}

		if pos+1+length > len(buf) {
			return 0, 0, ErrNameTruncated
		}

		need := 1 + length
		if written+need > len(dest) {
			return 0, 0, ErrDestTooSmall
		}

		dest[written] = byte(length)
		copy(dest[written+1:], buf[pos+1:pos+1+length])
		written += need

		pos += need
		if !consumedFixed {
			consumed = pos - cursor
		}
	}
}
