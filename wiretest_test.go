package resolvers

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/asyncresolve/resolvers/internal/wiremsg"
)

// testRR describes one resource record to be wire-encoded by buildResponse. Exactly one of Addr,
// CNAMETarget, or SRV should be set, matching Type.
type testRR struct {
	Name string
	Type uint16
	TTL  uint32

	Addr        net.IP // A/AAAA
	CNAMETarget string
	SRV         *testSRVData
}

type testSRVData struct {
	Priority, Weight, Port uint16
	Target                 string
}

func labelBytes(t *testing.T, name string) []byte {
	t.Helper()
	n, err := wiremsg.StrToDNLabel(name)
	if err != nil {
		t.Fatalf("StrToDNLabel(%q): %v", name, err)
	}
	return n.Bytes
}

func appendRR(t *testing.T, buf []byte, rr testRR) []byte {
	t.Helper()

	buf = append(buf, labelBytes(t, rr.Name)...)
	buf = binary.BigEndian.AppendUint16(buf, rr.Type)
	buf = binary.BigEndian.AppendUint16(buf, wiremsg.ClassINET)
	buf = binary.BigEndian.AppendUint32(buf, rr.TTL)

	var rdata []byte
	switch {
	case rr.Addr != nil:
		if v4 := rr.Addr.To4(); v4 != nil && rr.Type == wiremsg.TypeA {
			rdata = append(rdata, v4...)
		} else {
			rdata = append(rdata, rr.Addr.To16()...)
		}
	case rr.CNAMETarget != "":
		rdata = labelBytes(t, rr.CNAMETarget)
	case rr.SRV != nil:
		rdata = binary.BigEndian.AppendUint16(rdata, rr.SRV.Priority)
		rdata = binary.BigEndian.AppendUint16(rdata, rr.SRV.Weight)
		rdata = binary.BigEndian.AppendUint16(rdata, rr.SRV.Port)
		rdata = append(rdata, labelBytes(t, rr.SRV.Target)...)
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rdata)))
	buf = append(buf, rdata...)

	return buf
}

// buildResponse hand-encodes a complete DNS response datagram: header, one question, the given
// answers, and the given additional records (authority section is always empty). It mirrors
// BuildQuery's encoding conventions but does not call BuildQuery; only names go through
// wiremsg.StrToDNLabel, so tests exercise ReadHeader/ReadQuestion/ReadRR/decodeAnswerRR against
// headers, records and rdata assembled by hand here.
func buildResponse(t *testing.T, id uint16, rcode uint8, tc bool, qname string, qtype uint16, answers, additional []testRR) []byte {
	t.Helper()

	flags := uint16(0x8100) | uint16(rcode) // QR=1, RD=1
	if tc {
		flags |= 0x0200
	}

	buf := make([]byte, 0, 256)
	buf = binary.BigEndian.AppendUint16(buf, id)
	buf = binary.BigEndian.AppendUint16(buf, flags)
	buf = binary.BigEndian.AppendUint16(buf, 1) // qdcount
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(answers)))
	buf = binary.BigEndian.AppendUint16(buf, 0) // nscount
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(additional)))

	buf = append(buf, labelBytes(t, qname)...)
	buf = binary.BigEndian.AppendUint16(buf, qtype)
	buf = binary.BigEndian.AppendUint16(buf, wiremsg.ClassINET)

	for _, rr := range answers {
		buf = appendRR(t, buf, rr)
	}
	for _, rr := range additional {
		buf = appendRR(t, buf, rr)
	}

	return buf
}

func queryIDFromBytes(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf[0:2])
}
