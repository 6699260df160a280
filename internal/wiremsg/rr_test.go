package wiremsg

import (
	"encoding/binary"
	"errors"
	"testing"
)

func encodeRR(t *testing.T, name string, rtype uint16, ttl uint32, rdata []byte) []byte {
	t.Helper()

	n, err := StrToDNLabel(name)
	if err != nil {
		t.Fatalf("StrToDNLabel(%q): %v", name, err)
	}

	buf := append([]byte(nil), n.Bytes...)
	buf = binary.BigEndian.AppendUint16(buf, rtype)
	buf = binary.BigEndian.AppendUint16(buf, ClassINET)
	buf = binary.BigEndian.AppendUint32(buf, ttl)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rdata)))
	buf = append(buf, rdata...)

	return buf
}

func TestReadRRDecodesFixedFields(t *testing.T) {
	buf := encodeRR(t, "host.example", TypeA, 300, []byte{192, 0, 2, 1})

	rr, next, err := ReadRR(buf, 0)
	if err != nil {
		t.Fatalf("ReadRR: %v", err)
	}
	if rr.Name != "host.example." {
		t.Errorf("Name = %q, want %q", rr.Name, "host.example.")
	}
	if rr.Type != TypeA || rr.Class != ClassINET || rr.TTL != 300 || rr.RDLength != 4 {
		t.Errorf("fields = %+v, want A/IN/300/4", rr)
	}
	if next != len(buf) {
		t.Errorf("next = %d, want %d (cursor just past the rdata)", next, len(buf))
	}

	addr, err := ReadRDataA(buf, rr)
	if err != nil {
		t.Fatalf("ReadRDataA: %v", err)
	}
	if addr != [4]byte{192, 0, 2, 1} {
		t.Errorf("addr = %v, want 192.0.2.1", addr)
	}
}

func TestReadRDataARejectsWrongLength(t *testing.T) {
	buf := encodeRR(t, "host.example", TypeA, 60, []byte{1, 2, 3})

	rr, _, err := ReadRR(buf, 0)
	if err != nil {
		t.Fatalf("ReadRR: %v", err)
	}
	if _, err := ReadRDataA(buf, rr); err == nil {
		t.Error("ReadRDataA accepted a 3-byte rdata, want error")
	}
}

func TestReadRDataSRVStoresTargetLabelLength(t *testing.T) {
	target, err := StrToDNLabel("backend.example")
	if err != nil {
		t.Fatal(err)
	}

	rdata := binary.BigEndian.AppendUint16(nil, 10) // priority
	rdata = binary.BigEndian.AppendUint16(rdata, 5) // weight
	rdata = binary.BigEndian.AppendUint16(rdata, 80)
	rdata = append(rdata, target.Bytes...)

	buf := encodeRR(t, "_http._tcp.example", TypeSRV, 60, rdata)
	rr, _, err := ReadRR(buf, 0)
	if err != nil {
		t.Fatalf("ReadRR: %v", err)
	}

	srv, err := ReadRDataSRV(buf, rr)
	if err != nil {
		t.Fatalf("ReadRDataSRV: %v", err)
	}
	if srv.Priority != 10 || srv.Weight != 5 || srv.Port != 80 {
		t.Errorf("priority/weight/port = %d/%d/%d, want 10/5/80", srv.Priority, srv.Weight, srv.Port)
	}
	if srv.Target != "backend.example." {
		t.Errorf("Target = %q, want %q", srv.Target, "backend.example.")
	}
	if srv.TargetLabelLen != target.Len {
		t.Errorf("TargetLabelLen = %d, want %d (label form length, not RDLength)", srv.TargetLabelLen, target.Len)
	}
}

func TestReadRDataSRVRejectsShortRData(t *testing.T) {
	buf := encodeRR(t, "_http._tcp.example", TypeSRV, 60, []byte{0, 10, 0, 5, 0, 80})

	rr, _, err := ReadRR(buf, 0)
	if err != nil {
		t.Fatalf("ReadRR: %v", err)
	}
	if _, err := ReadRDataSRV(buf, rr); err == nil {
		t.Error("ReadRDataSRV accepted a 6-byte rdata with no target, want error")
	}
}

func TestReadRRTruncatedRData(t *testing.T) {
	buf := encodeRR(t, "host.example", TypeA, 60, []byte{1, 2, 3, 4})
	buf = buf[:len(buf)-2] // chop the rdata short of its declared length

	if _, _, err := ReadRR(buf, 0); !errors.Is(err, ErrNameTruncated) {
		t.Errorf("err = %v, want ErrNameTruncated", err)
	}
}
