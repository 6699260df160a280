package wiremsg

// Question is a decoded entry from a message's question section.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// ReadQuestion decodes one question entry starting at cursor, returning it along with the cursor
// just past it.
func ReadQuestion(buf []byte, cursor int) (Question, int, error) {
	dest := make([]byte, MaxNameLength)
	written, consumed, err := ReadName(buf, cursor, dest)
	if err != nil {
		return Question{}, 0, err
	}

	name, err := DNLabelToString(dest[:written])
	if err != nil {
		return Question{}, 0, err
	}

	pos := cursor + consumed
	qtype, err := ReadUint16(buf, pos)
	if err != nil {
		return Question{}, 0, err
	}
	qclass, err := ReadUint16(buf, pos+2)
	if err != nil {
		return Question{}, 0, err
	}

	return Question{Name: name, Type: qtype, Class: qclass}, pos + 4, nil
}

// RR is a decoded resource record with its rdata left unparsed (callers decode it per-Type with
// ReadRDataA, ReadRDataAAAA, ReadRDataName, or ReadRDataSRV, using RDOffset/RDLength).
type RR struct {
	Name     string
	Type     uint16
	Class    uint16
	TTL      uint32
	RDLength uint16
	RDOffset int
}

// MaxNameLength mirrors rslvconst's name length cap as a compile-time constant, used to size the
// decode buffers below.
const MaxNameLength = 255

// ReadRR decodes one resource record's owner/type/class/ttl/rdlength fields starting at cursor,
// returning the RR and the cursor just past its rdata.
func ReadRR(buf []byte, cursor int) (RR, int, error) {
	dest := make([]byte, MaxNameLength)
	written, consumed, err := ReadName(buf, cursor, dest)
	if err != nil {
		return RR{}, 0, err
	}

	name, err := DNLabelToString(dest[:written])
	if err != nil {
		return RR{}, 0, err
	}

	pos := cursor + consumed

	rtype, err := ReadUint16(buf, pos)
	if err != nil {
		return RR{}, 0, err
	}
	class, err := ReadUint16(buf, pos+2)
	if err != nil {
		return RR{}, 0, err
	}
	ttl, err := ReadUint32(buf, pos+4)
	if err != nil {
		return RR{}, 0, err
	}
	rdlen, err := ReadUint16(buf, pos+8)
	if err != nil {
		return RR{}, 0, err
	}

	rdOffset := pos + 10
	if rdOffset+int(rdlen) > len(buf) {
		return RR{}, 0, ErrNameTruncated
	}

	rr := RR{Name: name, Type: rtype, Class: class, TTL: ttl, RDLength: rdlen, RDOffset: rdOffset}

	return rr, rdOffset + int(rdlen), nil
}

// ReadRDataA decodes a 4-byte A rdata.
func ReadRDataA(buf []byte, rr RR) ([4]byte, error) {
	var addr [4]byte
	if rr.RDLength != 4 {
		return addr, ErrBadLabelLength
	}
	copy(addr[:], buf[rr.RDOffset:rr.RDOffset+4])
	return addr, nil
}

// ReadRDataAAAA decodes a 16-byte AAAA rdata.
func ReadRDataAAAA(buf []byte, rr RR) ([16]byte, error) {
	var addr [16]byte
	if rr.RDLength != 16 {
		return addr, ErrBadLabelLength
	}
	copy(addr[:], buf[rr.RDOffset:rr.RDOffset+16])
	return addr, nil
}

// ReadRDataName decodes a CNAME-shaped rdata: a single compressed or uncompressed name, used for
// both CNAME and (for the owner-name portion only) SOA/NS records this package does not otherwise
// care about.
func ReadRDataName(buf []byte, rr RR) (string, error) {
	dest := make([]byte, MaxNameLength)
	written, _, err := ReadName(buf, rr.RDOffset, dest)
	if err != nil {
		return "", err
	}
	return DNLabelToString(dest[:written])
}

// SRVRData is the decoded rdata of an SRV record.
type SRVRData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
	// TargetLabelLen is the length, in wire label-form bytes, of Target. Callers store it on
	// the corresponding AnswerItem instead of RDLength.
	TargetLabelLen int
}

// ReadRDataSRV decodes an SRV rdata. RDLength must exceed 6 (priority+weight+port, plus at least a
// root-only target).
func ReadRDataSRV(buf []byte, rr RR) (SRVRData, error) {
	if rr.RDLength <= 6 {
		return SRVRData{}, ErrBadLabelLength
	}

	priority, err := ReadUint16(buf, rr.RDOffset)
	if err != nil {
		return SRVRData{}, err
	}
	weight, err := ReadUint16(buf, rr.RDOffset+2)
	if err != nil {
		return SRVRData{}, err
	}
	port, err := ReadUint16(buf, rr.RDOffset+4)
	if err != nil {
		return SRVRData{}, err
	}

	dest := make([]byte, MaxNameLength)
	written, _, err := ReadName(buf, rr.RDOffset+6, dest)
	if err != nil {
		return SRVRData{}, err
	}

	target, err := DNLabelToString(dest[:written])
	if err != nil {
		return SRVRData{}, err
	}

	return SRVRData{Priority: priority, Weight: weight, Port: port, Target: target, TargetLabelLen: written}, nil
}
