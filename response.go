package resolvers

import (
	"net"
	"time"

	"github.com/asyncresolve/resolvers/internal/wiremsg"
)

const rcodeNoError = 0
const rcodeNXDomain = 3
const rcodeRefused = 5

// minRecordSize bounds the answer-count sanity check: a response claiming more answers than could
// possibly fit in the remaining payload (at this minimum size each) is structurally invalid.
const minRecordSize = 11 // name(1 root)+type(2)+class(2)+ttl(4)+rdlength(2)

// ProcessResponse decodes one datagram received from the nameserver at nsIndex and merges it into
// whichever Resolution its query id identifies. It is the sole entry point the I/O layer calls on
// readability; this package never reads a socket itself.
func (s *Section) ProcessResponse(nsIndex int, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if nsIndex < 0 || nsIndex >= len(s.handles) {
		return ErrNoNameservers
	}
	handle := s.handles[nsIndex]
	now := time.Now()

	if len(data) > int(s.config.AcceptedPayloadSize) {
		handle.countTooBig()
		return nil // dropped before we even know which resolution it was for
	}

	hdr, err := wiremsg.ReadHeader(data)
	if err != nil {
		handle.countInvalid()
		return nil // header truncated, dropped
	}

	res, ok := s.queryIDs[hdr.ID]
	if !ok {
		handle.countOutdated()
		return nil // id not in flight, dropped
	}

	res.nbResponses++

	q, afterQuestion, code := validateHeader(data, hdr, res)
	if code == respValid || code == respANCountZero {
		code = s.parseAndMerge(data, hdr, q, afterQuestion, res, now, code)
	}

	handle.recordOutcome(code)

	if res.nbResponses < res.nbQueries && code != respValid {
		return nil // partial outcome: wait for the rest of this attempt's responses
	}

	s.finishAttempt(handle, res, code, now)

	return nil
}

// validateHeader performs the header-level checks up to (but not including) answer parsing: RCODE/qdcount
// classification and TC handling. It returns the decoded question so callers don't re-parse it.
func validateHeader(data []byte, hdr wiremsg.Header, res *Resolution) (wiremsg.Question, int, validationCode) {
	if hdr.QDCount != 1 {
		return wiremsg.Question{}, 0, respQueryCountError
	}

	q, afterQuestion, err := wiremsg.ReadQuestion(data, wiremsg.HeaderSize)
	if err != nil {
		return wiremsg.Question{}, 0, respInvalid
	}

	switch hdr.RCode {
	case rcodeNXDomain:
		return q, afterQuestion, respNXDomain
	case rcodeRefused:
		return q, afterQuestion, respRefused
	case rcodeNoError:
	default:
		return q, afterQuestion, respError
	}

	if hdr.TC && res.queryType != RecordSRV {
		return q, afterQuestion, respTruncated
	}

	maxAnswers := (len(data) - afterQuestion) / minRecordSize
	if int(hdr.ANCount) > maxAnswers+1 {
		return q, afterQuestion, respInvalid
	}

	if hdr.ANCount == 0 {
		return q, afterQuestion, respANCountZero
	}

	return q, afterQuestion, respValid
}

// parseAndMerge decodes the answer (and, for SRV, additional) sections and merges them into res's
// answer store. It returns the final classification, which may be downgraded from the header-level
// code (e.g. a CNAME chain error discovered mid-answer-section).
func (s *Section) parseAndMerge(data []byte, hdr wiremsg.Header, q wiremsg.Question, cursor int, res *Resolution, now time.Time, code validationCode) validationCode {
	previousName := ""
	cnameSeenWithoutFollowup := false

	for i := uint16(0); i < hdr.ANCount; i++ {
		rr, next, err := wiremsg.ReadRR(data, cursor)
		if err != nil {
			return respInvalid
		}
		cursor = next

		if previousName != "" {
			if normalizeName(rr.Name) != normalizeName(previousName) {
				return respCNAMEError
			}
			previousName = "" // the CNAME's target has now been matched by this record
		}

		item, isCNAME, target, err := decodeAnswerRR(data, rr)
		if err != nil {
			return respInvalid
		}

		if isCNAME {
			previousName = target
			cnameSeenWithoutFollowup = true
			if i == hdr.ANCount-1 {
				return respCNAMEError // last record in the answer section is a bare CNAME
			}
			continue
		}

		cnameSeenWithoutFollowup = false
		if item != nil {
			res.store.mergeOrAppend(item, now)
		}
	}

	if cnameSeenWithoutFollowup {
		return respCNAMEError
	}

	if res.queryType == RecordSRV {
		s.mergeAdditional(data, hdr, cursor, res, now)
	}

	s.checkResponse(res, now)

	if normalizeName(q.Name) != normalizeName(res.hostname) {
		return respWrongName
	}

	if code == respANCountZero {
		return respANCountZero
	}

	return respValid
}

// decodeAnswerRR decodes one answer-section RR into an AnswerItem, or reports it was a CNAME (whose
// target becomes the expected owner name of the next record) instead.
func decodeAnswerRR(data []byte, rr wiremsg.RR) (item *AnswerItem, isCNAME bool, cnameTarget string, err error) {
	rtype, known := recordTypeFromWire(rr.Type)
	if !known {
		return nil, false, "", nil
	}

	switch rtype {
	case RecordA:
		addr, derr := wiremsg.ReadRDataA(data, rr)
		if derr != nil {
			return nil, false, "", derr
		}
		return &AnswerItem{Type: RecordA, Name: rr.Name, Class: rr.Class, TTL: rr.TTL, Address: net.IP(addr[:])}, false, "", nil

	case RecordAAAA:
		addr, derr := wiremsg.ReadRDataAAAA(data, rr)
		if derr != nil {
			return nil, false, "", derr
		}
		return &AnswerItem{Type: RecordAAAA, Name: rr.Name, Class: rr.Class, TTL: rr.TTL, Address: net.IP(addr[:])}, false, "", nil

	case RecordCNAME:
		target, derr := wiremsg.ReadRDataName(data, rr)
		if derr != nil {
			return nil, false, "", derr
		}
		return nil, true, target, nil

	case RecordSRV:
		srv, derr := wiremsg.ReadRDataSRV(data, rr)
		if derr != nil {
			return nil, false, "", derr
		}
		return &AnswerItem{
			Type: RecordSRV, Name: rr.Name, Class: rr.Class, TTL: rr.TTL,
			Priority: srv.Priority, Weight: srv.Weight, Port: srv.Port, Target: srv.Target,
			DataLen: srv.TargetLabelLen,
		}, false, "", nil
	}

	return nil, false, "", nil
}

// mergeAdditional implements SRV-query additional-section glue handling. cursor points just past
// the answer section; the first loop reads past the NSCount authority records without using them,
// then each A/AAAA additional record is offered to attachGlue.
func (s *Section) mergeAdditional(data []byte, hdr wiremsg.Header, cursor int, res *Resolution, now time.Time) {
	for i := uint16(0); i < hdr.NSCount; i++ {
		_, next, err := wiremsg.ReadRR(data, cursor)
		if err != nil {
			return
		}
		cursor = next
	}

	for i := uint16(0); i < hdr.ARCount; i++ {
		rr, next, err := wiremsg.ReadRR(data, cursor)
		if err != nil {
			return
		}
		cursor = next

		rtype, known := recordTypeFromWire(rr.Type)
		if !known || (rtype != RecordA && rtype != RecordAAAA) {
			continue
		}

		var addr net.IP
		if rtype == RecordA {
			a, err := wiremsg.ReadRDataA(data, rr)
			if err != nil {
				continue
			}
			addr = net.IP(a[:])
		} else {
			a, err := wiremsg.ReadRDataAAAA(data, rr)
			if err != nil {
				continue
			}
			addr = net.IP(a[:])
		}

		glue := &AnswerItem{Type: rtype, Name: rr.Name, Class: rr.Class, TTL: rr.TTL, Address: addr}
		s.attachGlue(res, glue, now)
	}
}

// attachGlue binds glue to the SRV item whose target matches its owner name, deduplicating against
// an already-attached item of the same Family refreshed this same response. Dedup only applies
// against the SRV whose target the incoming record actually names; the same address may
// legitimately serve several targets and each keeps its own glue item.
func (s *Section) attachGlue(res *Resolution, glue *AnswerItem, now time.Time) {
	for _, srv := range res.store.ofType(RecordSRV) {
		if srv.ARItem != nil && srv.ARItem.Family() == glue.Family() && now.Equal(srv.ARItem.LastSeen) &&
			normalizeName(srv.Target) == normalizeName(glue.Name) {
			if srv.ARItem.Address.Equal(glue.Address) {
				srv.ARItem.LastSeen = now
				return
			}
			continue
		}
	}

	for _, srv := range res.store.ofType(RecordSRV) {
		if srv.ARItem == nil && normalizeName(srv.Target) == normalizeName(glue.Name) {
			glue.LastSeen = now
			srv.ARItem = glue
			return
		}
	}
}

// checkResponse runs the obsolescence sweep, unbinding any SRV slot whose
// backing answer item just aged out.
func (s *Section) checkResponse(res *Resolution, now time.Time) {
	removed := res.store.sweepObsolete(s.config.Hold.Obsolete, now)
	for _, item := range removed {
		if item.Type == RecordSRV {
			s.unbindSlotsFor(res, item)
		}
	}

	s.materializeSRV(res, now)
}

// finishAttempt delivers the outcome of a completed attempt. A VALID response finalizes the
// resolution successfully. Any other classification (NX, REFUSED, an empty answer section, a
// truncated non-SRV response) is an error outcome: it first tries the query-type fallback, then a
// plain retry if attempts remain, and only reports failure to requesters once both are exhausted.
func (s *Section) finishAttempt(handle *nameserverHandle, res *Resolution, code validationCode, now time.Time) {
	status := statusForCode(code)

	if status == StatusValid {
		s.transitionToWait(res, status, now)
		notifyResolved(res)
		return
	}

	if s.tryFallback(res, now) {
		return
	}

	if res.try > 0 {
		s.retry(res, now)
		return
	}

	s.transitionToWait(res, status, now)
	notifyFailed(res, status)
}

func statusForCode(code validationCode) Status {
	switch code {
	case respValid:
		return StatusValid
	case respNXDomain:
		return StatusNX
	case respRefused:
		return StatusRefused
	case respInvalid, respQueryCountError, respWrongName, respNoExpectedRecord, respCNAMEError:
		return StatusInvalid
	default:
		return StatusOther
	}
}
