package resolvers

import (
	"time"

	"github.com/asyncresolve/resolvers/internal/rslvconst"
)

// step is a Resolution's place in its own lifecycle: NONE (idle, cached, lives on section.wait) or
// RUNNING (a query is in flight, lives on section.curr).
type step int

const (
	stepNone step = iota
	stepRunning
)

// Resolution is one logical name lookup shared by every coalesced Requester asking for the same
// (hostname, preferred query type) pair.
type Resolution struct {
	uuid uint64

	hostname           string
	preferredQueryType RecordType
	queryType          RecordType // current attempt; may differ from preferred during fallback

	step   step
	status Status

	try int // remaining attempts this resolution cycle

	queryID *uint16 // non-nil iff step == stepRunning

	lastQuery      time.Time
	lastResolution time.Time
	lastValid      time.Time

	nbQueries   int
	nbResponses int

	fallbackUsed bool // at most one A<->AAAA fallback per try cycle

	requesters []*Requester

	store answerStore
}

func (r *Resolution) matches(hostname string, qtype RecordType) bool {
	return r.preferredQueryType == qtype && normalizeName(r.hostname) == normalizeName(hostname)
}

func (r *Resolution) isStale(cfg Config, now time.Time) bool {
	if r.lastResolution.IsZero() {
		return true
	}
	return now.After(r.lastResolution.Add(cfg.holdFor(r.status)))
}

// reset returns a Resolution to its nameless, answerless post-safe-unlink state; it stays on
// whichever list it was already on (the caller, UnlinkResolution, decides whether to instead free
// it outright).
func (r *Resolution) reset() {
	r.hostname = ""
	r.store = answerStore{}
	r.status = StatusNone
}

// adoptHostnameFrom transfers driving-requester status to an arbitrary surviving requester after
// the one that owned hostname_dn unlinks, matching the registry's ownership-transfer rule.
func (r *Resolution) adoptHostnameFrom(req *Requester) {
	r.hostname = req.owner.Hostname()
}

// runResolution implements the NONE -> RUNNING transition: only if hostname is still present.
// Callers (the dispatcher) must hold section.lock, and move res from wait to curr when it returns
// nil.
func (s *Section) runResolution(res *Resolution, now time.Time) error {
	if res.hostname == "" {
		return ErrNoHostname
	}

	id, err := s.rng.nextQueryID(s.queryIDs, rslvconst.Get().QueryIDGenerationAttempts)
	if err != nil {
		return err
	}

	res.try = s.config.Retries
	res.queryType = res.preferredQueryType
	res.queryID = &id
	res.fallbackUsed = false
	s.queryIDs[id] = res
	res.step = stepRunning
	s.inFlight.Add()

	s.sendQuery(res, now)
	res.try--

	return nil
}

// sendQuery encodes and sends one query for res's current queryType to whichever nameserver the
// section's best-server Manager currently judges best, and stamps last_query/nb_queries. Each call
// begins a new attempt, so both ack counters restart at zero; nbQueries only counts queries
// actually on the wire. A send failure only increments that nameserver's error counter; it is
// never fatal.
func (s *Section) sendQuery(res *Resolution, now time.Time) {
	res.nbQueries = 0
	res.nbResponses = 0

	name, err := encodeName(res.hostname)
	if err != nil {
		return // ErrInvalidHostname would have been caught at link time
	}

	server, _ := s.best.Best()
	handle := server.(*nameserverHandle)

	buf := make([]byte, s.config.AcceptedPayloadSize)
	n, err := buildQuery(buf, *res.queryID, res.queryType, s.config.AcceptedPayloadSize, name)
	if err != nil {
		return
	}

	start := now
	sendErr := handle.send(buf[:n])
	s.best.Result(handle, sendErr == nil, now, time.Since(start))

	if sendErr == nil {
		res.nbQueries++
	} else {
		s.logf("resolvers: %s: send to %s failed: %v", s.id, handle.Name(), sendErr)
	}

	res.lastQuery = now
}

// transitionToWait moves res from curr to wait with the given terminal status, clearing its
// in-flight bookkeeping. Callers must hold section.lock.
func (s *Section) transitionToWait(res *Resolution, status Status, now time.Time) {
	if res.queryID != nil {
		delete(s.queryIDs, *res.queryID)
		res.queryID = nil
	}
	res.step = stepNone
	res.status = status
	res.lastResolution = now
	if status == StatusValid {
		res.lastValid = now
	}
	s.inFlight.Done()

	s.curr = removeResolution(s.curr, res)
	if !containsResolution(s.wait, res) {
		s.wait = append(s.wait, res)
	}
}

func containsResolution(list []*Resolution, res *Resolution) bool {
	for _, r := range list {
		if r == res {
			return true
		}
	}
	return false
}

// tryFallback implements the RUNNING -> RUNNING (query-type fallback) transition: switches an
// A<->AAAA resolution to the opposite Family without spending a try, at most once per cycle.
// Reports whether a fallback was applied.
func (s *Section) tryFallback(res *Resolution, now time.Time) bool {
	if res.fallbackUsed {
		return false
	}
	if res.preferredQueryType != res.queryType {
		return false
	}
	if res.preferredQueryType != RecordA && res.preferredQueryType != RecordAAAA {
		return false
	}

	if res.preferredQueryType == RecordA {
		res.queryType = RecordAAAA
	} else {
		res.queryType = RecordA
	}
	res.fallbackUsed = true

	s.sendQuery(res, now)

	return true
}

// retry implements the RUNNING -> RUNNING (retry) transition: reset to the preferred query type,
// spend a try, and re-send.
func (s *Section) retry(res *Resolution, now time.Time) {
	res.queryType = res.preferredQueryType
	res.fallbackUsed = false
	s.sendQuery(res, now)
	res.try--
}

// notifyResolved invokes OnResolved for every requester, in list order.
func notifyResolved(res *Resolution) {
	for _, req := range res.requesters {
		req.owner.OnResolved(req, nil)
	}
}

// notifyFailed invokes OnFailed for every requester, in list order.
func notifyFailed(res *Resolution, status Status) {
	for _, req := range res.requesters {
		req.owner.OnFailed(req, status)
	}
}
