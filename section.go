package resolvers

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/asyncresolve/resolvers/internal/bestserver"
	"github.com/asyncresolve/resolvers/internal/concurrencytracker"
	"github.com/asyncresolve/resolvers/internal/wiremsg"
)

// Section is a named pool of nameservers sharing one dispatcher, one lock, and one configuration.
// All mutation of its resolutions, query-id index, and nameserver counters happens with lock held;
// the dispatcher and response processor each run their full pass without releasing it.
type Section struct {
	id     string
	config Config

	lock sync.Mutex // guards everything below, plus server.lock is always acquired inside it

	handles []*nameserverHandle
	best    bestserver.Manager
	logger  *log.Logger

	curr     []*Resolution // in-flight, FIFO by last_query
	wait     []*Resolution // idle/cached
	queryIDs map[uint16]*Resolution

	rng *xorshiftRNG

	nextUUID uint64

	inFlight concurrencytracker.Counter

	closed bool
	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSection constructs a Section bound to the given nameservers and configuration, and starts its
// dispatcher goroutine. Callers must call Close when finished.
func NewSection(id string, nameservers []Nameserver, config Config) (*Section, error) {
	if len(nameservers) == 0 {
		return nil, ErrNoNameservers
	}

	handles := make([]*nameserverHandle, 0, len(nameservers))
	servers := make([]bestserver.Server, 0, len(nameservers))
	for _, ns := range nameservers {
		h := newNameserverHandle(ns)
		handles = append(handles, h)
		servers = append(servers, h)
	}

	mgr, err := newBestServerManager(config.SelectAlgorithm, servers)
	if err != nil {
		return nil, fmt.Errorf("resolvers: section %q: %w", id, err)
	}

	s := &Section{
		id:       id,
		config:   config,
		handles:  handles,
		best:     mgr,
		logger:   log.New(io.Discard, "", 0),
		queryIDs: make(map[uint16]*Resolution),
		rng:      newXorshiftRNG(),
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go s.dispatchLoop()

	return s, nil
}

func newBestServerManager(algo string, servers []bestserver.Server) (bestserver.Manager, error) {
	switch algo {
	case string(bestserver.LatencyAlgorithm):
		return bestserver.NewLatency(bestserver.DefaultLatencyConfig, servers)
	default:
		return bestserver.NewTraditional(bestserver.TraditionalConfig{}, servers)
	}
}

// SetLogger directs the section's notices (query-id exhaustion and the like) to l. The default is
// to discard them; a nil l restores that.
func (s *Section) SetLogger(l *log.Logger) {
	s.lock.Lock()
	s.logger = l
	s.lock.Unlock()
}

func (s *Section) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Name satisfies the reporter.Reporter interface used by the surrounding application to log
// periodic statistics.
func (s *Section) Name() string {
	return s.id
}

// Report renders a one-line-per-nameserver summary of send/response counters, in the same spirit
// as the Reporter contract the rest of this module's ambient tooling uses.
func (s *Section) Report(resetCounters bool) string {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := ""
	for _, h := range s.handles {
		c := h.snapshot(resetCounters)
		out += fmt.Sprintf("%s: sent=%d sndError=%d valid=%d nx=%d refused=%d timeout=%d invalid=%d truncated=%d tooBig=%d outdated=%d other=%d\n",
			h.Name(), c.sent, c.sndError, c.valid, c.nx, c.refused, c.timeout, c.invalid, c.truncated, c.tooBig, c.outdated, c.other)
	}
	out += fmt.Sprintf("peak_concurrency=%d\n", s.inFlight.Peak(resetCounters))

	return out
}

// Close stops the dispatcher goroutine. Resolutions already linked are abandoned; it is the
// caller's responsibility to have unlinked every Requester first if a clean shutdown matters.
func (s *Section) Close() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	s.lock.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Section) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// LinkResolution implements C7/C2's pick_resolution plus requester registration: it finds or
// creates a Resolution for (owner.Hostname(), owner.PreferredFamily()) and attaches a new Requester
// for owner to it.
func (s *Section) LinkResolution(owner Owner) (*Requester, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.linkResolutionLocked(owner)
}

// linkResolutionLocked is LinkResolution's body, callable from code that already holds
// section.lock (the SRV materialization path, in particular).
func (s *Section) linkResolutionLocked(owner Owner) (*Requester, error) {
	if s.closed {
		return nil, ErrSectionClosed
	}

	hostname := owner.Hostname()
	if hostname == "" {
		return nil, ErrNoHostname
	}
	if !wiremsg.ValidHostname(hostname) {
		return nil, ErrInvalidHostname
	}

	qtype := preferredQueryType(owner)

	res := s.findResolution(hostname, qtype)
	if res == nil {
		res = s.newResolution(hostname, qtype)
		s.wait = append(s.wait, res)
	}

	req := &Requester{owner: owner, resolution: res}
	res.requesters = append(res.requesters, req)

	s.wake()

	return req, nil
}

// UnlinkResolution removes req from its Resolution's requester list. If safe is true and req was
// the last requester, the Resolution is reset in place (name cleared, answers purged) rather than
// freed outright, matching the safe-unlink variant used when unlinking from inside a callback.
func (s *Section) UnlinkResolution(req *Requester, safe bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.unlinkResolutionLocked(req, safe)
}

// unlinkResolutionLocked is UnlinkResolution's body, callable from code that already holds
// section.lock.
func (s *Section) unlinkResolutionLocked(req *Requester, safe bool) {
	res := req.resolution
	if res == nil {
		return
	}

	for i, r := range res.requesters {
		if r == req {
			res.requesters = append(res.requesters[:i], res.requesters[i+1:]...)
			break
		}
	}
	req.resolution = nil

	if len(res.requesters) == 0 {
		if safe {
			res.reset()
		} else {
			s.freeResolution(res)
		}
		return
	}

	if res.hostname == "" {
		res.adoptHostnameFrom(res.requesters[0])
	}
}

// TriggerResolution wakes the dispatcher if res is stale or not currently VALID; a fresh VALID
// result within its hold window is a cache hit and this call is a no-op.
func (s *Section) TriggerResolution(req *Requester) {
	s.lock.Lock()
	res := req.resolution
	stale := res == nil || res.status != StatusValid || res.isStale(s.config, time.Now())
	s.lock.Unlock()

	if stale {
		s.wake()
	}
}

func (s *Section) findResolution(hostname string, qtype RecordType) *Resolution {
	for _, res := range s.curr {
		if res.matches(hostname, qtype) {
			return res
		}
	}
	for _, res := range s.wait {
		if res.matches(hostname, qtype) {
			return res
		}
	}
	return nil
}

func (s *Section) newResolution(hostname string, qtype RecordType) *Resolution {
	s.nextUUID++
	return &Resolution{
		uuid:               s.nextUUID,
		hostname:           hostname,
		preferredQueryType: qtype,
		queryType:          qtype,
		status:             StatusNone,
		step:               stepNone,
		lastValid:          time.Now(),
	}
}

func (s *Section) freeResolution(res *Resolution) {
	s.removeFromLists(res)
	if res.queryID != nil {
		delete(s.queryIDs, *res.queryID)
	}
	if res.step == stepRunning {
		s.inFlight.Done()
	}
}

func (s *Section) removeFromLists(res *Resolution) {
	s.curr = removeResolution(s.curr, res)
	s.wait = removeResolution(s.wait, res)
}

func removeResolution(list []*Resolution, res *Resolution) []*Resolution {
	for i, r := range list {
		if r == res {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func preferredQueryType(owner Owner) RecordType {
	switch owner.Kind() {
	case OwnerSRV:
		return RecordSRV
	default:
		switch owner.PreferredFamily() {
		case FamilyV6:
			return RecordAAAA
		default:
			return RecordA
		}
	}
}
