package resolvers

import (
	"sync"
)

// Nameserver is the abstract I/O handle the core dispatches queries through. Implementations own
// the actual socket (UDP, TCP, or a test double) and are never touched directly by the
// resolution/dispatch/response logic; this package only ever calls Send/Recv/Name.
type Nameserver interface {
	// Name identifies the nameserver for logging and as the bestserver.Server key. Two distinct
	// Nameserver values registered with the same Section must return distinct names.
	Name() string

	// Send writes buf to the nameserver. It is called with the Section's lock held, so it must
	// not block on network I/O for long. A short write is reported as an error; Send never
	// partially sends from the caller's point of view.
	Send(buf []byte) error

	// Recv blocks until a single datagram is available or the handle is closed, copies it into
	// buf and returns the number of bytes written. Implementations return a non-nil error once
	// closed.
	Recv(buf []byte) (int, error)
}

// counters tracks the per-nameserver statistics surfaced through Section.Report. Each handle
// guards its own set with mu, so a snapshot is consistent on its own; Section.Report still holds
// section.lock while it walks the handles.
type counters struct {
	sent        uint64
	sndError    uint64
	valid       uint64
	cnameError  uint64
	ancountZero uint64
	nx          uint64
	refused     uint64
	timeout     uint64
	invalid     uint64
	truncated   uint64
	tooBig      uint64
	outdated    uint64
	other       uint64
}

// nameserverHandle adapts a Nameserver plus its running counters to the bestserver.Server
// interface so a Section can delegate "which nameserver is best right now" to the bestserver
// package instead of reimplementing res_send(3)-style rotation or latency tracking itself.
type nameserverHandle struct {
	mu sync.Mutex // protects counters; Send/Recv themselves are the Nameserver's own concern

	ns  Nameserver
	cnt counters
}

func newNameserverHandle(ns Nameserver) *nameserverHandle {
	return &nameserverHandle{ns: ns}
}

// Name satisfies bestserver.Server. It also doubles as the Nameserver's identity for logging.
func (h *nameserverHandle) Name() string {
	return h.ns.Name()
}

func (h *nameserverHandle) send(buf []byte) error {
	err := h.ns.Send(buf)

	h.mu.Lock()
	h.cnt.sent++
	if err != nil {
		h.cnt.sndError++
	}
	h.mu.Unlock()

	return err
}

func (h *nameserverHandle) recordOutcome(code validationCode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch code {
	case respValid:
		h.cnt.valid++
	case respNXDomain:
		h.cnt.nx++
	case respRefused:
		h.cnt.refused++
	case respTruncated:
		h.cnt.truncated++
	case respCNAMEError:
		h.cnt.cnameError++
	case respANCountZero:
		h.cnt.ancountZero++
	case respInvalid, respQueryCountError, respWrongName, respNoExpectedRecord:
		h.cnt.invalid++
	default:
		h.cnt.other++
	}
}

func (h *nameserverHandle) recordTimeout() {
	h.mu.Lock()
	h.cnt.timeout++
	h.mu.Unlock()
}

// countTooBig, countInvalid and countOutdated account for datagrams dropped before they could be
// matched to a resolution, so recordOutcome never sees them.
func (h *nameserverHandle) countTooBig() {
	h.mu.Lock()
	h.cnt.tooBig++
	h.mu.Unlock()
}

func (h *nameserverHandle) countInvalid() {
	h.mu.Lock()
	h.cnt.invalid++
	h.mu.Unlock()
}

func (h *nameserverHandle) countOutdated() {
	h.mu.Lock()
	h.cnt.outdated++
	h.mu.Unlock()
}

// snapshot returns a copy of the current counters for reporting; resetCounters zeroes them
// afterwards, mirroring the Reporter contract used elsewhere in this module.
func (h *nameserverHandle) snapshot(resetCounters bool) counters {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.cnt
	if resetCounters {
		h.cnt = counters{}
	}
	return c
}
