package resolvers

import (
	"math"
	"net"
	"sync"
	"time"
)

// Slot is one pooled backend endpoint a SRVRequest can bind a resolved target to. Applications
// embed or wrap this (typically alongside their own server bookkeeping) and pass a pool of Slots to
// NewSRVRequest; this package only ever mutates the fields below, always under slotMu nested inside
// the owning Section's lock, matching the server.lock-inside-section.lock ordering rule.
type Slot struct {
	slotMu sync.Mutex

	request *SRVRequest
	slotReq *Requester // this slot's own per-target A/AAAA Requester, when DNS-driven

	target  string // target FQDN this slot is bound to; empty when unbound
	Port    uint16
	Address net.IP
	Weight  int // dns_weight remapped into [0, 256] via ceil(dns_weight/256)

	dnsResolutionDisabled bool // true once glue gave us an address directly
	down                  bool
}

// Bound reports whether this slot currently has a target.
func (sl *Slot) Bound() bool {
	sl.slotMu.Lock()
	defer sl.slotMu.Unlock()
	return sl.target != ""
}

// Kind satisfies Owner: a bound slot behaves like a backend server address once materialized.
func (sl *Slot) Kind() OwnerKind { return OwnerServer }

// Hostname satisfies Owner: it is the per-slot resolution's target, set by materializeSRV.
func (sl *Slot) Hostname() string {
	sl.slotMu.Lock()
	defer sl.slotMu.Unlock()
	return sl.target
}

func (sl *Slot) PreferredFamily() Family { return FamilyUnspec }

func (sl *Slot) OnResolved(r *Requester, _ any) {
	ip, _, _ := SelectAddress(&r.resolution.store, SelectOptions{FamilyPrio: FamilyUnspec}, sl, nil, FamilyUnspec)
	sl.slotMu.Lock()
	if ip != nil {
		sl.Address = ip
		sl.down = false
	}
	sl.slotMu.Unlock()
}

func (sl *Slot) OnFailed(r *Requester, status Status) {
	sl.slotMu.Lock()
	sl.down = true
	sl.slotMu.Unlock()
}

// SRVRequest is a standing SRV lookup that materializes its answers onto a fixed pool of Slots.
type SRVRequest struct {
	fqdn  string
	slots []*Slot

	requester *Requester
}

// NewSRVRequest links a standing SRV lookup for fqdn against section, to be materialized onto
// slots as answers arrive.
func NewSRVRequest(section *Section, fqdn string, slots []*Slot) (*SRVRequest, error) {
	sr := &SRVRequest{fqdn: fqdn, slots: slots}
	for _, sl := range slots {
		sl.request = sr
	}

	req, err := section.LinkResolution(sr)
	if err != nil {
		return nil, err
	}
	sr.requester = req

	return sr, nil
}

func (sr *SRVRequest) Kind() OwnerKind           { return OwnerSRV }
func (sr *SRVRequest) Hostname() string          { return sr.fqdn }
func (sr *SRVRequest) PreferredFamily() Family   { return FamilyUnspec }
func (sr *SRVRequest) OnResolved(*Requester, any) {}
func (sr *SRVRequest) OnFailed(*Requester, Status) {}

// dnsWeightToSlotWeight maps a SRV record's [0, 65535] weight to the slot's [0, 256] range via
// ceil(dns_weight/256), so any non-zero DNS weight yields at least 1 and zero stays zero.
func dnsWeightToSlotWeight(dnsWeight uint16) int {
	return int(math.Ceil(float64(dnsWeight) / 256.0))
}

// findSlot returns the slot already bound to (port, target), or failing that, the first unbound
// slot owned by sr.
func (sr *SRVRequest) findSlot(port uint16, target string) *Slot {
	var firstFree *Slot
	for _, sl := range sr.slots {
		if sl.Bound() && sl.Port == port && normalizeName(sl.Hostname()) == normalizeName(target) {
			return sl
		}
		if firstFree == nil && !sl.Bound() {
			firstFree = sl
		}
	}
	return firstFree
}

// materializeSRV binds each live SRV answer item in res onto a pool
// slot, propagating glue addresses or kicking off a per-slot DNS resolution. Callers must hold
// section.lock; the owner of res must be a SRVRequest.
func (s *Section) materializeSRV(res *Resolution, now time.Time) {
	var sr *SRVRequest
	for _, req := range res.requesters {
		if owner, ok := req.owner.(*SRVRequest); ok {
			sr = owner
			break
		}
	}
	if sr == nil {
		return
	}

	for _, item := range res.store.ofType(RecordSRV) {
		slot := sr.findSlot(item.Port, item.Target)
		if slot == nil {
			continue
		}

		slot.slotMu.Lock()
		slot.Port = item.Port
		slot.Weight = dnsWeightToSlotWeight(item.Weight)
		wasBound := normalizeName(slot.target) == normalizeName(item.Target)
		slot.target = item.Target
		slot.slotMu.Unlock()

		if item.ARItem != nil {
			slot.slotMu.Lock()
			slot.Address = item.ARItem.Address
			slot.dnsResolutionDisabled = true
			slot.down = false
			oldReq := slot.slotReq
			slot.slotReq = nil
			slot.slotMu.Unlock()

			if oldReq != nil {
				s.unlinkResolutionLocked(oldReq, false)
			}
			continue
		}

		if wasBound {
			continue // already resolving this target on its own cycle
		}

		slot.slotMu.Lock()
		slot.dnsResolutionDisabled = false
		slot.slotMu.Unlock()

		req, err := s.linkResolutionLocked(slot)
		if err == nil {
			slot.slotMu.Lock()
			slot.slotReq = req
			slot.slotMu.Unlock()
		}
	}
}

// unbindSlot clears a slot's target and releases its per-slot resolution, implementing the
// obsolescence sweep's slot-unbinding rule.
func (s *Section) unbindSlot(sl *Slot) {
	sl.slotMu.Lock()
	req := sl.slotReq
	sl.target = ""
	sl.Port = 0
	sl.Address = nil
	sl.Weight = 0
	sl.dnsResolutionDisabled = false
	sl.slotReq = nil
	sl.down = true
	sl.slotMu.Unlock()

	if req != nil {
		s.unlinkResolutionLocked(req, false)
	}
}

// unbindSlotsFor implements the slot-unbinding half of the obsolescence sweep: every slot currently
// bound to the evicted SRV item's (port, target) is cleared and marked down.
func (s *Section) unbindSlotsFor(res *Resolution, evicted *AnswerItem) {
	for _, req := range res.requesters {
		sr, ok := req.owner.(*SRVRequest)
		if !ok {
			continue
		}
		for _, sl := range sr.slots {
			if sl.Bound() && sl.Port == evicted.Port && normalizeName(sl.Hostname()) == normalizeName(evicted.Target) {
				s.unbindSlot(sl)
			}
		}
	}
}
