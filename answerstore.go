package resolvers

import (
	"net"
	"time"
)

// RecordType enumerates the RR types this resolver understands in an answer set.
type RecordType int

const (
	RecordA RecordType = iota
	RecordAAAA
	RecordCNAME
	RecordSRV
)

// AnswerItem is one canonical record kept across responses for a single Resolution. Records that
// recur in later responses update last_seen in place rather than being appended again; see
// equivalent.
type AnswerItem struct {
	Type RecordType

	Name   string // owner name, dotted form
	Target string // CNAME/SRV target, dotted form; empty for A/AAAA

	Class uint16
	TTL   uint32

	Address net.IP // A/AAAA only

	Priority uint16 // SRV only
	Weight   uint16 // SRV only
	Port     uint16 // SRV only
	DataLen  int    // SRV only: length of Target in wire label form, not RDLength

	LastSeen time.Time

	// ARItem is an Additional-Record glue address attached to an SRV item so a consumer can
	// avoid a second round trip. Owned exclusively by this item; freed with it.
	ARItem *AnswerItem
}

// Family returns the address Family of an A/AAAA AnswerItem.
func (a *AnswerItem) Family() Family {
	switch a.Type {
	case RecordA:
		return FamilyV4
	case RecordAAAA:
		return FamilyV6
	default:
		return FamilyUnspec
	}
}

// equivalent implements the dedupe rule from the response-processing algorithm: A/AAAA records
// match on Family and raw address bytes; SRV records match on (target, port, data length of the
// target in label form). CNAME items are never deduplicated against one another by this package
// because a resolution's answer_list holds at most the CNAME chain's terminal target.
func equivalent(a, b *AnswerItem) bool {
	if a.Type != b.Type {
		return false
	}

	switch a.Type {
	case RecordA, RecordAAAA:
		return a.Address.Equal(b.Address)
	case RecordSRV:
		return a.Target == b.Target && a.Port == b.Port && a.DataLen == b.DataLen
	default:
		return false
	}
}

// answerStore is the deduplicated bag of AnswerItems belonging to one Resolution.
type answerStore struct {
	items []*AnswerItem
}

// mergeOrAppend scans the store for an item equivalent to item; if found, refreshes its
// last_seen (and, for SRV, its weight) and drops item. Otherwise item is appended with last_seen
// set to now.
func (s *answerStore) mergeOrAppend(item *AnswerItem, now time.Time) {
	for _, existing := range s.items {
		if equivalent(existing, item) {
			existing.LastSeen = now
			if existing.Type == RecordSRV {
				existing.Weight = item.Weight
			}
			return
		}
	}
	item.LastSeen = now
	s.items = append(s.items, item)
}

// sweepObsolete removes any item whose last_seen predates now-hold, returning the removed items so
// callers (SRV slot unbinding in particular) can react. A zero hold disables the sweep entirely.
func (s *answerStore) sweepObsolete(hold time.Duration, now time.Time) []*AnswerItem {
	if hold <= 0 {
		return nil
	}

	var removed []*AnswerItem
	kept := s.items[:0]
	for _, item := range s.items {
		if now.Sub(item.LastSeen) > hold {
			removed = append(removed, item)
			continue
		}
		if item.ARItem != nil && now.Sub(item.ARItem.LastSeen) > hold {
			item.ARItem = nil
		}
		kept = append(kept, item)
	}
	s.items = kept

	return removed
}

// rotate moves the current head of the store to the tail, implementing the round-robin behavior
// SelectAddress relies on when it picks a new, non-sticky address.
func (s *answerStore) rotate() {
	if len(s.items) < 2 {
		return
	}
	head := s.items[0]
	s.items = append(s.items[1:], head)
}

// ofType returns every item of the given RecordType, in store order.
func (s *answerStore) ofType(t RecordType) []*AnswerItem {
	var out []*AnswerItem
	for _, item := range s.items {
		if item.Type == t {
			out = append(out, item)
		}
	}
	return out
}
