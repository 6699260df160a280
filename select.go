package resolvers

import (
	"net"
)

// CheckIPFunc probes whether ip would conflict with some sibling slot already bound to owner; it
// is supplied by the caller (the backend-server model lives outside this package).
type CheckIPFunc func(owner Owner, ip net.IP, fam Family) (conflict bool)

// SelectOptions configures one call to SelectAddress.
type SelectOptions struct {
	FamilyPrio        Family // FamilyUnspec prefers AAAA over A when scores tie
	PreferredNetworks []*net.IPNet
	AcceptDuplicateIP bool
	CheckIP           CheckIPFunc
}

const maxSelectScore = 15

// SelectAddress scores every A/AAAA record currently held by store against opts and currentIP,
// returning the best candidate. A score of 15 (every bonus) with the winner equal to currentIP is
// reported as UpdNo without disturbing the store. Otherwise, if the winner differs from currentIP,
// the store is rotated head-to-tail so a subsequent call samples a different tied candidate.
func SelectAddress(store *answerStore, opts SelectOptions, owner Owner, currentIP net.IP, currentFamily Family) (net.IP, Family, UpdateCode) {
	candidates := store.ofType(RecordA)
	candidates = append(candidates, store.ofType(RecordAAAA)...)

	if len(candidates) == 0 {
		return nil, FamilyUnspec, UpdNoIPFound
	}

	var best *AnswerItem
	bestScore := -1

	for _, item := range candidates {
		fam := item.Family()
		score := 0

		if fam == opts.FamilyPrio {
			score += 8
		}

		if networkMatch(item.Address, fam, opts.PreferredNetworks) {
			score += 4
		}

		conflict := false
		if opts.CheckIP != nil {
			conflict = opts.CheckIP(owner, item.Address, fam)
		}
		if conflict {
			if !opts.AcceptDuplicateIP {
				continue
			}
		} else {
			score += 2
		}

		if currentIP != nil && item.Address.Equal(currentIP) {
			score += 1
		}

		if best == nil || score > bestScore || (score == bestScore && preferOnTie(item, best, opts.FamilyPrio)) {
			best = item
			bestScore = score
		}
	}

	if best == nil {
		return nil, FamilyUnspec, UpdNoIPFound
	}

	if bestScore == maxSelectScore && best.Address.Equal(currentIP) {
		return currentIP, currentFamily, UpdNo
	}

	if best.Address.Equal(currentIP) {
		return currentIP, currentFamily, UpdNo
	}

	store.rotate()

	return best.Address, best.Family(), UpdSRVIPNotFound
}

// preferOnTie breaks a score tie by preferring AAAA over A when the caller expressed no Family
// preference, matching the "UNSPEC prefers v6" rule; otherwise the first-seen candidate wins so
// this always returns false (leaving "best" as the earlier candidate, i.e. first-seen).
func preferOnTie(candidate, current *AnswerItem, prio Family) bool {
	if prio != FamilyUnspec {
		return false
	}
	return candidate.Family() == FamilyV6 && current.Family() == FamilyV4
}

func networkMatch(ip net.IP, fam Family, nets []*net.IPNet) bool {
	for _, n := range nets {
		if n == nil {
			continue
		}
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
