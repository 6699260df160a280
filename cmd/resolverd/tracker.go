package main

import (
	"fmt"
	"sync"

	"github.com/asyncresolve/resolvers"
)

// tracker is the simplest possible Owner: it just prints whatever the resolver core tells it about
// one hostname, and remembers the most recently reported Status for the status report.
type tracker struct {
	hostname string

	mu     sync.Mutex
	status resolvers.Status
}

func newTracker(hostname string) *tracker { return &tracker{hostname: hostname} }

func (t *tracker) Kind() resolvers.OwnerKind        { return resolvers.OwnerTrack }
func (t *tracker) Hostname() string                 { return t.hostname }
func (t *tracker) PreferredFamily() resolvers.Family { return resolvers.FamilyUnspec }

func (t *tracker) OnResolved(r *resolvers.Requester, _ any) {
	t.mu.Lock()
	t.status = resolvers.StatusValid
	t.mu.Unlock()

	if cfg.verbose {
		fmt.Fprintln(stdout, "resolved:", t.hostname)
	}
}

func (t *tracker) OnFailed(r *resolvers.Requester, status resolvers.Status) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()

	if cfg.verbose {
		fmt.Fprintln(stdout, "failed:", t.hostname, status)
	}
}

func (t *tracker) Report(resetCounters bool) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%s: %s", t.hostname, t.status)
}

func (t *tracker) Name() string { return "tracker:" + t.hostname }
