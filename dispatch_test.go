package resolvers

import (
	"testing"
	"time"
)

func TestSweepWaitRunsDueResolutionAndSendsQuery(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	sec := newTestSection(t, testConfig(), ns)

	owner := &fakeOwner{hostname: "example.org", family: FamilyV4}
	req, err := sec.LinkResolution(owner)
	if err != nil {
		t.Fatalf("LinkResolution: %v", err)
	}

	now := time.Now()
	sec.tick(now)

	if ns.sentCount() != 1 {
		t.Fatalf("sentCount = %d, want 1", ns.sentCount())
	}
	if len(sec.curr) != 1 || len(sec.wait) != 0 {
		t.Fatalf("curr=%d wait=%d, want resolution moved to curr", len(sec.curr), len(sec.wait))
	}
	res := req.resolution
	if res.step != stepRunning {
		t.Error("step should be RUNNING once a query has been sent")
	}
	if res.queryID == nil {
		t.Fatal("queryID should be assigned while RUNNING")
	}
	if sec.queryIDs[*res.queryID] != res {
		t.Error("query-id index should map the assigned id back to this resolution")
	}
	if res.try != testConfig().Retries-1 {
		t.Errorf("try = %d, want %d after the first send", res.try, testConfig().Retries-1)
	}
}

func TestSweepWaitLeavesFreshCacheAlone(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	sec := newTestSection(t, testConfig(), ns)

	owner := &fakeOwner{hostname: "cached.example.org", family: FamilyV4}
	req, _ := sec.LinkResolution(owner)
	req.resolution.status = StatusValid
	req.resolution.lastResolution = time.Now()

	sec.tick(time.Now())

	if ns.sentCount() != 0 {
		t.Errorf("sentCount = %d, want 0: a fresh VALID cache entry must not be re-queried", ns.sentCount())
	}
	if len(sec.wait) != 1 || len(sec.curr) != 0 {
		t.Error("a fresh cache entry should stay on wait")
	}
}

func TestSweepWaitFreesResolutionsWithNoRequesters(t *testing.T) {
	sec := newTestSection(t, testConfig(), &fakeNameserver{name: "ns1"})

	res := sec.newResolution("orphan.example.org", RecordA)
	sec.wait = append(sec.wait, res)

	sec.tick(time.Now())

	if len(sec.wait) != 0 {
		t.Error("a resolution with no requesters should be freed by the next dispatcher tick")
	}
}

// TestHandleExpiredAttemptRetriesThenTimesOut exercises the case where no response of any kind
// ever arrives: every attempt sends one query and hears nothing back, so the nbResponses ==
// nbQueries fallback condition never holds (it requires every sent query to have been accounted
// for, which silence never satisfies) and every expiry is a plain retry until try is exhausted.
func TestHandleExpiredAttemptRetriesThenTimesOut(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	cfg := testConfig()
	sec := newTestSection(t, cfg, ns)

	owner := &fakeOwner{hostname: "noreply.example.org", family: FamilyV4}
	sec.LinkResolution(owner)

	now := time.Now()
	sec.tick(now) // initial send, try = cfg.Retries-1

	res := sec.curr[0]
	if res.queryType != RecordA {
		t.Fatalf("queryType = %v, want initial attempt to be the preferred type A", res.queryType)
	}

	wantTry := cfg.Retries - 1
	for wantTry > 0 {
		now = now.Add(cfg.Timeout.Retry + time.Millisecond)
		sec.tick(now)
		wantTry--
		if res.try != wantTry {
			t.Fatalf("try = %d, want %d", res.try, wantTry)
		}
		if res.queryType != RecordA {
			t.Fatalf("queryType = %v, want unchanged at A (no fallback without an accounted-for error)", res.queryType)
		}
	}

	// Final expiry: try == 0, no response ever arrived -> TIMEOUT.
	now = now.Add(cfg.Timeout.Retry + time.Millisecond)
	sec.tick(now)

	if res.step != stepNone {
		t.Fatal("resolution should have returned to NONE/wait after exhausting retries")
	}
	if res.status != StatusTimeout {
		t.Errorf("status = %v, want TIMEOUT", res.status)
	}
	if len(sec.curr) != 0 || len(sec.wait) != 1 {
		t.Errorf("curr=%d wait=%d, want the resolution moved back to wait", len(sec.curr), len(sec.wait))
	}
	got := owner.failedStatuses()
	if len(got) != 1 || got[0] != StatusTimeout {
		t.Errorf("OnFailed statuses = %v, want exactly [TIMEOUT]", got)
	}
}

// TestHandleExpiredAttemptFallsBackWhenAllSentQueriesAreAccountedFor exercises the dispatcher's
// fallback branch directly: once every query sent so far has a matching response (nbResponses ==
// nbQueries), a subsequent expiry on an unchanged preferred A/AAAA type switches family without
// spending a try.
func TestHandleExpiredAttemptFallsBackWhenAllSentQueriesAreAccountedFor(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	cfg := testConfig()
	sec := newTestSection(t, cfg, ns)

	owner := &fakeOwner{hostname: "accounted.example.org", family: FamilyV4}
	sec.LinkResolution(owner)

	now := time.Now()
	sec.tick(now)

	res := sec.curr[0]
	res.nbResponses = res.nbQueries // simulate every sent query having already been answered
	tryBefore := res.try

	now = now.Add(cfg.Timeout.Retry + time.Millisecond)
	sec.tick(now)

	if res.queryType != RecordAAAA {
		t.Fatalf("queryType = %v, want AAAA after fallback", res.queryType)
	}
	if res.try != tryBefore {
		t.Errorf("try = %d, want unchanged at %d: fallback must not spend a try", res.try, tryBefore)
	}
	if !res.fallbackUsed {
		t.Error("fallbackUsed should be set once a fallback has been applied this cycle")
	}
}

// TestSweepCurrAdvancesPastTerminalResolutions guards the in-place iteration: when an expired
// resolution is moved back to wait mid-sweep, the entry that slid into its slot must still be
// examined on this same pass.
func TestSweepCurrAdvancesPastTerminalResolutions(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	cfg := testConfig()
	cfg.Retries = 1
	sec := newTestSection(t, cfg, ns)

	o1 := &fakeOwner{hostname: "first.example.org", family: FamilyV4}
	o2 := &fakeOwner{hostname: "second.example.org", family: FamilyV4}
	sec.LinkResolution(o1)
	sec.LinkResolution(o2)

	now := time.Now()
	sec.tick(now) // both sent, try exhausted immediately with Retries=1

	now = now.Add(cfg.Timeout.Retry + time.Millisecond)
	sec.tick(now)

	if len(sec.curr) != 0 {
		t.Fatalf("curr = %d entries, want both expired resolutions finalized in one sweep", len(sec.curr))
	}
	if len(o1.failedStatuses()) != 1 || len(o2.failedStatuses()) != 1 {
		t.Errorf("failed callbacks o1=%d o2=%d, want exactly one each", len(o1.failedStatuses()), len(o2.failedStatuses()))
	}
}

// TestRetryResetsAttemptCounters pins the per-attempt accounting: each re-send starts a fresh
// nbQueries/nbResponses pair so a single response to the new attempt is never mistaken for a
// partial result of an older one.
func TestRetryResetsAttemptCounters(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	sec := newTestSection(t, testConfig(), ns)

	owner := &fakeOwner{hostname: "retry.example.org", family: FamilyV4}
	sec.LinkResolution(owner)

	now := time.Now()
	sec.tick(now)
	res := sec.curr[0]
	res.nbResponses = 1 // pretend something was heard last attempt

	sec.retry(res, now)

	if res.nbQueries != 1 || res.nbResponses != 0 {
		t.Errorf("nbQueries=%d nbResponses=%d after retry, want 1/0", res.nbQueries, res.nbResponses)
	}
}

func TestNextWakeIsMinimumOfAllDueTimes(t *testing.T) {
	cfg := testConfig()
	sec := newTestSection(t, cfg, &fakeNameserver{name: "ns1"})

	now := time.Now()

	running := sec.newResolution("running.example.org", RecordA)
	running.step = stepRunning
	running.lastQuery = now
	sec.curr = append(sec.curr, running)

	waiting := sec.newResolution("waiting.example.org", RecordA)
	waiting.lastResolution = now
	waiting.status = StatusValid
	sec.wait = append(sec.wait, waiting)

	next := sec.nextWake(now)

	wantFromCurr := now.Add(cfg.Timeout.Retry)
	wantFromWait := now.Add(cfg.holdFor(StatusValid))

	want := wantFromCurr
	if wantFromWait.Before(want) {
		want = wantFromWait
	}

	if !next.Equal(want) {
		t.Errorf("nextWake = %v, want %v", next, want)
	}
}
