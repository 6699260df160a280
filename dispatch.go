package resolvers

import "time"

// dispatchLoop is the Section's single background goroutine: a recomputed-deadline timer rather
// than a fixed-period ticker, matching the "minimum of several next-due times" scheduling rule.
func (s *Section) dispatchLoop() {
	defer close(s.doneCh)

	timer := time.NewTimer(s.config.Timeout.Resolve)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.wakeCh:
			if !timer.Stop() {
				drainTimer(timer)
			}
		case <-timer.C:
		}

		next := s.tick(time.Now())

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer.Reset(delay)
	}
}

func drainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// tick runs one full dispatcher pass under section.lock and returns the next wake-up time.
func (s *Section) tick(now time.Time) time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.sweepCurr(now)
	s.sweepWait(now)

	return s.nextWake(now)
}

// sweepCurr walks the in-flight list in FIFO last_query order, stopping at the first resolution
// whose retry timeout has not yet elapsed (the list is time-ordered, so nothing after it can be due
// either).
func (s *Section) sweepCurr(now time.Time) {
	retryTimeout := s.config.Timeout.Retry

	i := 0
	for i < len(s.curr) {
		res := s.curr[i]

		if len(res.requesters) == 0 {
			s.freeResolution(res)
			continue
		}

		if now.Before(res.lastQuery.Add(retryTimeout)) {
			break
		}

		s.handleExpiredAttempt(res, now)
		if i < len(s.curr) && s.curr[i] == res {
			i++ // still in flight (retry or fallback); a terminal outcome removed it from curr
		}
	}
}

// handleExpiredAttempt applies the retry/fallback rules to a resolution whose current attempt
// has timed out.
func (s *Section) handleExpiredAttempt(res *Resolution, now time.Time) {
	if res.nbResponses == res.nbQueries && s.tryFallback(res, now) {
		return
	}

	if res.try > 0 {
		s.retry(res, now)
		return
	}

	status := StatusOther
	if res.nbResponses == 0 {
		status = StatusTimeout
		server, _ := s.best.Best()
		server.(*nameserverHandle).recordTimeout()
	}

	s.transitionToWait(res, status, now)
	notifyFailed(res, status)
}

// sweepWait walks the idle/cached list, re-triggering any resolution whose cache hold has expired.
func (s *Section) sweepWait(now time.Time) {
	i := 0
	for i < len(s.wait) {
		res := s.wait[i]

		if len(res.requesters) == 0 {
			s.wait = append(s.wait[:i:i], s.wait[i+1:]...)
			continue
		}

		if !res.lastResolution.IsZero() && now.Before(res.lastResolution.Add(s.config.holdFor(res.status))) {
			i++
			continue
		}

		if err := s.runResolution(res, now); err != nil {
			if err == ErrNoQueryID {
				s.logf("resolvers: %s: %q: %v", s.id, res.hostname, err)
			}
			res.lastResolution = now
			i++
			continue
		}

		s.wait = append(s.wait[:i:i], s.wait[i+1:]...)
		s.curr = append(s.curr, res)
	}
}

// nextWake computes the minimum of: now+timeout.resolve, the head of curr's next retry deadline,
// and every wait entry's next resolve deadline.
func (s *Section) nextWake(now time.Time) time.Time {
	next := now.Add(s.config.Timeout.Resolve)

	if len(s.curr) > 0 {
		head := s.curr[0]
		due := head.lastQuery.Add(s.config.Timeout.Retry)
		if due.Before(next) {
			next = due
		}
	}

	for _, res := range s.wait {
		if res.lastResolution.IsZero() {
			continue
		}
		due := res.lastResolution.Add(s.config.holdFor(res.status))
		if due.Before(next) {
			next = due
		}
	}

	return next
}
