package resolvers

import (
	"time"

	"github.com/asyncresolve/resolvers/internal/bestserver"
	"github.com/asyncresolve/resolvers/internal/rslvconst"
)

// HoldConfig controls how long a completed answer is considered usable before a fresh resolution
// is triggered, keyed by the Status the resolution last finished with. Statuses without a field of
// their own (NONE, INVALID) use Other.
type HoldConfig struct {
	Valid    time.Duration
	NX       time.Duration
	Refused  time.Duration
	Timeout  time.Duration
	Other    time.Duration
	Obsolete time.Duration // 0 disables the obsolescence sweep entirely
}

// TimeoutConfig controls per-resolution and per-attempt time budgets.
type TimeoutConfig struct {
	Resolve time.Duration // Longest dispatcher sleep between passes; not a cache hold (see HoldConfig)
	Retry   time.Duration // Round trip budget given to a single nameserver attempt
}

// Config carries the tunables for a Section. Callers normally obtain one with DefaultConfig and
// override only the fields they care about.
type Config struct {
	AcceptedPayloadSize uint16 // EDNS0 UDP payload size this section advertises
	Retries             int    // Attempts per resolution cycle before giving up
	Hold                HoldConfig
	Timeout             TimeoutConfig

	// SelectAlgorithm picks which bestserver.Manager algorithm the section uses to order its
	// nameservers. bestserver.TraditionalAlgorithm mimics res_send(3): exhaust the current
	// nameserver, then move to the next. bestserver.LatencyAlgorithm reassesses by observed
	// round trip time and failure rate.
	SelectAlgorithm string
}

// DefaultConfig returns a Config populated from the resolver subsystem's package-wide defaults.
func DefaultConfig() Config {
	c := rslvconst.Get()

	return Config{
		AcceptedPayloadSize: uint16(c.DefaultAcceptedPayloadSize),
		Retries:             c.DefaultResolveRetries,
		Hold: HoldConfig{
			Valid:    c.DefaultHoldValid,
			NX:       c.DefaultHoldNX,
			Refused:  c.DefaultHoldRefused,
			Timeout:  c.DefaultHoldTimeout,
			Other:    c.DefaultHoldOther,
			Obsolete: c.DefaultHoldObsolete,
		},
		Timeout: TimeoutConfig{
			Resolve: c.DefaultTimeoutResolve,
			Retry:   c.DefaultTimeoutRetry,
		},
		SelectAlgorithm: bestserver.TraditionalAlgorithm,
	}
}

// holdFor returns the configured hold duration for a completed resolution's Status.
func (c Config) holdFor(s Status) time.Duration {
	switch s {
	case StatusValid:
		return c.Hold.Valid
	case StatusNX:
		return c.Hold.NX
	case StatusRefused:
		return c.Hold.Refused
	case StatusTimeout:
		return c.Hold.Timeout
	default:
		return c.Hold.Other
	}
}
