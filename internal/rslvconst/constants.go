/*
Package rslvconst provides the common default values and protocol limits used across the resolvers
packages. Usage is to call the global Get() function which returns the Constants by value ensuring
that any modifications made (accidental or otherwise) will not affect other callers.

Typical usage:

    consts := rslvconst.Get()
    fmt.Println("Default hold for valid answers is", consts.DefaultHoldValid)
*/
package rslvconst

import "time"

// Constants contains the resolver-subsystem-wide default values.
type Constants struct {
	DefaultNameserverPort string // Appended to bare IP nameserver addresses

	DefaultAcceptedPayloadSize int // EDNS0 UDP payload size advertised if unset
	MinAcceptedPayloadSize     int
	MaxAcceptedPayloadSize     int

	DefaultResolveRetries int // Number of attempts per resolution cycle

	DefaultTimeoutResolve time.Duration // Longest dispatcher sleep between passes
	DefaultTimeoutRetry   time.Duration // Per-attempt round trip budget

	DefaultHoldValid   time.Duration
	DefaultHoldNX      time.Duration
	DefaultHoldRefused time.Duration
	DefaultHoldTimeout time.Duration
	DefaultHoldOther   time.Duration
	DefaultHoldObsolete time.Duration // Zero disables the obsolescence sweep

	MaxNameCompressionDepth int // read_name pointer-chase cap
	MaxLabelLength          int
	MaxNameLength           int

	QueryIDGenerationAttempts int // Attempts before giving up on a free 16-bit id

	DNSHeaderSize int
	DNSClassINET  uint16
}

var readOnlyConstants *Constants

func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		DefaultNameserverPort: "53",

		DefaultAcceptedPayloadSize: 512,
		MinAcceptedPayloadSize:     12,
		MaxAcceptedPayloadSize:     8192,

		DefaultResolveRetries: 3,

		DefaultTimeoutResolve: 1 * time.Second,
		DefaultTimeoutRetry:   1 * time.Second,

		DefaultHoldValid:    10_000 * time.Millisecond,
		DefaultHoldNX:       30_000 * time.Millisecond,
		DefaultHoldRefused:  30_000 * time.Millisecond,
		DefaultHoldTimeout:  30_000 * time.Millisecond,
		DefaultHoldOther:    30_000 * time.Millisecond,
		DefaultHoldObsolete: 0,

		MaxNameCompressionDepth: 100,
		MaxLabelLength:          63,
		MaxNameLength:           255,

		QueryIDGenerationAttempts: 100,

		DNSHeaderSize: 12,
		DNSClassINET:  1,
	}
}

// Get returns a copy of the read-only Constants struct. Callers are free to keep and even modify
// their copy without affecting anyone else's.
func Get() Constants {
	if readOnlyConstants == nil {
		createReadOnlyConstants()
	}

	return *readOnlyConstants
}

func init() {
	createReadOnlyConstants()
}
