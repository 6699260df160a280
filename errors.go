package resolvers

import "errors"

// Sentinel errors returned by the public API. Callers match these with errors.Is.
var (
	ErrNoNameservers   = errors.New("resolvers: section has no nameservers")
	ErrNoHostname      = errors.New("resolvers: owner has no hostname to resolve")
	ErrInvalidHostname = errors.New("resolvers: hostname fails DNS label validation")
	ErrSectionClosed   = errors.New("resolvers: section is closed")
	ErrNoQueryID       = errors.New("resolvers: exhausted attempts allocating a free query id")
)
