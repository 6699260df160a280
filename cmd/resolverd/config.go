package main

import (
	"time"

	"github.com/asyncresolve/resolvers/internal/flagutil"
)

// config holds every command-line-settable knob for resolverd. It mirrors the shape of the
// library's own Config but adds the process-level settings (status reporting, gops, privilege
// constraints) that only
// make sense for a standalone daemon rather than an embedded Section.
type config struct {
	help    bool
	verbose bool
	gops    bool

	nameservers flagutil.StringValue // repeated -ns host:port

	statusInterval time.Duration

	retries        int
	payloadSize    int
	resolveTimeout time.Duration
	retryTimeout   time.Duration

	selectAlgorithm string

	setuidName, setgidName, chrootDir string
}

func defaultConfig() *config {
	return &config{
		statusInterval: 30 * time.Second,
		retries:        3,
		payloadSize:    1232,
		resolveTimeout: 5 * time.Second,
		retryTimeout:   2 * time.Second,
	}
}
