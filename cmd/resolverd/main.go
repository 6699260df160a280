// resolverd is a minimal standalone driver for the asyncresolve/resolvers stub-resolver core: it
// links a tracked Requester for every hostname given on the command line against one Section and
// periodically reports on it, the way trustydns-proxy reports on its own DoH resolver.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/asyncresolve/resolvers"
	"github.com/asyncresolve/resolvers/internal/bestserver"
	"github.com/asyncresolve/resolvers/internal/osutil"
	"github.com/asyncresolve/resolvers/internal/reporter"
	"github.com/asyncresolve/resolvers/internal/rslvnet"

	"github.com/google/gops/agent"
)

const programName = "resolverd"

var (
	cfg     *config
	flagSet *flag.FlagSet

	stdout io.Writer
	stderr io.Writer

	startTime   = time.Now()
	stopChannel chan os.Signal
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", programName, ": ")
	fmt.Fprintln(stderr, args...)
	return 1
}

func mainInit(out, err io.Writer) {
	cfg = defaultConfig()
	stdout = out
	stderr = err
	stopChannel = make(chan os.Signal, 4)
	osutil.SignalNotify(stopChannel)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func parseCommandLine(args []string) error {
	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	flagSet.BoolVar(&cfg.help, "help", false, "Print usage and exit")
	flagSet.BoolVar(&cfg.verbose, "verbose", false, "Print a line per resolution event")
	flagSet.BoolVar(&cfg.gops, "gops", false, "Start github.com/google/gops agent")
	flagSet.Var(&cfg.nameservers, "ns", "Nameserver to query: host:port (UDP) or https://... (DoH); repeatable")
	flagSet.DurationVar(&cfg.statusInterval, "status-interval", cfg.statusInterval, "Interval between status reports")
	flagSet.IntVar(&cfg.retries, "retries", cfg.retries, "Attempts per resolution cycle")
	flagSet.IntVar(&cfg.payloadSize, "payload-size", cfg.payloadSize, "EDNS0 accepted UDP payload size")
	flagSet.DurationVar(&cfg.resolveTimeout, "resolve-timeout", cfg.resolveTimeout, "Longest interval between dispatcher passes")
	flagSet.DurationVar(&cfg.retryTimeout, "retry-timeout", cfg.retryTimeout, "Round trip budget for a single attempt")
	flagSet.StringVar(&cfg.selectAlgorithm, "select-algorithm", bestserver.TraditionalAlgorithm,
		fmt.Sprintf("Nameserver selection algorithm: %q or %q", bestserver.TraditionalAlgorithm, bestserver.LatencyAlgorithm))
	flagSet.StringVar(&cfg.setuidName, "setuid", "", "Drop privileges to this user after startup")
	flagSet.StringVar(&cfg.setgidName, "setgid", "", "Drop privileges to this group after startup")
	flagSet.StringVar(&cfg.chrootDir, "chroot", "", "Chroot to this directory after startup")

	return flagSet.Parse(args[1:])
}

func mainExecute(args []string) int {
	if err := parseCommandLine(args); err != nil {
		return 1
	}
	if cfg.help {
		usage(stdout)
		return 0
	}

	hostnames := flagSet.Args()

	if cfg.nameservers.NArg() == 0 {
		return fatal("at least one -ns nameserver is required")
	}
	if len(hostnames) == 0 {
		return fatal("at least one hostname argument is required")
	}

	if cfg.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fatal("gops:", err)
		}
		defer agent.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var nameservers []resolvers.Nameserver
	var closers []io.Closer
	for _, spec := range cfg.nameservers.Args() {
		ns, closer, err := dialNameserver(ctx, spec)
		if err != nil {
			return fatal(spec, err)
		}
		nameservers = append(nameservers, ns)
		closers = append(closers, closer)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	resolverConfig := resolvers.DefaultConfig()
	resolverConfig.Retries = cfg.retries
	resolverConfig.AcceptedPayloadSize = uint16(cfg.payloadSize)
	resolverConfig.Timeout.Resolve = cfg.resolveTimeout
	resolverConfig.Timeout.Retry = cfg.retryTimeout
	resolverConfig.SelectAlgorithm = cfg.selectAlgorithm

	section, err := resolvers.NewSection(programName, nameservers, resolverConfig)
	if err != nil {
		return fatal(err)
	}
	defer section.Close()

	for i, ns := range nameservers {
		go recvLoop(section, i, ns)
	}

	var reporters []reporter.Reporter
	reporters = append(reporters, section)

	for _, h := range hostnames {
		t := newTracker(h)
		if _, err := section.LinkResolution(t); err != nil {
			return fatal("link", h, err)
		}
		reporters = append(reporters, t)
	}

	if err := osutil.Constrain(cfg.setuidName, cfg.setgidName, cfg.chrootDir); err != nil {
		return fatal(err)
	}
	if cfg.verbose {
		fmt.Fprintf(stdout, "Constraints: %s\n", osutil.ConstraintReport())
	}

	nextStatusIn := nextInterval(time.Now(), cfg.statusInterval)

Running:
	for {
		select {
		case s := <-stopChannel:
			if osutil.IsSignalUSR1(s) {
				statusReport("User1", false, reporters)
				continue
			}
			if cfg.verbose {
				fmt.Fprintln(stdout, "\nSignal", s)
			}
			break Running

		case <-time.After(nextStatusIn):
			statusReport("Status", true, reporters)
			nextStatusIn = nextInterval(time.Now(), cfg.statusInterval)
		}
	}

	statusReport("Status", true, reporters)
	fmt.Fprintln(stdout, programName, "Exiting after", uptime())

	return 0
}

// recvLoop is the I/O layer side of the Nameserver abstraction: it blocks on ns.Recv and hands
// every datagram to the section by its index in the slice NewSection was built with, until Recv
// reports the handle closed. This is the only place in resolverd that calls ProcessResponse; the
// library itself never reads a socket.
func recvLoop(section *resolvers.Section, nsIndex int, ns resolvers.Nameserver) {
	buf := make([]byte, 8192)
	for {
		n, err := ns.Recv(buf)
		if err != nil {
			return
		}
		section.ProcessResponse(nsIndex, buf[:n])
	}
}

// dialNameserver builds a resolvers.Nameserver (plus something to Close it with) from a -ns
// argument: an https:// URL becomes a DoH transport, anything else is dialed as plain UDP.
func dialNameserver(ctx context.Context, spec string) (resolvers.Nameserver, io.Closer, error) {
	if strings.HasPrefix(spec, "https://") {
		ns, err := rslvnet.NewDoH(spec, spec, rslvnet.DoHConfig{})
		if err != nil {
			return nil, nil, err
		}
		return ns, ns, nil
	}

	ns, err := rslvnet.DialUDP(ctx, spec, spec, rslvnet.UDPConfig{})
	if err != nil {
		return nil, nil, err
	}
	return ns, ns, nil
}

func nextInterval(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

func uptime() string {
	return time.Since(startTime).Truncate(time.Second).String()
}

func statusReport(what string, resetCounters bool, reporters []reporter.Reporter) {
	fmt.Fprintln(stdout, "Status Up:", programName, uptime())
	for _, r := range reporters {
		reps := strings.Split(r.Report(resetCounters), "\n")
		for _, s := range reps {
			if len(s) > 0 {
				fmt.Fprintf(stdout, "%s %s: %s\n", what, r.Name(), s)
			}
		}
	}
}
