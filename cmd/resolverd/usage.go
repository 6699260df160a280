package main

import (
	"fmt"
	"io"
	"text/template"
)

const usageMessageTemplate = `
NAME
          {{.ProgramName}} -- a stand-alone driver for the asyncresolve/resolvers stub-resolver core

SYNOPSIS
          {{.ProgramName}} [options] hostname...

DESCRIPTION
          {{.ProgramName}} links one Requester per hostname argument against a single Section and
          keeps them resolved for as long as it runs, printing a periodic status report of every
          nameserver's counters and every tracked hostname's last Status.

          Nameservers are supplied with repeated -ns flags, each either host:port (plain UDP) or a
          https:// URL (DNS over HTTPS).
`

type usageVars struct {
	ProgramName string
}

func usage(w io.Writer) {
	t := template.Must(template.New("usage").Parse(usageMessageTemplate))
	if err := t.Execute(w, usageVars{ProgramName: programName}); err != nil {
		fmt.Fprintln(w, "resolverd: usage template error:", err)
	}
}
