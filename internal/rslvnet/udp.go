// Package rslvnet supplies concrete Nameserver transports (UDP and DNS-over-HTTPS) so an
// application only has to dial a destination rather than implement the resolvers.Nameserver
// interface itself.
package rslvnet

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// UDPNameserver is a connected UDP socket to a single nameserver. Connecting (rather than using
// WriteTo/ReadFrom on an unconnected socket) means the kernel filters out datagrams from any
// address other than the nameserver itself, and Send/Recv reduce to plain Write/Read.
type UDPNameserver struct {
	name string
	conn *net.UDPConn
}

// UDPConfig controls how a UDPNameserver's socket is built.
type UDPConfig struct {
	// ReusePort enables SO_REUSEPORT on the local socket so several UDPNameservers (e.g. one
	// per worker goroutine) can share a source port without contending on one descriptor.
	ReusePort bool
}

// DialUDP connects to addr (host:port) and returns a Nameserver identified by name, which is
// normally addr itself but may be overridden for logging (e.g. to name a pool member distinctly).
func DialUDP(ctx context.Context, name, addr string, cfg UDPConfig) (*UDPNameserver, error) {
	dialer := net.Dialer{}
	if cfg.ReusePort {
		dialer.Control = func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		}
	}

	c, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("rslvnet: dial %s: %w", addr, err)
	}

	udpConn, ok := c.(*net.UDPConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("rslvnet: dial %s: not a UDP connection", addr)
	}

	if name == "" {
		name = addr
	}

	return &UDPNameserver{name: name, conn: udpConn}, nil
}

// Name satisfies resolvers.Nameserver.
func (u *UDPNameserver) Name() string { return u.name }

// Send satisfies resolvers.Nameserver.
func (u *UDPNameserver) Send(buf []byte) error {
	n, err := u.conn.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("rslvnet: short write to %s: %d of %d bytes", u.name, n, len(buf))
	}
	return nil
}

// Recv satisfies resolvers.Nameserver.
func (u *UDPNameserver) Recv(buf []byte) (int, error) {
	return u.conn.Read(buf)
}

// Close releases the underlying socket. Safe to call once the owning Section has been closed.
func (u *UDPNameserver) Close() error {
	return u.conn.Close()
}
