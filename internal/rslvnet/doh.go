package rslvnet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/net/http2"
)

const dnsMessageContentType = "application/dns-message"

// DoHNameserver adapts a DNS-over-HTTPS server (RFC 8484) to the resolvers.Nameserver interface.
// Because HTTP request/response is a single round trip rather than a socket's independent
// send/recv, Send launches the POST in the background and Recv blocks for whichever response
// arrives next; a buffered channel queues replies one for one with Sends, in the order the POSTs
// complete, which need not be the order they were sent.
type DoHNameserver struct {
	name   string
	url    string
	client *http.Client

	mu      sync.Mutex
	closed  bool
	pending chan dohResult
	stopCh  chan struct{}
}

type dohResult struct {
	body []byte
	err  error
}

// DoHConfig controls how a DoHNameserver issues requests.
type DoHConfig struct {
	// Client is used as-is if non-nil; otherwise one is built with an http2.Transport so POSTs
	// reuse a single multiplexed connection to the DoH server.
	Client *http.Client
}

// NewDoH constructs a DoHNameserver posting DNS wire-format queries to serverURL, identified by
// name (normally serverURL itself).
func NewDoH(name, serverURL string, cfg DoHConfig) (*DoHNameserver, error) {
	client := cfg.Client
	if client == nil {
		tr := &http2.Transport{}
		client = &http.Client{Transport: tr}
	}

	if name == "" {
		name = serverURL
	}

	return &DoHNameserver{
		name:    name,
		url:     serverURL,
		client:  client,
		pending: make(chan dohResult, 16),
		stopCh:  make(chan struct{}),
	}, nil
}

// Name satisfies resolvers.Nameserver.
func (d *DoHNameserver) Name() string { return d.name }

// Send satisfies resolvers.Nameserver: it POSTs buf as an application/dns-message body and queues
// the eventual response (or error) for Recv. The HTTP exchange runs in its own goroutine so Send
// never blocks on network I/O, matching the core's expectation that Send returns quickly.
func (d *DoHNameserver) Send(buf []byte) error {
	body := append([]byte(nil), buf...) // buf is reused by the caller once Send returns

	go func() {
		reply, err := d.post(body)
		select {
		case d.pending <- dohResult{body: reply, err: err}:
		case <-d.stopCh:
		}
	}()

	return nil
}

func (d *DoHNameserver) post(body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rslvnet: build request to %s: %w", d.name, err)
	}
	req.Header.Set("Content-Type", dnsMessageContentType)
	req.Header.Set("Accept", dnsMessageContentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rslvnet: request to %s: %w", d.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rslvnet: %s returned status %d", d.name, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != dnsMessageContentType {
		return nil, fmt.Errorf("rslvnet: %s returned content-type %q, want %q", d.name, ct, dnsMessageContentType)
	}

	return io.ReadAll(resp.Body)
}

// Recv satisfies resolvers.Nameserver: it blocks for the next completed Send's response and copies
// it into buf, or returns io.EOF once Close has been called.
func (d *DoHNameserver) Recv(buf []byte) (int, error) {
	select {
	case result := <-d.pending:
		if result.err != nil {
			return 0, result.err
		}
		if len(result.body) > len(buf) {
			return 0, fmt.Errorf("rslvnet: %s response of %d bytes exceeds buffer of %d", d.name, len(result.body), len(buf))
		}
		return copy(buf, result.body), nil
	case <-d.stopCh:
		return 0, io.EOF
	}
}

// RecvContext is like Recv but gives up once ctx is done, matching the core's "must not block
// forever" expectation when the application wants a send/recv budget shorter than the transport's
// own timeout.
func (d *DoHNameserver) RecvContext(ctx context.Context, buf []byte) (int, error) {
	select {
	case result := <-d.pending:
		if result.err != nil {
			return 0, result.err
		}
		if len(result.body) > len(buf) {
			return 0, fmt.Errorf("rslvnet: %s response of %d bytes exceeds buffer of %d", d.name, len(result.body), len(buf))
		}
		return copy(buf, result.body), nil
	case <-d.stopCh:
		return 0, io.EOF
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops accepting further responses. Any Send already in flight that completes afterward is
// silently dropped rather than delivered to a future Recv.
func (d *DoHNameserver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.stopCh)
	return nil
}
