// Package dnsquery wraps github.com/miekg/dns into the single-shot query
// capability the scan engine consumes. Each call performs exactly one
// exchange against one resolver; racing, retries and fan-out live in the
// engine, not here.
package dnsquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

var (
	// ErrNoAnswer is returned when the response carries an empty answer section.
	ErrNoAnswer = fmt.Errorf("no answer records")
	// ErrEmptyMsg is returned when the DNS response message is nil.
	ErrEmptyMsg = fmt.Errorf("empty message")
	// ErrBadRcode is returned when the response code is not success.
	ErrBadRcode = fmt.Errorf("non-success rcode")
	// ErrEmptyName is returned when an empty name is queried.
	ErrEmptyName = fmt.Errorf("empty name")
)

var _ Querier = (*Client)(nil)

// Querier defines the query capability consumed by the scan engine.
type Querier interface {
	// Query performs one lookup of name at the given resolver (host:port).
	// It reports whether the resolver produced a positive answer: a
	// successful response with a non-empty answer section. Anything else
	// (transport error, timeout, bad rcode, empty answer) is negative.
	Query(ctx context.Context, resolver, name string, qtype uint16) (bool, error)
}

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Client implements Querier on top of a miekg/dns client.
type Client struct {
	Client  Exchanger
	Timeout time.Duration
}

// Opt is a function option for configuring the Client.
type Opt func(c *Client)

// New creates a new Client with the given per-exchange timeout.
func New(timeout time.Duration, opts ...Opt) *Client {
	c := &Client{
		Client: &dns.Client{
			Timeout: timeout,
		},
		Timeout: timeout,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// WithExchanger returns an option to replace the underlying exchanger.
// Used by tests to inject a fake transport.
func WithExchanger(e Exchanger) Opt {
	return func(c *Client) {
		c.Client = e
	}
}

// Query sends a single question for name to resolver and classifies the
// outcome. The caller decides what to do with a negative result; this
// function never retries.
func (c *Client) Query(ctx context.Context, resolver, name string, qtype uint16) (bool, error) {
	if name == "" {
		return false, ErrEmptyName
	}

	// Bound the exchange even when the caller's context carries no
	// deadline of its own.
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	// Fresh request each call: ExchangeContext mutates *dns.Msg.
	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(name), qtype)

	resp, _, err := c.Client.ExchangeContext(ctx, req, resolver)
	if err != nil {
		return false, fmt.Errorf("exchange with %s: %w", resolver, err)
	}
	if resp == nil {
		return false, ErrEmptyMsg
	}
	if resp.Rcode != dns.RcodeSuccess {
		return false, fmt.Errorf("%w: %s", ErrBadRcode, dns.RcodeToString[resp.Rcode])
	}
	if len(resp.Answer) == 0 {
		return false, ErrNoAnswer
	}
	return true, nil
}

// ParseRecordType maps a textual record type ("A", "AAAA", "MX", ...) to its
// wire value. Matching is case-insensitive via the uppercase table in miekg/dns.
func ParseRecordType(s string) (uint16, error) {
	if t, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown record type %q", s)
}
