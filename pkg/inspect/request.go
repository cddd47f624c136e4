package inspect

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/oakwood-commons/dumpx/internal/contextsnap"
	"github.com/oakwood-commons/dumpx/internal/redact"
)

// Channel is an output target.
type Channel string

const (
	ChannelCLI Channel = "cli"
	ChannelWeb Channel = "web"
)

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelCLI:
		return ChannelCLI, nil
	case ChannelWeb:
		return ChannelWeb, nil
	}
	return "", errors.Newf("unsupported channel %q: valid values are cli, web", s)
}

// Snapshot is the context captured alongside a value.
type Snapshot = contextsnap.Snapshot

// ContextCollector supplies snapshots for requests that ask for context
// but carry none.
type ContextCollector interface {
	Collect(ctx context.Context) (*Snapshot, error)
}

// Request is one immutable render request. Construct it with NewRequest.
type Request struct {
	value    any
	channel  Channel
	opts     Options
	snapshot *Snapshot
	rules    []*redact.Rule
}

// NewRequest validates the channel and options and compiles the redaction
// rules. All input errors surface here, never while rendering.
func NewRequest(value any, channel Channel, opts Options, snapshot *Snapshot) (*Request, error) {
	ch, err := ParseChannel(string(channel))
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	rules, err := redact.Compile(opts.RedactionRules)
	if err != nil {
		return nil, err
	}
	opts.RedactionRules = append([]redact.Spec(nil), opts.RedactionRules...)
	if opts.Color != nil {
		c := *opts.Color
		opts.Color = &c
	}
	return &Request{value: value, channel: ch, opts: opts, snapshot: snapshot, rules: rules}, nil
}

// Value returns the payload.
func (r *Request) Value() any { return r.value }

// Channel returns the output target.
func (r *Request) Channel() Channel { return r.channel }

// Options returns a copy of the request options.
func (r *Request) Options() Options {
	o := r.opts
	o.RedactionRules = append([]redact.Spec(nil), r.opts.RedactionRules...)
	if r.opts.Color != nil {
		c := *r.opts.Color
		o.Color = &c
	}
	return o
}

// Snapshot returns the attached context, if any.
func (r *Request) Snapshot() *Snapshot { return r.snapshot }

// Rules returns the compiled redaction rules.
func (r *Request) Rules() []*redact.Rule { return append([]*redact.Rule(nil), r.rules...) }

// WithSnapshot returns a copy of r carrying s.
func (r *Request) WithSnapshot(s *Snapshot) *Request {
	cp := *r
	cp.snapshot = s
	return &cp
}
