package inspect

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"golang.org/x/term"

	"github.com/oakwood-commons/dumpx/internal/contextsnap"
	"github.com/oakwood-commons/dumpx/internal/diff"
	"github.com/oakwood-commons/dumpx/internal/render/html"
	"github.com/oakwood-commons/dumpx/internal/render/terminal"
	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// Option configures a Dumper or Transformer.
type Option func(*config)

type config struct {
	log        logr.Logger
	explainer  sqlfmt.Explainer
	collector  ContextCollector
	isTerminal func() bool
}

func newConfig(opts []Option) config {
	c := config{
		log:        logr.Discard(),
		collector:  contextsnap.Collector{SkipDirs: []string{packageDir}},
		isTerminal: stdoutIsTerminal,
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// WithLogger sets the logger for diagnostics. The default discards.
func WithLogger(l logr.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithExplainer attaches an EXPLAIN source to detected SQL strings.
func WithExplainer(e sqlfmt.Explainer) Option {
	return func(c *config) { c.explainer = e }
}

// WithCollector replaces the default context collector. Nil disables
// collection; requests then only show context they carry.
func WithCollector(cc ContextCollector) Option {
	return func(c *config) { c.collector = cc }
}

// WithTerminalDetector overrides how a nil Color option is resolved.
func WithTerminalDetector(fn func() bool) Option {
	return func(c *config) { c.isTerminal = fn }
}

var packageDir = contextsnap.CallerDir()

// stdoutIsTerminal reports whether colour should be used when the caller
// did not decide: stdout is a TTY and NO_COLOR is unset.
func stdoutIsTerminal() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Dumper renders values for either channel. It is safe for concurrent use.
type Dumper struct {
	transformer *Transformer
	cfg         config
}

// New returns a Dumper configured by opts.
func New(opts ...Option) *Dumper {
	c := newConfig(opts)
	return &Dumper{
		transformer: &Transformer{log: c.log, explainer: c.explainer},
		cfg:         c,
	}
}

// Transformer returns the value transformer used by d.
func (d *Dumper) Transformer() *Transformer { return d.transformer }

// Tree builds the rendered tree for req, collecting context when the
// request asks for it and carries none.
func (d *Dumper) Tree(ctx context.Context, req *Request) *tree.Tree {
	o := req.Options()
	if (o.ShowContext || o.IncludeVariableSnapshots) && req.Snapshot() == nil && d.cfg.collector != nil {
		snap, err := d.cfg.collector.Collect(ctx)
		if err != nil {
			d.cfg.log.V(1).Info("context collection failed", "error", err.Error())
		} else {
			req = req.WithSnapshot(snap)
		}
	}
	return d.transformer.Transform(ctx, req)
}

// Render builds and serializes the tree for req.
func (d *Dumper) Render(ctx context.Context, req *Request) (string, error) {
	return d.Serialize(d.Tree(ctx, req), req.Channel(), req.Options())
}

// Serialize writes tr for channel ch.
func (d *Dumper) Serialize(tr *tree.Tree, ch Channel, o Options) (string, error) {
	switch ch {
	case ChannelWeb:
		out, err := html.Render(tr, html.Options{
			Theme:                 o.Theme,
			ExpandExceptions:      o.ExpandExceptions,
			ShowTableVariableMeta: o.ShowTableVariableMeta,
			ShowExpressions:       o.ShowExpressions,
		})
		if err != nil {
			return "", errors.Wrap(err, "render html")
		}
		return out, nil
	case ChannelCLI:
		return terminal.Render(tr, terminal.Options{
			Color:           d.color(o),
			IndentStyle:     o.IndentStyle,
			IndentSize:      o.IndentSize,
			ShowExpressions: o.ShowExpressions,
		}), nil
	}
	return "", errors.Newf("unsupported channel %q", ch)
}

func (d *Dumper) color(o Options) bool {
	if o.Color != nil {
		return *o.Color
	}
	return d.cfg.isTerminal()
}

// Diff compares before and after and renders the result as a diff node.
// MaxDepth bounds the comparison.
func (d *Dumper) Diff(ctx context.Context, before, after any, ch Channel, o Options) (string, error) {
	if _, err := NewRequest(nil, ch, o, nil); err != nil {
		return "", err
	}
	d.cfg.log.V(1).Info("diffing values", "channel", string(ch))
	n := diff.ToTree(diff.Compare(before, after, o.MaxDepth))
	tr := &tree.Tree{Channel: string(ch), Nodes: []*tree.Node{n}}
	return d.Serialize(tr, ch, o)
}

var defaultDumper = New()

// Dump renders value for channel using options overlaid on DefaultOptions.
// It is the one-call entry point; use a Dumper for loggers, explainers or
// custom collectors.
func Dump(value any, channel string, options map[string]any) (string, error) {
	o, err := OptionsFromMap(options)
	if err != nil {
		return "", err
	}
	req, err := NewRequest(value, Channel(strings.ToLower(channel)), o, nil)
	if err != nil {
		return "", err
	}
	return defaultDumper.Render(context.Background(), req)
}
