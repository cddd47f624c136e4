// Package core bundles loading, CEL selection and rendering behind one
// Engine for programs that embed dumpx.
package core

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/oakwood-commons/dumpx/internal/cel"
	"github.com/oakwood-commons/dumpx/internal/history"
	"github.com/oakwood-commons/dumpx/pkg/inspect"
	"github.com/oakwood-commons/dumpx/pkg/loader"
)

// Evaluator evaluates expressions against a root node.
type Evaluator interface {
	Evaluate(expr string, root any) (any, error)
}

// Engine provides a minimal shared API for loading, selecting and rendering
// data.
type Engine struct {
	Evaluator Evaluator
	Dumper    *inspect.Dumper
	Options   inspect.Options
}

// Option configures the Engine.
type Option func(*Engine)

// WithEvaluator sets a custom evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(c *Engine) {
		c.Evaluator = e
	}
}

// WithDumper sets the dumper used for rendering.
func WithDumper(d *inspect.Dumper) Option {
	return func(c *Engine) {
		c.Dumper = d
	}
}

// WithOptions sets the render options used by Render and Diff.
func WithOptions(o inspect.Options) Option {
	return func(c *Engine) {
		c.Options = o
	}
}

// New creates an Engine with defaults: the CEL evaluator, a default Dumper
// and inspect.DefaultOptions.
func New(opts ...Option) (*Engine, error) {
	engine := &Engine{Options: inspect.DefaultOptions()}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.Evaluator == nil {
		eval, err := cel.NewEvaluator()
		if err != nil {
			return nil, err
		}
		engine.Evaluator = eval
	}
	if engine.Dumper == nil {
		engine.Dumper = inspect.New()
	}
	return engine, nil
}

// LoadRoot parses input into a single root node; multi-doc inputs return a slice.
func LoadRoot(input string) (any, error) {
	return loader.LoadRoot(input)
}

// LoadFile reads a file and parses it into a single root node.
func LoadFile(path string) (any, error) {
	return loader.LoadFile(path)
}

// LoadReader parses r as format (auto, json, ndjson, yaml or toml).
func LoadReader(r io.Reader, format string) (any, error) {
	f, err := loader.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return loader.LoadReader(r, f)
}

// Evaluate runs the evaluator against root. An empty expression returns
// root unchanged.
func (e *Engine) Evaluate(expr string, root any) (any, error) {
	if expr == "" {
		return root, nil
	}
	if e == nil || e.Evaluator == nil {
		return nil, errors.New("evaluator is not configured")
	}
	return e.Evaluator.Evaluate(expr, root)
}

// Functions lists the expression functions when the evaluator can describe
// them.
func (e *Engine) Functions() []string {
	if f, ok := e.Evaluator.(interface{ Functions() []string }); ok {
		return f.Functions()
	}
	return nil
}

// Render renders v for channel with the engine options.
func (e *Engine) Render(ctx context.Context, v any, ch inspect.Channel) (string, error) {
	req, err := inspect.NewRequest(v, ch, e.Options, nil)
	if err != nil {
		return "", err
	}
	return e.Dumper.Render(ctx, req)
}

// Diff renders the difference between before and after. Both sides are
// normalized first so that, for example, a JSON 1 equals a YAML 1.
func (e *Engine) Diff(ctx context.Context, before, after any, ch inspect.Channel) (string, error) {
	a, err := history.Normalize(before)
	if err != nil {
		return "", errors.Wrap(err, "normalize before")
	}
	b, err := history.Normalize(after)
	if err != nil {
		return "", errors.Wrap(err, "normalize after")
	}
	return e.Dumper.Diff(ctx, a, b, ch, e.Options)
}
