// Package contextsnap captures where a dump was requested from: the
// calling frame, the call stack, selected environment variables and any
// request or variable data attached to the context.
package contextsnap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

// Frame is one call-stack entry.
type Frame struct {
	File     string
	Line     int
	Function string
	Args     []string
}

// String renders "file:line function()".
func (f Frame) String() string {
	return fmt.Sprintf("%s:%d %s(%s)", f.File, f.Line, f.Function, strings.Join(f.Args, ", "))
}

// Snapshot is the context attached to a render request.
type Snapshot struct {
	Origin    Frame
	Stack     []Frame
	Request   map[string]any
	Env       map[string]any
	Variables map[string]any
}

// ToMap lays the snapshot out for display, omitting empty sections.
func (s *Snapshot) ToMap() *ordered.Map {
	out := ordered.New(5)
	if s == nil {
		return out
	}
	if s.Origin.File != "" || s.Origin.Function != "" {
		out.Set("origin", s.Origin.String())
	}
	if len(s.Stack) > 0 {
		stack := make([]any, len(s.Stack))
		for i, f := range s.Stack {
			stack[i] = f.String()
		}
		out.Set("stack", stack)
	}
	if len(s.Request) > 0 {
		out.Set("request", s.Request)
	}
	if len(s.Env) > 0 {
		out.Set("env", s.Env)
	}
	if len(s.Variables) > 0 {
		out.Set("variables", s.Variables)
	}
	return out
}

type requestKey struct{}
type variablesKey struct{}

// WithRequest attaches request data to ctx for the next snapshot.
func WithRequest(ctx context.Context, req map[string]any) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

// WithVariables attaches variables to ctx for the next snapshot.
func WithVariables(ctx context.Context, vars map[string]any) context.Context {
	return context.WithValue(ctx, variablesKey{}, vars)
}

// Collector builds snapshots from the running process.
type Collector struct {
	// StackLimit caps the number of frames; 0 keeps all.
	StackLimit int
	// EnvKeys selects environment variables. Nil captures none; a single
	// "*" captures all.
	EnvKeys []string
	// SkipDirs lists directories whose non-test frames are skipped when
	// locating the origin.
	SkipDirs []string
}

// Collect implements the context collector contract.
func (c Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Env: c.env()}
	if req, ok := ctx.Value(requestKey{}).(map[string]any); ok {
		snap.Request = req
	}
	if vars, ok := ctx.Value(variablesKey{}).(map[string]any); ok {
		snap.Variables = vars
	}

	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	originSet := false
	for {
		f, more := frames.Next()
		if c.skipped(f.File) || strings.HasPrefix(f.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}
		fr := Frame{File: f.File, Line: f.Line, Function: f.Function, Args: []string{}}
		if !originSet {
			snap.Origin = fr
			originSet = true
		}
		if c.StackLimit == 0 || len(snap.Stack) < c.StackLimit {
			snap.Stack = append(snap.Stack, fr)
		}
		if !more {
			break
		}
	}
	return snap, nil
}

func (c Collector) skipped(file string) bool {
	if strings.HasSuffix(file, "_test.go") {
		return false
	}
	dir := filepath.Dir(file)
	if dir == thisDir {
		return true
	}
	for _, d := range c.SkipDirs {
		if dir == d {
			return true
		}
	}
	return false
}

var thisDir = func() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}()

// CallerDir returns the directory of the calling source file, for SkipDirs.
func CallerDir() string {
	_, file, _, _ := runtime.Caller(1)
	return filepath.Dir(file)
}

func (c Collector) env() map[string]any {
	if len(c.EnvKeys) == 0 {
		return nil
	}
	out := map[string]any{}
	if len(c.EnvKeys) == 1 && c.EnvKeys[0] == "*" {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				out[k] = v
			}
		}
		return out
	}
	for _, k := range c.EnvKeys {
		if v, ok := os.LookupEnv(k); ok {
			out[k] = v
		}
	}
	return out
}
