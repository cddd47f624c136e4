// Package exception turns an error and its cause chain into an exception
// node: one text block per cause plus structured stack frames.
package exception

import (
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/go-logr/logr"

	"github.com/oakwood-commons/dumpx/internal/limiter"
	rules "github.com/oakwood-commons/dumpx/internal/redact"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// maxChain caps the number of errors visited; cause chains are finite in
// practice but multi-cause errors can fan out.
const maxChain = 64

// Unreadable stands in for the message of an error whose Error method
// panics.
const Unreadable = "[inaccessible]"

// Frame is one stack frame of a chain link.
type Frame struct {
	Link     int      `json:"link"`
	Index    int      `json:"index"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Function string   `json:"function"`
	Class    string   `json:"class,omitempty"`
	CallType string   `json:"callType,omitempty"`
	Args     []string `json:"args"`
}

// String formats the frame the way it appears in the Trace section.
func (f Frame) String() string {
	fn := f.Function
	if f.Class != "" {
		fn = f.Class + f.CallType + f.Function
	}
	return fmt.Sprintf("#%d %s:%d %s(%s)", f.Index, f.File, f.Line, fn, strings.Join(f.Args, ", "))
}

// Location returns "file:line" or "unknown".
func (f Frame) Location() string {
	if f.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}

// Link is one displayed element of a cause chain.
type Link struct {
	Type    string
	Code    string
	Message string
	Frames  []Frame
}

// Options controls a transform.
type Options struct {
	Rules        []*rules.Rule
	StackLimit   int
	MessageLimit int
	// RedactUnsafe prints messages through the redact package, hiding
	// arguments not marked safe.
	RedactUnsafe bool
	// Variables are appended to the primary block when non-empty.
	Variables map[string]any
	Logger    logr.Logger
	// SkipDirs lists source directories whose non-test frames are left
	// out of a captured call-site stack.
	SkipDirs []string
}

// Coder is implemented by errors that carry an application code.
type Coder interface {
	Code() int
}

// StringCoder is Coder for textual codes.
type StringCoder interface {
	Code() string
}

// Chain flattens err into display links, outermost first. Consecutive
// wrappers that add no text (stack annotations, markers) are folded into
// the error they wrap.
func Chain(err error, opts Options) []Link {
	var groups [][]error
	visit(err, &groups, 0)

	links := make([]Link, 0, len(groups))
	for i, g := range groups {
		inner := g[len(g)-1]
		msg := message(g[0], opts.RedactUnsafe)
		if i+1 < len(groups) {
			causeMsg := message(groups[i+1][0], opts.RedactUnsafe)
			if trimmed, ok := strings.CutSuffix(msg, ": "+causeMsg); ok {
				msg = trimmed
			}
		}
		msg = rules.Message(opts.Rules, msg)
		if cut, ok := limiter.Truncate(msg, opts.MessageLimit); ok {
			msg = cut + "…"
		}
		links = append(links, Link{
			Type:    typeName(inner),
			Code:    code(g),
			Message: msg,
			Frames:  frames(g, i, opts.StackLimit),
		})
	}
	if len(links) > 0 && !hasFrames(links) {
		links[0].Frames = callSite(opts.StackLimit, opts.SkipDirs)
	}
	return links
}

func hasFrames(links []Link) bool {
	for _, l := range links {
		if len(l.Frames) > 0 {
			return true
		}
	}
	return false
}

// callSite returns the current goroutine's stack, newest first, for chains
// where no error recorded one. Frames of this package, of skipDirs and of
// the runtime are dropped.
func callSite(limit int, skipDirs []string) []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	it := runtime.CallersFrames(pcs[:n])
	var out []Frame
	for {
		f, more := it.Next()
		if !skipFrame(f, skipDirs) {
			if limit > 0 && len(out) == limit {
				break
			}
			class, callType, fn := splitFunction(f.Function)
			out = append(out, Frame{
				Index:    len(out),
				File:     f.File,
				Line:     f.Line,
				Function: fn,
				Class:    class,
				CallType: callType,
				Args:     []string{},
			})
		}
		if !more {
			break
		}
	}
	return out
}

func skipFrame(f runtime.Frame, skipDirs []string) bool {
	if f.Function == "" || strings.HasPrefix(f.Function, "runtime.") {
		return true
	}
	if strings.HasSuffix(f.File, "_test.go") {
		return false
	}
	dir := filepath.Dir(f.File)
	if dir == thisDir {
		return true
	}
	for _, d := range skipDirs {
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

// visit groups the chain by message. A link whose Error() equals its
// parent's belongs to the parent's group.
func visit(err error, groups *[][]error, n int) {
	for err != nil && n < maxChain {
		last := len(*groups) - 1
		if last >= 0 {
			g := (*groups)[last]
			if errorText(g[len(g)-1]) == errorText(err) && isChild(g[len(g)-1], err) {
				(*groups)[last] = append(g, err)
				err, n = next(err, groups, n)
				continue
			}
		}
		*groups = append(*groups, []error{err})
		err, n = next(err, groups, n)
	}
}

func isChild(parent, child error) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return unwrap(parent) == child
}

// unwrap is errors.UnwrapOnce, ending the chain when Unwrap panics.
func unwrap(err error) (cause error) {
	defer func() {
		if recover() != nil {
			cause = nil
		}
	}()
	return errors.UnwrapOnce(err)
}

// errorText is err.Error(), or Unreadable when it panics.
func errorText(err error) (s string) {
	defer func() {
		if recover() != nil {
			s = Unreadable
		}
	}()
	return err.Error()
}

// next returns the single cause of err. Multi-cause errors are expanded
// in place, each cause becoming its own run of links.
func next(err error, groups *[][]error, n int) (error, int) {
	n++
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, c := range causes(multi) {
			visit(c, groups, n)
			n++
		}
		return nil, n
	}
	return unwrap(err), n
}

func causes(multi interface{ Unwrap() []error }) (errs []error) {
	defer func() {
		if recover() != nil {
			errs = nil
		}
	}()
	return multi.Unwrap()
}

func message(err error, unsafe bool) (msg string) {
	text := errorText(err)
	if !unsafe || text == Unreadable {
		return text
	}
	defer func() {
		if recover() != nil {
			msg = Unreadable
		}
	}()
	return string(redact.Sprint(err).Redact())
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	return t.String()
}

func code(group []error) (out string) {
	defer func() {
		if recover() != nil {
			out = "0"
		}
	}()
	for _, e := range group {
		switch c := e.(type) {
		case Coder:
			return fmt.Sprint(c.Code())
		case StringCoder:
			return c.Code()
		}
	}
	return "0"
}

// frames returns the group's innermost stack trace, newest frame first.
func frames(group []error, link, limit int) []Frame {
	for i := len(group) - 1; i >= 0; i-- {
		st := errors.GetReportableStackTrace(group[i])
		if st == nil || len(st.Frames) == 0 {
			continue
		}
		out := make([]Frame, 0, len(st.Frames))
		for j := len(st.Frames) - 1; j >= 0; j-- {
			if limit > 0 && len(out) == limit {
				break
			}
			sf := st.Frames[j]
			full := sf.Function
			if sf.Module != "" && sf.Module != "unknown" {
				full = sf.Module + "." + sf.Function
			}
			class, callType, fn := splitFunction(full)
			file := sf.Filename
			if file == "" {
				file = sf.AbsPath
			}
			out = append(out, Frame{
				Link:     link,
				Index:    len(out),
				File:     file,
				Line:     sf.Lineno,
				Function: fn,
				Class:    class,
				CallType: callType,
				Args:     []string{},
			})
		}
		return out
	}
	return nil
}

// splitFunction splits "example.com/pkg.(*T).Method" into ("pkg.(*T)", ".",
// "Method"). Plain functions keep their package qualifier and have no
// class.
func splitFunction(full string) (class, callType, fn string) {
	base := path.Base(full)
	pkg, rest, ok := strings.Cut(base, ".")
	if !ok {
		return "", "", base
	}
	if strings.HasPrefix(rest, "(") {
		if end := strings.Index(rest, ")."); end > 0 {
			return pkg + "." + rest[:end+1], ".", rest[end+2:]
		}
	}
	return "", "", base
}

// Transform builds the exception node for err.
func Transform(err error, opts Options) *tree.Node {
	links := Chain(err, opts)
	blocks := make([]string, 0, len(links))
	var all []Frame
	for i, l := range links {
		var b strings.Builder
		header := "Exception"
		if i > 0 {
			header = "Caused by"
		}
		fmt.Fprintf(&b, "%s: %s (code: %s)\n", header, l.Type, l.Code)
		fmt.Fprintf(&b, "Message: %s\n", l.Message)
		loc := "unknown"
		if len(l.Frames) > 0 {
			loc = l.Frames[0].Location()
		}
		fmt.Fprintf(&b, "Location: %s\n", loc)
		b.WriteString("Trace:")
		for _, f := range l.Frames {
			b.WriteString("\n  ")
			b.WriteString(f.String())
		}
		if i == 0 && len(opts.Variables) > 0 {
			b.WriteString("\nVariables:")
			vars := rules.ApplyToMap(opts.Rules, opts.Variables, rules.ScopeContext)
			keys := make([]string, 0, len(vars))
			for k := range vars {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "\n  %s = %v", k, vars[k])
			}
		}
		blocks = append(blocks, b.String())
		all = append(all, l.Frames...)
	}
	opts.Logger.V(1).Info("transformed error chain", "links", len(links), "frames", len(all))

	n := tree.New(tree.KindException, strings.Join(blocks, "\n\n"))
	if all == nil {
		all = []Frame{}
	}
	n.Set(tree.MetaStackFrames, all)
	if len(links) > 0 {
		n.Set(tree.MetaTypeName, links[0].Type)
		n.Set("code", links[0].Code)
		n.Set("message", links[0].Message)
	}
	n.Set(tree.MetaCount, len(links))
	return n
}
