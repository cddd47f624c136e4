package exception

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rules "github.com/oakwood-commons/dumpx/internal/redact"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

type notFound struct{ id string }

func (e *notFound) Error() string { return "record " + e.id + " not found" }
func (e *notFound) Code() int     { return 404 }

type codedString struct{}

func (codedString) Error() string { return "bad request" }
func (codedString) Code() string  { return "E_BAD" }

func TestTransformChainedCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := errors.Wrap(cause, "loading user")

	n := Transform(err, Options{})
	require.Equal(t, tree.KindException, n.Kind)

	assert.True(t, strings.HasPrefix(n.Text, "Exception: "))
	assert.Contains(t, n.Text, "\n\nCaused by: ")
	assert.Contains(t, n.Text, "Message: loading user\n")
	assert.Contains(t, n.Text, "Message: connection refused\n")
	assert.Contains(t, n.Text, "Trace:\n  #0 ")
	assert.Contains(t, n.Text, "exception_test.go:")
	assert.Contains(t, n.Text, "(code: 0)")
	assert.Equal(t, 2, n.Metadata[tree.MetaCount])

	frames, ok := n.Metadata[tree.MetaStackFrames].([]Frame)
	require.True(t, ok)
	require.NotEmpty(t, frames)
	assert.Equal(t, 0, frames[0].Index)
	assert.Contains(t, frames[0].File, "exception_test.go")
	assert.Equal(t, "exception.TestTransformChainedCause", frames[0].Function)
	assert.NotNil(t, frames[0].Args)
}

func TestTransformStdlibChainUsesCallSite(t *testing.T) {
	err := fmt.Errorf("outer: %w", &notFound{id: "42"})
	n := Transform(err, Options{})

	assert.Contains(t, n.Text, "Exception: *fmt.wrapError (code: 0)")
	assert.Contains(t, n.Text, "Message: outer\n")
	assert.Contains(t, n.Text, "Caused by: *exception.notFound (code: 404)")
	primary, _, _ := strings.Cut(n.Text, "Caused by:")
	assert.Contains(t, primary, "Trace:\n  #0 ")
	assert.NotContains(t, primary, "Location: unknown")

	frames, ok := n.Metadata[tree.MetaStackFrames].([]Frame)
	require.True(t, ok)
	require.NotEmpty(t, frames)
	assert.Equal(t, "exception.TestTransformStdlibChainUsesCallSite", frames[0].Function)
	assert.Contains(t, frames[0].File, "exception_test.go")
}

func TestTransformCallSiteHonoursStackLimit(t *testing.T) {
	links := Chain(stderrors.New("flat"), Options{StackLimit: 1})
	require.Len(t, links, 1)
	assert.Len(t, links[0].Frames, 1)
}

type explodingError struct{}

func (explodingError) Error() string { panic("boom") }

type labelled struct{ cause error }

func (labelled) Error() string   { return "wrapped" }
func (l labelled) Unwrap() error { return l.cause }

func TestTransformPanickingError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		unsafe bool
		want   []string
	}{
		{"root", explodingError{}, false, []string{"Message: [inaccessible]"}},
		{"root unsafe", explodingError{}, true, []string{"Message: [inaccessible]"}},
		{"cause", labelled{cause: explodingError{}}, false, []string{
			"Message: wrapped\n",
			"Caused by: exception.explodingError (code: 0)\nMessage: [inaccessible]",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n *tree.Node
			require.NotPanics(t, func() { n = Transform(tt.err, Options{RedactUnsafe: tt.unsafe}) })
			for _, w := range tt.want {
				assert.Contains(t, n.Text, w)
			}
		})
	}
}

func TestTransformStringCode(t *testing.T) {
	n := Transform(codedString{}, Options{})
	assert.Contains(t, n.Text, "(code: E_BAD)")
	assert.Equal(t, "E_BAD", n.Metadata["code"])
}

func TestTransformJoinedErrors(t *testing.T) {
	err := stderrors.Join(stderrors.New("first"), stderrors.New("second"))
	links := Chain(err, Options{})
	require.Len(t, links, 3)
	assert.Equal(t, "first", links[1].Message)
	assert.Equal(t, "second", links[2].Message)
}

func TestTransformRedactsMessageAndLimits(t *testing.T) {
	rs, err := rules.Compile([]rules.Spec{{Pattern: "/password/i"}})
	require.NoError(t, err)

	e := stderrors.New("auth failed password=hunter2 for user ada")
	n := Transform(e, Options{Rules: rs})
	assert.Contains(t, n.Text, "Message: auth failed password=*** for user ada")
	assert.NotContains(t, n.Text, "hunter2")

	n = Transform(e, Options{MessageLimit: 4})
	assert.Contains(t, n.Text, "Message: auth…\n")
}

func TestTransformStackLimit(t *testing.T) {
	err := errors.New("boom")
	links := Chain(err, Options{StackLimit: 1})
	require.Len(t, links, 1)
	assert.Len(t, links[0].Frames, 1)
}

func TestTransformVariablesOnPrimaryOnly(t *testing.T) {
	rs, err := rules.Compile([]rules.Spec{{Pattern: "token", Scope: "context"}})
	require.NoError(t, err)

	e := errors.Wrap(errors.New("inner"), "outer")
	n := Transform(e, Options{Rules: rs, Variables: map[string]any{"id": 7, "token": "abc"}})
	assert.Equal(t, 1, strings.Count(n.Text, "Variables:"))
	assert.Contains(t, n.Text, "  id = 7")
	assert.Contains(t, n.Text, "  token = [redacted]")
	primary, _, _ := strings.Cut(n.Text, "Caused by:")
	assert.Contains(t, primary, "Variables:")
}

func TestTransformRedactUnsafe(t *testing.T) {
	e := errors.Newf("user %s not found", "ada@example.com")
	n := Transform(e, Options{RedactUnsafe: true})
	assert.NotContains(t, n.Text, "ada@example.com")
	assert.Contains(t, n.Text, "‹×›")
}

func TestSplitFunction(t *testing.T) {
	tests := []struct {
		in                  string
		class, callType, fn string
	}{
		{"example.com/app/store.(*DB).Get", "store.(*DB)", ".", "Get"},
		{"example.com/app/store.Open", "", "", "store.Open"},
		{"main.main.func1", "", "", "main.main.func1"},
		{"unknown", "", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			class, callType, fn := splitFunction(tt.in)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.callType, callType)
			assert.Equal(t, tt.fn, fn)
		})
	}
}

func TestFrameString(t *testing.T) {
	f := Frame{Index: 2, File: "a.go", Line: 9, Class: "store.(*DB)", CallType: ".", Function: "Get"}
	assert.Equal(t, "#2 a.go:9 store.(*DB).Get()", f.String())
	assert.Equal(t, "unknown", Frame{}.Location())
}
