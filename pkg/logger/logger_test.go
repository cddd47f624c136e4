package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"syscall"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(&buf, 0)
	l.Info("dumped", "channel", "cli")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dumped", entry[MessageKey])
	assert.Equal(t, "cli", entry["channel"])
	assert.Contains(t, entry, TimeStampKey)
	assert.Contains(t, entry, VersionKey)
	assert.Contains(t, entry, GoVersionKey)
}

func TestNewVerbosity(t *testing.T) {
	tests := []struct {
		name  string
		level int8
		want  bool
	}{
		{"info hides V(1)", 0, false},
		{"debug shows V(1)", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, _ := New(&buf, tt.level)
			l.V(1).Info("detail")
			assert.Equal(t, tt.want, buf.Len() > 0)
		})
	}
}

func TestGetIsSingleton(t *testing.T) {
	a := Get(0)
	b := Get(-1)
	assert.Same(t, a, b)
}

func TestContextRoundTrip(t *testing.T) {
	l := logr.Discard()
	ctx := WithLogger(context.Background(), &l)
	assert.Same(t, &l, FromContext(ctx))
	assert.Equal(t, ctx, WithLogger(ctx, &l))

	other := logr.Discard()
	assert.Same(t, &other, FromContext(WithLogger(ctx, &other)))
}

func TestFromContextFallsBack(t *testing.T) {
	orig := global
	defer func() { global = orig }()

	global = nil
	assert.Same(t, &discard, FromContext(context.Background()))

	g := logr.Discard()
	global = &g
	assert.Same(t, &g, FromContext(context.Background()))
}

func TestSyncWithoutLogger(t *testing.T) {
	orig := globalZap
	globalZap = nil
	defer func() { globalZap = orig }()
	assert.NotPanics(t, Sync)
}

func TestIsIgnorableSyncError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"enotty", &os.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.ENOTTY}, true},
		{"einval", syscall.EINVAL, true},
		{"windows text", &os.PathError{Op: "sync", Err: errString("The handle is invalid.")}, true},
		{"other", os.ErrPermission, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isIgnorableSyncError(tt.err))
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }
