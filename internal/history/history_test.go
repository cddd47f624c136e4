package history

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

func TestNormalize(t *testing.T) {
	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", 3, int64(3)},
		{"uint8", uint8(7), uint64(7)},
		{"float32", float32(0.5), 0.5},
		{"json int", json.Number("12"), int64(12)},
		{"json float", json.Number("1.5"), 1.5},
		{"native map sorted", map[string]int{"b": 2, "a": 1}, ordered.FromPairs("a", int64(1), "b", int64(2))},
		{"int keys", map[int]bool{2: true, 1: false}, ordered.FromPairs("1", false, "2", true)},
		{"struct", point{1, 2}, ordered.FromPairs("x", int64(1), "y", int64(2))},
		{"pointer", &point{3, 4}, ordered.FromPairs("x", int64(3), "y", int64(4))},
		{"typed slice", []string{"a"}, []any{"a"}},
		{"nil slice", []int(nil), nil},
		{"ordered keeps order", ordered.FromPairs("z", 1, "a", 2), ordered.FromPairs("z", int64(1), "a", int64(2))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_, err := Normalize(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested deeper")
}

func TestEncodeDecodeKeepsOrderAndTypes(t *testing.T) {
	taken := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v := ordered.FromPairs(
		"zeta", int64(-1),
		"alpha", []any{uint64(2), 2.5, "s", nil, true, []byte("b")},
		"nested", ordered.FromPairs("y", "1", "b", ordered.New(0)),
	)
	data, err := Encode(&Snapshot{Key: "k", Taken: taken, Value: v})
	require.NoError(t, err)

	snap, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "k", snap.Key)
	assert.True(t, taken.Equal(snap.Taken))

	m, ok := snap.Value.(*ordered.Map)
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "nested"}, m.Keys())
	assert.Equal(t, v.ToMap(), m.ToMap())

	_, err = Decode([]byte{0xc1})
	require.Error(t, err)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "orders/42")
	require.NoError(t, err)
	assert.Nil(t, got)

	prev, cur, err := Track(ctx, s, "orders/42", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.Equal(t, ordered.FromPairs("n", int64(1)), cur)

	prev, _, err = Track(ctx, s, "orders/42", map[string]any{"n": 2})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, ordered.FromPairs("n", int64(1)).ToMap(), prev.Value.(*ordered.Map).ToMap())

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "orders%2F42.msgpack", entries[0].Name())

	require.NoError(t, s.Delete(ctx, "orders/42"))
	require.NoError(t, s.Delete(ctx, "orders/42"))
	got, err = s.Get(ctx, "orders/42")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, &Snapshot{Key: "old", Taken: time.Now().Add(-time.Hour), Value: "x"}))
	require.NoError(t, s.Put(ctx, &Snapshot{Key: "new", Taken: time.Now(), Value: "y"}))

	got, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "y", got.Value)
}

func TestEmptyKey(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	_, _, err = Track(context.Background(), s, "", 1)
	require.ErrorIs(t, err, ErrEmptyKey)
	require.ErrorIs(t, s.Put(context.Background(), &Snapshot{}), ErrEmptyKey)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, Options{Backend: "s3"})
	require.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendRedis})
	require.Error(t, err)
}

// TestRedisStore needs a reachable server; set DUMPX_TEST_REDIS_ADDR.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("DUMPX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DUMPX_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, addr, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	key := "test-" + time.Now().Format("150405.000000000")
	defer s.Delete(ctx, key) //nolint:errcheck

	prev, _, err := Track(ctx, s, key, []int{1})
	require.NoError(t, err)
	assert.Nil(t, prev)
	prev, _, err = Track(ctx, s, key, []int{2})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, []any{int64(1)}, prev.Value)
}
