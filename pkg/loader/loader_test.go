package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Format
	}{
		{"json object", `{"name": "test"}`, FormatJSON},
		{"json array", `[1, 2, 3]`, FormatJSON},
		{"ndjson", "{\"a\":1}\n{\"a\":2}", FormatNDJSON},
		{"multi doc yaml", "a: 1\n---\nb: 2", FormatYAML},
		{"yaml", "name: test\nvalue: 42", FormatYAML},
		{"yaml list", "- item1\n- item2", FormatYAML},
		{"toml section", "[server]\nhost = \"localhost\"", FormatTOML},
		{"toml array table", "[[items]]\nname = \"a\"", FormatTOML},
		{"toml pairs", "name = \"test\"\nport = 8080", FormatTOML},
		{"toml dotted", "database.host = \"localhost\"", FormatTOML},
		{"toml quoted section", `[server."host.name"]` + "\nip = \"10.0.0.1\"", FormatTOML},
		{"indented json in yaml", "items:\n  - expr: |\n      [\"legacy\"]", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.input))
		})
	}
}

func TestLoadPreservesOrder(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"json", `{"zeta": 1, "alpha": {"y": 2, "b": 3}}`},
		{"yaml", "zeta: 1\nalpha:\n  y: 2\n  b: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := LoadRoot(tt.input)
			require.NoError(t, err)
			m, ok := v.(*ordered.Map)
			require.True(t, ok, "got %T", v)
			assert.Equal(t, []string{"zeta", "alpha"}, m.Keys())
			inner, _ := m.Get("alpha")
			assert.Equal(t, []string{"y", "b"}, inner.(*ordered.Map).Keys())
		})
	}
}

func TestLoadJSONNumbers(t *testing.T) {
	v, err := LoadRoot(`{"big": 12345678901234567890, "f": 1.5}`)
	require.NoError(t, err)
	m := v.(*ordered.Map)
	big, _ := m.Get("big")
	assert.Equal(t, json.Number("12345678901234567890"), big)
}

func TestLoadYAMLScalarsAndMerge(t *testing.T) {
	v, err := LoadRoot("base: &b\n  port: 80\n  host: a\nsvc:\n  <<: *b\n  host: b\nn: 3\nok: true\nnone: null\n")
	require.NoError(t, err)
	m := v.(*ordered.Map)

	n, _ := m.Get("n")
	assert.Equal(t, 3, n)
	ok, _ := m.Get("ok")
	assert.Equal(t, true, ok)
	none, present := m.Get("none")
	assert.True(t, present)
	assert.Nil(t, none)

	svc, _ := m.Get("svc")
	sm := svc.(*ordered.Map)
	assert.Equal(t, []string{"port", "host"}, sm.Keys())
	host, _ := sm.Get("host")
	assert.Equal(t, "b", host)
}

func TestLoadMultiDoc(t *testing.T) {
	docs, err := LoadData("a: 1\n---\nb: 2\n---\n")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	v, err := LoadRoot("a: 1\n---\nb: 2")
	require.NoError(t, err)
	assert.IsType(t, []any{}, v)
}

func TestLoadNDJSON(t *testing.T) {
	docs, err := LoadData("{\"a\":1}\r\n\r\n{\"a\":2}\nnot json\n[3]")
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, ordered.FromPairs("a", json.Number("1")), docs[0])
	assert.Equal(t, "not json", docs[2])
	assert.Equal(t, []any{json.Number("3")}, docs[3])
}

func TestLoadTOML(t *testing.T) {
	v, err := LoadRoot("title = \"x\"\n[server]\nport = 8080\n")
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x", m["title"])
	assert.Equal(t, map[string]any{"port": int64(8080)}, m["server"])
}

func TestLoadFallbacks(t *testing.T) {
	v, err := LoadRoot(`{invalid}`)
	require.NoError(t, err)
	assert.Equal(t, ordered.FromPairs("invalid", nil), v)

	_, err = LoadData("   ")
	require.ErrorIs(t, err, ErrEmpty)

	_, err = Load("{", FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
		key  string
	}{
		{"yaml extension", write("a.yml", "name: test\n"), "name"},
		{"json extension", write("b.json", `{"key":"val"}`), "key"},
		{"wrong extension", write("c.toml", `{"oops":"json"}`), "oops"},
		{"jsonl extension", write("d.jsonl", `{"line":1}`), "line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := LoadFile(tt.path)
			require.NoError(t, err)
			m, ok := v.(*ordered.Map)
			require.True(t, ok, "got %T", v)
			_, has := m.Get(tt.key)
			assert.True(t, has)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestLoadReader(t *testing.T) {
	v, err := LoadReader(strings.NewReader("- 1\n- two\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []any{1, "two"}, v)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatAuto, false},
		{".YML", FormatYAML, false},
		{"jsonl", FormatNDJSON, false},
		{"toml", FormatTOML, false},
		{"xml", FormatAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
