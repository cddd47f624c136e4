package loader

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

func TestTryDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"json object", `{"name":"alice","age":30}`, true},
		{"json array", `[1,2,3]`, true},
		{"yaml", "name: bob\nage: 25\n", true},
		{"toml", "[server]\nport = 80\n", true},
		{"plain", "hello world", false},
		{"number", "42", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := TryDecode(tt.in)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestExpandNested(t *testing.T) {
	inner := `{"b":"{\"c\":1}"}`
	v := ordered.FromPairs("a", inner, "plain", "text", "list", []any{"[1]"})

	got, ok := Expand(v).(*ordered.Map)
	require.True(t, ok)

	a, _ := got.Get("a")
	am, ok := a.(*ordered.Map)
	require.True(t, ok)
	b, _ := am.Get("b")
	bm, ok := b.(*ordered.Map)
	require.True(t, ok)
	c, _ := bm.Get("c")
	assert.Equal(t, json.Number("1"), c)

	plain, _ := got.Get("plain")
	assert.Equal(t, "text", plain)

	list, _ := got.Get("list")
	assert.Equal(t, []any{[]any{json.Number("1")}}, list)
}

func TestExpandTypedContainers(t *testing.T) {
	got := Expand(map[string]string{"z": "1", "a": `{"k":true}`})
	m, ok := got.(*ordered.Map)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "z"}, m.Keys())
	a, _ := m.Get("a")
	assert.Equal(t, ordered.FromPairs("k", true), a)

	assert.Equal(t, []byte("{}"), Expand([]byte("{}")))
	assert.Equal(t, map[int]string{1: "{}"}, Expand(map[int]string{1: "{}"}))
}
