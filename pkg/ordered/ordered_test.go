package ordered

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapKeepsInsertionOrder(t *testing.T) {
	m := New(0)
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("mid", 3)
	m.Set("zeta", 4)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
	v, ok := m.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestMapDelete(t *testing.T) {
	m := FromPairs("a", 1, "b", 2, "c", 3)
	m.Delete("b")
	m.Delete("missing")
	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.Equal(t, 2, m.Len())
}

func TestMarshalJSONPreservesOrder(t *testing.T) {
	m := FromPairs("b", 1, "a", FromPairs("y", true, "x", nil))
	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":{"y":true,"x":null}}`, string(out))
}

func TestParseJSONRoundTrip(t *testing.T) {
	src := `{"z":[1,2,{"k":"v"}],"a":1.50,"n":null}`
	v, err := ParseJSON([]byte(src))
	require.NoError(t, err)

	obj, ok := v.(*Map)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "n"}, obj.Keys())

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":[1,2,{"k":"v"}],"a":1.50,"n":null}`, string(out))
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	_, err := ParseJSON([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestUnmarshalJSON(t *testing.T) {
	var m Map
	require.NoError(t, json.Unmarshal([]byte(`{"second":2,"first":1}`), &m))
	assert.Equal(t, []string{"second", "first"}, m.Keys())

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
}

func TestPlainStripsOrderedMaps(t *testing.T) {
	m := FromPairs("list", []any{FromPairs("k", "v")})
	plain := Plain(m)
	assert.Equal(t, map[string]any{"list": []any{map[string]any{"k": "v"}}}, plain)
}
