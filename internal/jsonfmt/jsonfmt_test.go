package jsonfmt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dumpx/pkg/tree"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name       string
		v          any
		autoDetect bool
		want       bool
	}{
		{"object", `{"a":1}`, true, true},
		{"scalar json", `42`, true, true},
		{"disabled", `{"a":1}`, false, false},
		{"invalid", `{"a":`, true, false},
		{"not a string", map[string]any{"a": 1}, true, false},
		{"plain text", "hello", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.v, tt.autoDetect))
		})
	}
}

func TestTransformRoundTrip(t *testing.T) {
	inputs := []string{
		`{"b":1,"a":[true,false,null,{"x":"<y>"}],"n":1.50e3}`,
		`[1,"two",{"three":3}]`,
		`"just a string"`,
		`  {"spaced" :  { } }  `,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			n := Transform(in, 20)
			require.Equal(t, tree.KindJSON, n.Kind)
			require.Len(t, n.Children, 1)
			body := n.Children[0]
			assert.Equal(t, tree.KindJSONBody, body.Kind)

			var want, got any
			require.NoError(t, json.Unmarshal([]byte(in), &want))
			require.NoError(t, json.Unmarshal([]byte(body.Text), &got))
			assert.Equal(t, want, got)
			assert.Equal(t, true, n.Metadata[tree.MetaCollapsible])
		})
	}
}

func TestTransformKeepsOrderAndIndent(t *testing.T) {
	n := Transform(`{"z":1,"a":{"k":"<v>"}}`, 100)
	want := "{\n    \"z\": 1,\n    \"a\": {\n        \"k\": \"<v>\"\n    }\n}"
	assert.Equal(t, want, n.Children[0].Text)
}

func TestTransformPreview(t *testing.T) {
	n := Transform(`{"key": "a long value here"}`, 10)
	assert.Equal(t, `{"key": "a…`, n.Metadata[tree.MetaPreview])

	n = Transform(`[1]`, 10)
	assert.Equal(t, `[1]`, n.Metadata[tree.MetaPreview])
}

func TestTransformInvalidDegrades(t *testing.T) {
	n := Transform(`{"broken":`, 10)
	v, ok := n.JSONValue()
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, `{"broken":`, n.Children[0].Text)
}

func TestScanClassifiesTokens(t *testing.T) {
	text := "{\n    \"k\": \"v \\\"q\\\"\",\n    \"n\": -1.5e2,\n    \"b\": [true, null]\n}"
	var got []string
	var rebuilt strings.Builder
	Scan(text, func(c TokenClass, s string) {
		rebuilt.WriteString(s)
		switch c {
		case Key:
			got = append(got, "key:"+s)
		case String:
			got = append(got, "str:"+s)
		case Number:
			got = append(got, "num:"+s)
		case Keyword:
			got = append(got, "kw:"+s)
		}
	})
	assert.Equal(t, text, rebuilt.String())
	assert.Equal(t, []string{
		`key:"k"`, `str:"v \"q\""`, `key:"n"`, `num:-1.5e2`, `key:"b"`, `kw:true`, `kw:null`,
	}, got)
}
