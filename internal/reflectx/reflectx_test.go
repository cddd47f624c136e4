package reflectx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inner struct{ n int }

type sample struct {
	Name   string
	secret string
	inner
	hook func()
	ch   chan int
}

func TestFieldsIncludesUnexported(t *testing.T) {
	s := sample{Name: "a", secret: "b", inner: inner{n: 3}}
	fields := Fields(reflect.ValueOf(s))
	require.Len(t, fields, 5)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.DisplayName()
	}
	assert.Equal(t, []string{
		"Name:public",
		"secret:private(reflectx.sample)",
		"inner:private(reflectx.sample)",
		"hook:private(reflectx.sample)",
		"ch:private(reflectx.sample)",
	}, names)

	v, ok := Interface(fields[1].Value)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	emb, ok := Interface(fields[2].Value)
	require.True(t, ok)
	assert.Equal(t, inner{n: 3}, emb)

	assert.True(t, IsUnset(fields[3].Value))
	assert.True(t, IsUnset(fields[4].Value))
	assert.False(t, IsUnset(fields[0].Value))
}

func TestFieldsNonStruct(t *testing.T) {
	assert.Nil(t, Fields(reflect.ValueOf(42)))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "reflectx.sample", TypeName(reflect.TypeOf(sample{})))
	assert.Equal(t, "int", TypeName(reflect.TypeOf(0)))
	assert.Equal(t, "[]string", TypeName(reflect.TypeOf([]string{})))
	assert.Equal(t, "nil", TypeName(nil))
}

func TestInterfaceInvalid(t *testing.T) {
	v, ok := Interface(reflect.Value{})
	assert.True(t, ok)
	assert.Nil(t, v)
}
