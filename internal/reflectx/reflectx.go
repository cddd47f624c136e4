// Package reflectx reads struct fields, exported or not, for display.
package reflectx

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Field is one declared struct field.
type Field struct {
	Name     string
	Exported bool
	// Decl is the declaring type's name, used to tag unexported fields.
	Decl  string
	Value reflect.Value
}

// DisplayName returns "name:public" or "name:private(Decl)".
func (f Field) DisplayName() string {
	if f.Exported {
		return f.Name + ":public"
	}
	return fmt.Sprintf("%s:private(%s)", f.Name, f.Decl)
}

// Addressable returns v itself when addressable, otherwise an addressable
// copy. Unexported fields can only be read through an addressable struct.
func Addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)
	return cp
}

// TypeName returns the short name of t, falling back to its string form
// for unnamed types.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return t.String()
	}
	return t.String()
}

// Fields lists the fields of struct value v in declaration order. Embedded
// structs are one field named after their type.
func Fields(v reflect.Value) []Field {
	if v.Kind() != reflect.Struct {
		return nil
	}
	v = Addressable(v)
	t := v.Type()
	decl := TypeName(t)
	out := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := v.Field(i)
		if !sf.IsExported() {
			fv = reflect.NewAt(sf.Type, unsafe.Pointer(fv.UnsafeAddr())).Elem()
		}
		out = append(out, Field{
			Name:     sf.Name,
			Exported: sf.IsExported(),
			Decl:     decl,
			Value:    fv,
		})
	}
	return out
}

// Interface returns v's value, recovering from any panic raised while
// reading it.
func Interface(v reflect.Value) (out any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			out, ok = nil, false
		}
	}()
	if !v.IsValid() {
		return nil, true
	}
	if !v.CanInterface() {
		return nil, false
	}
	return v.Interface(), true
}

// IsUnset reports whether a field holds no value: nil funcs and channels.
func IsUnset(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}
