// Package history keeps the last dumped value per key so a later dump can
// be shown as a diff against it. Snapshots are msgpack-encoded and kept in a
// directory or in redis.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

// Backends accepted by Open.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

const maxNormalizeDepth = 64

// ErrEmptyKey is returned for a blank snapshot key.
var ErrEmptyKey = errors.New("history key must not be empty")

// Snapshot is one stored value.
type Snapshot struct {
	Key   string
	Taken time.Time
	Value any
}

// Store persists snapshots. Get returns nil, nil when the key is absent or
// expired.
type Store interface {
	Get(ctx context.Context, key string) (*Snapshot, error)
	Put(ctx context.Context, s *Snapshot) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Dir       string
	RedisAddr string
	TTL       time.Duration
}

// Open returns the store named by o.Backend.
func Open(ctx context.Context, o Options) (Store, error) {
	switch o.Backend {
	case "", BackendFile:
		return NewFileStore(o.Dir, o.TTL)
	case BackendRedis:
		return NewRedisStore(ctx, o.RedisAddr, o.TTL)
	}
	return nil, errors.Newf("unknown history backend %q: valid values are file, redis", o.Backend)
}

// Track stores value under key and returns the snapshot it replaces, nil on
// first use. The returned current value is normalized the same way stored
// values are, so the two compare cleanly.
func Track(ctx context.Context, s Store, key string, value any) (prev *Snapshot, current any, err error) {
	if key == "" {
		return nil, nil, ErrEmptyKey
	}
	current, err = Normalize(value)
	if err != nil {
		return nil, nil, err
	}
	prev, err = s.Get(ctx, key)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load snapshot %q", key)
	}
	if err := s.Put(ctx, &Snapshot{Key: key, Taken: time.Now().UTC(), Value: current}); err != nil {
		return nil, nil, errors.Wrapf(err, "store snapshot %q", key)
	}
	return prev, current, nil
}

// Normalize reduces v to the value shapes a snapshot can hold: nil, bool,
// int64, uint64, float64, string, []byte, time.Time, []any and
// *ordered.Map. Native maps are sorted by key; structs go through their JSON
// form.
func Normalize(v any) (any, error) {
	return normalize(v, 0)
}

func normalize(v any, depth int) (any, error) {
	if depth > maxNormalizeDepth {
		return nil, errors.Newf("value nested deeper than %d levels", maxNormalizeDepth)
	}
	switch t := v.(type) {
	case nil, bool, int64, uint64, float64, string, []byte, time.Time:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "number %q", string(t))
		}
		return f, nil
	case *ordered.Map:
		out := ordered.New(t.Len())
		var err error
		t.Range(func(k string, e any) bool {
			var n any
			n, err = normalize(e, depth+1)
			out.Set(k, n)
			return err == nil
		})
		return out, err
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalize(e, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	//exhaustive:ignore // remaining kinds fall back to JSON
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface(), depth+1)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			n, err := normalize(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		keys := make([]string, 0, rv.Len())
		vals := make(map[string]reflect.Value, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			k := fmt.Sprint(it.Key().Interface())
			keys = append(keys, k)
			vals[k] = it.Value()
		}
		sort.Strings(keys)
		out := ordered.New(len(keys))
		for _, k := range keys {
			n, err := normalize(vals[k].Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(k, n)
		}
		return out, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %T", v)
	}
	parsed, err := ordered.ParseJSON(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %T", v)
	}
	return normalize(parsed, depth+1)
}

type record struct {
	Key   string    `msgpack:"key"`
	Taken time.Time `msgpack:"taken"`
	Value value     `msgpack:"value"`
}

// value encodes ordered maps as msgpack maps in key order and decodes
// every msgpack map back into an *ordered.Map.
type value struct{ v any }

var (
	_ msgpack.CustomEncoder = value{}
	_ msgpack.CustomDecoder = (*value)(nil)
)

func (x value) EncodeMsgpack(e *msgpack.Encoder) error {
	return encodeValue(e, x.v)
}

func encodeValue(e *msgpack.Encoder, v any) error {
	switch t := v.(type) {
	case *ordered.Map:
		if err := e.EncodeMapLen(t.Len()); err != nil {
			return err
		}
		var err error
		t.Range(func(k string, val any) bool {
			if err = e.EncodeString(k); err != nil {
				return false
			}
			err = encodeValue(e, val)
			return err == nil
		})
		return err
	case []any:
		if err := e.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for _, el := range t {
			if err := encodeValue(e, el); err != nil {
				return err
			}
		}
		return nil
	}
	return e.Encode(v)
}

func (x *value) DecodeMsgpack(d *msgpack.Decoder) error {
	d.SetMapDecoder(decodeOrdered)
	v, err := d.DecodeInterface()
	if err != nil {
		return err
	}
	x.v = v
	return nil
}

func decodeOrdered(d *msgpack.Decoder) (any, error) {
	n, err := d.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	m := ordered.New(n)
	for i := 0; i < n; i++ {
		k, err := d.DecodeString()
		if err != nil {
			return nil, err
		}
		v, err := d.DecodeInterface()
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}
	return m, nil
}

// Encode serializes s.
func Encode(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(record{Key: s.Key, Taken: s.Taken, Value: value{s.Value}}); err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return buf.Bytes(), nil
}

// Decode parses data written by Encode.
func Decode(data []byte) (*Snapshot, error) {
	var r record
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &Snapshot{Key: r.Key, Taken: r.Taken, Value: r.Value.v}, nil
}
