package limiter

import (
	"reflect"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

// Defaults used when an option is not supplied.
const (
	DefaultMaxDepth     = 8
	DefaultMaxItems     = 200
	DefaultHardLimit    = 1000
	DefaultStringLength = 500
	DefaultStackLimit   = 20
	DefaultMessageLimit = 1000
)

// Limits bounds the work done by one transform call.
type Limits struct {
	MaxDepth     int // containers at this depth are not expanded
	MaxItems     int // entries shown per container
	HardLimit    int // ceiling on MaxItems regardless of configuration
	StringLength int // runes shown per string (0 = unlimited)
	StackLimit   int // frames shown per exception (0 = unlimited)
	MessageLimit int // runes shown per exception message (0 = unlimited)
}

// Default returns the built-in limits.
func Default() Limits {
	return Limits{
		MaxDepth:     DefaultMaxDepth,
		MaxItems:     DefaultMaxItems,
		HardLimit:    DefaultHardLimit,
		StringLength: DefaultStringLength,
		StackLimit:   DefaultStackLimit,
		MessageLimit: DefaultMessageLimit,
	}
}

// Validate rejects negative values and an unusable item limit.
func (l Limits) Validate() error {
	checks := []struct {
		name string
		v    int
	}{
		{"maxDepth", l.MaxDepth},
		{"maxItems", l.MaxItems},
		{"maxItemsHardLimit", l.HardLimit},
		{"stringLengthLimit", l.StringLength},
		{"stackLimit", l.StackLimit},
		{"messageLimit", l.MessageLimit},
	}
	for _, c := range checks {
		if c.v < 0 {
			return errors.Newf("%s must be non-negative, got %d", c.name, c.v)
		}
	}
	if l.MaxItems == 0 {
		return errors.New("maxItems must be at least 1")
	}
	return nil
}

// Items returns min(MaxItems, HardLimit), ignoring a zero hard limit.
func (l Limits) Items() int {
	if l.HardLimit > 0 && l.HardLimit < l.MaxItems {
		return l.HardLimit
	}
	return l.MaxItems
}

// Truncate cuts s to n runes. n <= 0 means no limit.
func Truncate(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// Window picks a run of records (list elements or object entries) out of
// the selected value.
type Window struct {
	Limit  int // 0 keeps all
	Offset int // ignored when Tail is set
	Tail   int // last N records; excludes Limit
}

// Validate rejects negative counts and Limit combined with Tail.
func (w Window) Validate() error {
	for _, f := range []struct {
		flag string
		n    int
	}{{"limit", w.Limit}, {"offset", w.Offset}, {"tail", w.Tail}} {
		if f.n < 0 {
			return errors.Newf("--%s must be non-negative, got %d", f.flag, f.n)
		}
	}
	if w.Limit > 0 && w.Tail > 0 {
		return errors.New("--limit and --tail are mutually exclusive")
	}
	return nil
}

// IsActive reports whether any count is set.
func (w Window) IsActive() bool {
	return w.Limit > 0 || w.Offset > 0 || w.Tail > 0
}

func (w Window) bounds(length int) (start, end int) {
	if w.Tail > 0 {
		start = length - w.Tail
		if start < 0 {
			start = 0
		}
		return start, length
	}
	start = w.Offset
	if start > length {
		start = length
	}
	end = length
	if w.Limit > 0 && start+w.Limit < length {
		end = start + w.Limit
	}
	return start, end
}

// Apply windows lists and ordered maps. Maps keep insertion order;
// other values are returned unchanged.
func (w Window) Apply(data any) any {
	if !w.IsActive() {
		return data
	}
	switch v := data.(type) {
	case []any:
		start, end := w.bounds(len(v))
		return v[start:end]
	case *ordered.Map:
		keys := v.Keys()
		start, end := w.bounds(len(keys))
		out := ordered.New(end - start)
		for _, k := range keys[start:end] {
			val, _ := v.Get(k)
			out.Set(k, val)
		}
		return out
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Slice {
		start, end := w.bounds(rv.Len())
		return rv.Slice(start, end).Interface()
	}
	return data
}
