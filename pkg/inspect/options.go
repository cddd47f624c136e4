package inspect

import (
	"encoding/json"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/cockroachdb/errors"

	"github.com/oakwood-commons/dumpx/internal/limiter"
	"github.com/oakwood-commons/dumpx/internal/redact"
)

// Indent styles for the terminal renderer.
const (
	IndentSpaces = "spaces"
	IndentTabs   = "tabs"
)

// Themes for the HTML renderer.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// Options configures one render request. The zero value is not useful;
// start from DefaultOptions.
type Options struct {
	MaxDepth          int
	MaxItems          int
	MaxItemsHardLimit int
	StringLengthLimit int
	StackLimit        int
	MessageLimit      int

	ExpandExceptions bool
	ShowContext      bool
	Theme            string
	RedactionRules   []redact.Spec

	IndentStyle string
	IndentSize  int

	AutoDetectJSON        bool
	AutoDetectSQL         bool
	ShowTableVariableMeta bool
	ShowExpressions       bool
	ShowPerformance       bool
	RedactUnsafeDetails   bool

	// Color forces terminal colour on or off; nil detects a terminal.
	Color *bool
	// Expression seeds the path of the root value; "" means "$value".
	Expression string

	IncludeVariableSnapshots bool
}

// DefaultOptions returns the built-in configuration.
func DefaultOptions() Options {
	l := limiter.Default()
	return Options{
		MaxDepth:          l.MaxDepth,
		MaxItems:          l.MaxItems,
		MaxItemsHardLimit: l.HardLimit,
		StringLengthLimit: l.StringLength,
		StackLimit:        l.StackLimit,
		MessageLimit:      l.MessageLimit,
		ExpandExceptions:  true,
		Theme:             ThemeAuto,
		IndentStyle:       IndentSpaces,
		IndentSize:        2,
	}
}

// Limits returns the traversal limits carried by o.
func (o Options) Limits() limiter.Limits {
	return limiter.Limits{
		MaxDepth:     o.MaxDepth,
		MaxItems:     o.MaxItems,
		HardLimit:    o.MaxItemsHardLimit,
		StringLength: o.StringLengthLimit,
		StackLimit:   o.StackLimit,
		MessageLimit: o.MessageLimit,
	}
}

// Validate checks limits, enumerations and redaction patterns.
func (o Options) Validate() error {
	if err := o.Limits().Validate(); err != nil {
		return err
	}
	switch o.IndentStyle {
	case IndentSpaces, IndentTabs:
	default:
		return errors.Newf("indentStyle must be %q or %q, got %q", IndentSpaces, IndentTabs, o.IndentStyle)
	}
	if o.IndentSize < 0 {
		return errors.Newf("indentSize must be non-negative, got %d", o.IndentSize)
	}
	switch o.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		return errors.Newf("theme must be light, dark or auto, got %q", o.Theme)
	}
	if _, err := redact.Compile(o.RedactionRules); err != nil {
		return err
	}
	return nil
}

// OptionsFromMap overlays the recognized keys of m onto DefaultOptions.
// Unknown keys and values of the wrong type are errors.
func OptionsFromMap(m map[string]any) (Options, error) {
	o := DefaultOptions()
	err := o.apply(m)
	return o, err
}

// Merge returns o with the keys of m applied.
func (o Options) Merge(m map[string]any) (Options, error) {
	err := o.apply(m)
	return o, err
}

func (o *Options) apply(m map[string]any) error {
	ints := map[string]*int{
		"maxDepth":          &o.MaxDepth,
		"maxItems":          &o.MaxItems,
		"maxItemsHardLimit": &o.MaxItemsHardLimit,
		"stringLengthLimit": &o.StringLengthLimit,
		"stackLimit":        &o.StackLimit,
		"messageLimit":      &o.MessageLimit,
		"indentSize":        &o.IndentSize,
	}
	bools := map[string]*bool{
		"expandExceptions":         &o.ExpandExceptions,
		"showContext":              &o.ShowContext,
		"autoDetectJson":           &o.AutoDetectJSON,
		"autoDetectSql":            &o.AutoDetectSQL,
		"showTableVariableMeta":    &o.ShowTableVariableMeta,
		"showExpressions":          &o.ShowExpressions,
		"showPerformance":          &o.ShowPerformance,
		"redactUnsafeDetails":      &o.RedactUnsafeDetails,
		"includeVariableSnapshots": &o.IncludeVariableSnapshots,
	}
	strs := map[string]*string{
		"theme":       &o.Theme,
		"indentStyle": &o.IndentStyle,
		"expression":  &o.Expression,
	}
	for k, v := range m {
		switch {
		case ints[k] != nil:
			n, err := toInt(v)
			if err != nil {
				return errors.Wrapf(err, "option %s", k)
			}
			*ints[k] = n
		case bools[k] != nil:
			b, err := toBool(v)
			if err != nil {
				return errors.Wrapf(err, "option %s", k)
			}
			*bools[k] = b
		case strs[k] != nil:
			s, ok := v.(string)
			if !ok {
				return errors.Newf("option %s: expected string, got %T", k, v)
			}
			*strs[k] = s
		case k == "color":
			if v == nil {
				o.Color = nil
				continue
			}
			b, err := toBool(v)
			if err != nil {
				return errors.Wrapf(err, "option color")
			}
			o.Color = &b
		case k == "redactionRules":
			specs, err := toSpecs(v)
			if err != nil {
				return errors.Wrapf(err, "option redactionRules")
			}
			o.RedactionRules = specs
		default:
			return errors.Newf("unknown option %q", k)
		}
	}
	return nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int8:
		return safecast.Convert[int](t)
	case int16:
		return safecast.Convert[int](t)
	case int32:
		return safecast.Convert[int](t)
	case int64:
		return safecast.Convert[int](t)
	case uint:
		return safecast.Convert[int](t)
	case uint8:
		return safecast.Convert[int](t)
	case uint16:
		return safecast.Convert[int](t)
	case uint32:
		return safecast.Convert[int](t)
	case uint64:
		return safecast.Convert[int](t)
	case float32:
		return safecast.Convert[int](t)
	case float64:
		return safecast.Convert[int](t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return safecast.Convert[int](i)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return safecast.Convert[int](f)
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	}
	return 0, errors.Newf("expected integer, got %T", v)
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	}
	return false, errors.Newf("expected boolean, got %T", v)
}

func toSpecs(v any) ([]redact.Spec, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []redact.Spec:
		return t, nil
	case []map[string]any:
		out := make([]redact.Spec, 0, len(t))
		for _, m := range t {
			s, err := specFromMap(m)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case []any:
		out := make([]redact.Spec, 0, len(t))
		for i, e := range t {
			var m map[string]any
			switch r := e.(type) {
			case map[string]any:
				m = r
			case string:
				m = map[string]any{"pattern": r}
			case interface{ ToMap() map[string]any }:
				m = r.ToMap()
			default:
				return nil, errors.Newf("rule %d: expected object, got %T", i, e)
			}
			s, err := specFromMap(m)
			if err != nil {
				return nil, errors.Wrapf(err, "rule %d", i)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errors.Newf("expected list of rules, got %T", v)
}

func specFromMap(m map[string]any) (redact.Spec, error) {
	var s redact.Spec
	for k, v := range m {
		str, ok := v.(string)
		if !ok && v != nil {
			return s, errors.Newf("%s: expected string, got %T", k, v)
		}
		switch k {
		case "pattern":
			s.Pattern = str
		case "replacement":
			s.Replacement = str
		case "scope":
			s.Scope = str
		default:
			return s, errors.Newf("unknown rule field %q", k)
		}
	}
	return s, nil
}
