// Package loader parses JSON, NDJSON, YAML and TOML input into values the
// inspector renders. Objects become *ordered.Map so documents keep the key
// order they were written in; JSON numbers stay json.Number.
package loader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

// Format names a supported input syntax.
type Format string

const (
	FormatAuto   Format = ""
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatYAML   Format = "yaml"
	FormatTOML   Format = "toml"
)

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("empty input")

// ParseFormat maps a flag value or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "ndjson", "jsonl":
		return FormatNDJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return FormatAuto, errors.Newf("unsupported input format %q: valid values are json, ndjson, yaml, toml", s)
}

// LoadData parses input into one value per document. Single-document input
// yields a one-element slice.
func LoadData(input string) ([]any, error) {
	return Load(input, FormatAuto)
}

// Load parses input as f, sniffing the syntax when f is FormatAuto.
func Load(input string, f Format) ([]any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmpty
	}
	if f != FormatAuto {
		return parse(input, f)
	}
	f = Detect(input)
	docs, err := parse(input, f)
	if err != nil && f != FormatYAML {
		// Flow mappings such as {a} are YAML but not JSON.
		if ydocs, yerr := loadYAML(input); yerr == nil {
			return ydocs, nil
		}
	}
	return docs, err
}

func parse(input string, f Format) ([]any, error) {
	switch f {
	case FormatJSON:
		return loadJSON(input)
	case FormatNDJSON:
		return loadNDJSON(input)
	case FormatTOML:
		return loadTOML(input)
	default:
		return loadYAML(input)
	}
}

// Detect guesses the syntax of input.
func Detect(input string) Format {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "---") || strings.Contains(input, "\n---") {
		return FormatYAML
	}
	lines := strings.Split(input, "\n")
	if len(lines) > 1 && isLikelyNDJSON(lines) {
		return FormatNDJSON
	}
	// TOML [section] headers look like JSON arrays, so check them first.
	if isLikelyTOML(lines) {
		return FormatTOML
	}
	if strings.HasPrefix(input, "{") || strings.HasPrefix(input, "[") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadRoot parses input into a single value. Multi-document input becomes
// a slice of documents.
func LoadRoot(input string) (any, error) {
	docs, err := LoadData(input)
	if err != nil {
		return nil, err
	}
	return root(docs), nil
}

// LoadReader reads r to EOF and parses it as f.
func LoadReader(r io.Reader, f Format) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}
	docs, err := Load(string(data), f)
	if err != nil {
		return nil, err
	}
	return root(docs), nil
}

// LoadFile parses the file at path. The extension picks the parser; when
// that parser fails the content is sniffed instead.
func LoadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	f, ferr := ParseFormat(filepath.Ext(path))
	if ferr == nil && f != FormatAuto {
		if docs, err := Load(string(data), f); err == nil {
			return root(docs), nil
		}
	}
	docs, err := Load(string(data), FormatAuto)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return root(docs), nil
}

func root(docs []any) any {
	if len(docs) == 1 {
		return docs[0]
	}
	return docs
}

func loadJSON(input string) ([]any, error) {
	v, err := ordered.ParseJSON([]byte(input))
	if err != nil {
		return nil, errors.Wrap(err, "invalid JSON")
	}
	return []any{v}, nil
}

// loadNDJSON parses one JSON value per line. Lines that are not JSON are
// kept as plain strings.
func loadNDJSON(input string) ([]any, error) {
	lines := strings.Split(input, "\n")
	out := make([]any, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := ordered.ParseJSON([]byte(line))
		if err != nil {
			out = append(out, line)
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func loadYAML(input string) ([]any, error) {
	dec := yaml.NewDecoder(strings.NewReader(input))
	var out []any
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "invalid YAML")
		}
		v, err := fromYAML(&doc)
		if err != nil {
			return nil, errors.Wrap(err, "invalid YAML")
		}
		if v != nil {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no documents found in YAML input")
	}
	return out, nil
}

// fromYAML converts a node tree, keeping mapping order.
func fromYAML(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.MappingNode:
		m := ordered.New(len(n.Content) / 2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Tag == "!!merge" {
				if err := mergeYAML(m, v); err != nil {
					return nil, err
				}
				continue
			}
			val, err := fromYAML(v)
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, val)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// mergeYAML applies a "<<" merge key. Keys already present win.
func mergeYAML(dst *ordered.Map, src *yaml.Node) error {
	v, err := fromYAML(src)
	if err != nil {
		return err
	}
	var maps []*ordered.Map
	switch t := v.(type) {
	case *ordered.Map:
		maps = append(maps, t)
	case []any:
		for _, e := range t {
			if m, ok := e.(*ordered.Map); ok {
				maps = append(maps, m)
			}
		}
	default:
		return errors.Newf("merge value is %T, not a mapping", v)
	}
	for _, m := range maps {
		m.Range(func(k string, val any) bool {
			if _, ok := dst.Get(k); !ok {
				dst.Set(k, val)
			}
			return true
		})
	}
	return nil
}

// loadTOML parses a TOML document. go-toml decodes tables into native maps,
// so TOML keys render sorted rather than in file order.
func loadTOML(input string) ([]any, error) {
	var data map[string]any
	dec := toml.NewDecoder(bytes.NewReader([]byte(input)))
	if err := dec.Decode(&data); err != nil {
		return nil, errors.Wrap(err, "invalid TOML")
	}
	return []any{data}, nil
}

// isLikelyNDJSON requires several non-empty lines, most of which open a
// JSON object or array. YAML lists of bare items stay YAML.
func isLikelyNDJSON(lines []string) bool {
	jsonCount, nonEmpty := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			jsonCount++
		}
	}
	return nonEmpty > 1 && jsonCount > nonEmpty/2
}

var (
	tomlKey     = `(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+')`
	tomlSection = regexp.MustCompile(`^\[{1,2}` + tomlKey + `(?:\.` + tomlKey + `)*\]{1,2}\s*$`)
	tomlPair    = regexp.MustCompile(`^` + tomlKey + `(?:\.` + tomlKey + `)*\s*=\s*.+$`)
)

// isLikelyTOML looks for unindented section headers, or a majority of
// key = value lines.
func isLikelyTOML(lines []string) bool {
	sections, pairs, nonEmpty := 0, 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		nonEmpty++
		if tomlSection.MatchString(line) {
			sections++
		}
		if tomlPair.MatchString(trimmed) {
			pairs++
		}
	}
	return sections > 0 || (nonEmpty > 0 && pairs > nonEmpty/2)
}
