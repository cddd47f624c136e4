// Package config loads the dumpx YAML configuration: an embedded default
// file, optionally overlaid by a user file.
package config

import (
	"bytes"
	_ "embed"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/dumpx/pkg/inspect"
)

//go:embed default_config.yaml
var embeddedDefault []byte

// Config is the merged configuration.
type Config struct {
	App     App            `yaml:"app"`
	Dump    map[string]any `yaml:"dump"`
	History History        `yaml:"history"`
	Server  Server         `yaml:"server"`
}

// App holds process-wide settings.
type App struct {
	LogLevel *int8 `yaml:"log_level,omitempty"`
}

// History configures the snapshot store behind --history-key.
type History struct {
	Backend   string        `yaml:"backend,omitempty"`
	Dir       string        `yaml:"dir,omitempty"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty"`
}

// Server configures dumpx serve.
type Server struct {
	Addr        string        `yaml:"addr,omitempty"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
}

var (
	defaultOnce sync.Once
	defaultCfg  Config
	defaultErr  error
)

// DefaultYAML returns a copy of the embedded default file.
func DefaultYAML() []byte {
	return append([]byte(nil), embeddedDefault...)
}

// Default parses the embedded default file.
func Default() (Config, error) {
	defaultOnce.Do(func() {
		defaultCfg, defaultErr = Parse(embeddedDefault)
		if defaultErr != nil {
			defaultErr = errors.Wrap(defaultErr, "decode embedded default config")
		}
	})
	return defaultCfg.clone(), defaultErr
}

// Parse decodes one YAML document. Unknown top-level sections are errors.
func Parse(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load returns the default configuration merged with the file at path.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	base, err := Default()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	user, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decode config %s", path)
	}
	merged := Merge(base, user)
	if _, err := merged.Options(nil); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return merged, nil
}

// Merge overlays the set fields of over onto base. Dump keys are merged
// individually; a redactionRules list replaces the base list.
func Merge(base, over Config) Config {
	out := base.clone()
	if over.App.LogLevel != nil {
		lvl := *over.App.LogLevel
		out.App.LogLevel = &lvl
	}
	for k, v := range over.Dump {
		out.Dump[k] = v
	}
	if over.History.Backend != "" {
		out.History.Backend = over.History.Backend
	}
	if over.History.Dir != "" {
		out.History.Dir = over.History.Dir
	}
	if over.History.RedisAddr != "" {
		out.History.RedisAddr = over.History.RedisAddr
	}
	if over.History.TTL != 0 {
		out.History.TTL = over.History.TTL
	}
	if over.Server.Addr != "" {
		out.Server.Addr = over.Server.Addr
	}
	if over.Server.ReadTimeout != 0 {
		out.Server.ReadTimeout = over.Server.ReadTimeout
	}
	return out
}

// Options converts the dump section, then overrides, into render options.
func (c Config) Options(overrides map[string]any) (inspect.Options, error) {
	o, err := inspect.OptionsFromMap(c.Dump)
	if err != nil {
		return o, errors.Wrap(err, "dump")
	}
	if len(overrides) > 0 {
		if o, err = o.Merge(overrides); err != nil {
			return o, err
		}
	}
	return o, o.Validate()
}

// LogLevel returns the configured zap level, 0 (info) when unset.
func (c Config) LogLevel() int8 {
	if c.App.LogLevel == nil {
		return 0
	}
	return *c.App.LogLevel
}

// Marshal renders c as YAML with the dump keys sorted.
func (c Config) Marshal() ([]byte, error) {
	keys := make([]string, 0, len(c.Dump))
	for k := range c.Dump {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dump := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		var v yaml.Node
		if err := v.Encode(c.Dump[k]); err != nil {
			return nil, errors.Wrapf(err, "encode dump.%s", k)
		}
		dump.Content = append(dump.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &v)
	}
	doc := struct {
		App     App        `yaml:"app"`
		Dump    *yaml.Node `yaml:"dump"`
		History History    `yaml:"history"`
		Server  Server     `yaml:"server"`
	}{c.App, dump, c.History, c.Server}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Config) clone() Config {
	out := c
	out.Dump = make(map[string]any, len(c.Dump))
	for k, v := range c.Dump {
		out.Dump[k] = v
	}
	if c.App.LogLevel != nil {
		lvl := *c.App.LogLevel
		out.App.LogLevel = &lvl
	}
	return out
}
