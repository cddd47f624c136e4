package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oakwood-commons/dumpx/internal/redact"
	"github.com/oakwood-commons/dumpx/pkg/inspect"
)

type flagKind int

const (
	flagInt flagKind = iota
	flagBool
	flagString
)

// optionFlag maps a command-line flag onto an inspect option key.
type optionFlag struct {
	name  string
	key   string
	kind  flagKind
	usage string
}

var optionFlags = []optionFlag{
	{"max-depth", "maxDepth", flagInt, "maximum nesting depth rendered"},
	{"max-items", "maxItems", flagInt, "children shown per container before truncating"},
	{"max-items-hard-limit", "maxItemsHardLimit", flagInt, "upper bound for --max-items"},
	{"string-limit", "stringLengthLimit", flagInt, "characters shown per string"},
	{"stack-limit", "stackLimit", flagInt, "stack frames shown per exception"},
	{"message-limit", "messageLimit", flagInt, "characters shown per exception message"},
	{"indent-size", "indentSize", flagInt, "indent width for terminal output"},
	{"indent-style", "indentStyle", flagString, "terminal indent: spaces|tabs"},
	{"theme", "theme", flagString, "web theme: light|dark|auto"},
	{"root-expression", "expression", flagString, "expression naming the root value"},
	{"expand-exceptions", "expandExceptions", flagBool, "open exception nodes in web output"},
	{"show-context", "showContext", flagBool, "append origin, stack and environment"},
	{"include-variables", "includeVariableSnapshots", flagBool, "include variable snapshots in the context node"},
	{"detect-json", "autoDetectJson", flagBool, "render strings holding JSON as JSON"},
	{"detect-sql", "autoDetectSql", flagBool, "render strings holding SQL as formatted SQL"},
	{"table-meta", "showTableVariableMeta", flagBool, "show type metadata in web table views"},
	{"show-expressions", "showExpressions", flagBool, "annotate nodes with their access expression"},
	{"show-performance", "showPerformance", flagBool, "append render timing"},
	{"redact-unsafe", "redactUnsafeDetails", flagBool, "strip unsafe details from exception messages"},
}

// registerOptionFlags adds one flag per option, defaulting to the built-in
// option values. Only flags the user sets override the configuration.
func registerOptionFlags(fs *pflag.FlagSet) {
	def := inspect.DefaultOptions()
	ints := map[string]int{
		"maxDepth":          def.MaxDepth,
		"maxItems":          def.MaxItems,
		"maxItemsHardLimit": def.MaxItemsHardLimit,
		"stringLengthLimit": def.StringLengthLimit,
		"stackLimit":        def.StackLimit,
		"messageLimit":      def.MessageLimit,
		"indentSize":        def.IndentSize,
	}
	strs := map[string]string{
		"indentStyle": def.IndentStyle,
		"theme":       def.Theme,
		"expression":  def.Expression,
	}
	bools := map[string]bool{
		"expandExceptions":         def.ExpandExceptions,
		"showContext":              def.ShowContext,
		"includeVariableSnapshots": def.IncludeVariableSnapshots,
		"autoDetectJson":           def.AutoDetectJSON,
		"autoDetectSql":            def.AutoDetectSQL,
		"showTableVariableMeta":    def.ShowTableVariableMeta,
		"showExpressions":          def.ShowExpressions,
		"showPerformance":          def.ShowPerformance,
		"redactUnsafeDetails":      def.RedactUnsafeDetails,
	}
	for _, f := range optionFlags {
		switch f.kind {
		case flagInt:
			fs.Int(f.name, ints[f.key], f.usage)
		case flagBool:
			fs.Bool(f.name, bools[f.key], f.usage)
		case flagString:
			fs.String(f.name, strs[f.key], f.usage)
		}
	}
}

// optionOverrides returns the option keys of the flags set on fs.
func optionOverrides(fs *pflag.FlagSet) map[string]any {
	m := map[string]any{}
	for _, f := range optionFlags {
		if fl := fs.Lookup(f.name); fl != nil && fl.Changed {
			m[f.key] = fl.Value.String()
		}
	}
	return m
}

// options merges config, flags and --redact patterns, in that order.
func (a *app) options(cmd *cobra.Command) (inspect.Options, error) {
	overrides := optionOverrides(cmd.Flags())
	if a.run.NoColor {
		overrides["color"] = false
	}
	o, err := a.cfg.Options(overrides)
	if err != nil {
		return o, errors.Wrap(err, "options")
	}
	for _, p := range a.redact {
		o.RedactionRules = append(o.RedactionRules, redact.Spec{Pattern: p})
	}
	if err := o.Validate(); err != nil {
		return o, errors.Wrap(err, "options")
	}
	return o, nil
}

func (a *app) channel() (inspect.Channel, error) {
	return inspect.ParseChannel(a.run.Format)
}
