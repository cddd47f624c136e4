package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/oakwood-commons/dumpx/internal/config"
	"github.com/oakwood-commons/dumpx/internal/limiter"
	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
	"github.com/oakwood-commons/dumpx/pkg/core"
	"github.com/oakwood-commons/dumpx/pkg/logger"
	"github.com/oakwood-commons/dumpx/pkg/settings"
)

var errWatchStdin = errors.New("--watch needs a file argument")

// app carries the state shared by the root command and its subcommands.
type app struct {
	run *settings.Run

	configPath    string
	debug         bool
	inputFormat   string
	decode        bool
	htmlOut       string
	sqlitePath    string
	exprFunctions bool
	redact        []string
	window        limiter.Window

	cfg     config.Config
	log     logr.Logger
	engine  *core.Engine
	explain sqlfmt.Explainer

	// openTTY is swapped in tests.
	openTTY func() (io.ReadCloser, io.WriteCloser, error)
}

func newApp() *app {
	return &app{
		run:     settings.NewCliParams(),
		log:     logr.Discard(),
		openTTY: openTerminalIO,
	}
}

// NewRootCmd builds the dumpx command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   settings.CliBinaryName + " [file|-]",
		Short: "dumpx - depth-bounded value inspector",
		Long: `dumpx renders a JSON, NDJSON, YAML or TOML document as a bounded, redacted
tree for the terminal or for the browser. Nested JSON strings, SQL statements
and error values are recognised and shown in their own form.

Input is read from the file argument, or from stdin when the argument is
omitted or "-".`,
		Example: `  dumpx order.json
  kubectl get pod web -o json | dumpx --max-depth 3
  dumpx order.json -e '_.items.filter(i, i.qty > 1)'
  dumpx events.ndjson --tail 20
  dumpx order.json --format web -o order.html
  dumpx order.json --history-key order-42
  dumpx diff before.json after.json`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           versionString(),
		PersistentPreRunE: a.setup,
		RunE:              a.runDump,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a YAML config file merged over the defaults")
	pf.BoolVar(&a.debug, "debug", false, "log at debug level")
	pf.StringVar(&a.run.Format, "format", "cli", "output channel: cli|web")
	pf.StringVarP(&a.run.OutPath, "out", "o", "", "write output to this file instead of stdout")
	pf.BoolVar(&a.run.NoColor, "no-color", false, "disable colour in terminal output")
	pf.StringVar(&a.sqlitePath, "sqlite", "", "SQLite database used to EXPLAIN detected SQL")
	pf.StringArrayVar(&a.redact, "redact", nil, "extra redaction pattern (key name or /regex/flags); repeatable")
	registerOptionFlags(pf)

	f := root.Flags()
	f.StringVarP(&a.run.Input.Expr, "expr", "e", "", "CEL expression selecting what to dump, with '_' as the document root")
	f.BoolVar(&a.exprFunctions, "expr-functions", false, "list the CEL functions available to --expr and exit")
	f.StringVar(&a.inputFormat, "input-format", "auto", "input format: auto|json|ndjson|yaml|toml")
	f.BoolVar(&a.decode, "decode", false, "expand strings holding JSON or YAML documents before dumping")
	f.BoolVarP(&a.run.Interactive, "interactive", "i", false, "show terminal output in a scrollable pager")
	f.BoolVarP(&a.run.Watch, "watch", "w", false, "re-render whenever the input file changes")
	f.StringVar(&a.run.HistoryKey, "history-key", "", "store the value under this key and show the diff against the previous run")
	f.StringVar(&a.htmlOut, "html", "", "also write a web rendering to this file")
	f.IntVar(&a.window.Limit, "limit", 0, "dump only the first N records of the selected list or object")
	f.IntVar(&a.window.Offset, "offset", 0, "skip the first N records")
	f.IntVar(&a.window.Tail, "tail", 0, "dump only the last N records (excludes --limit, ignores --offset)")

	root.AddCommand(
		newDiffCmd(a),
		newSQLCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// setup loads configuration and attaches the logger and run settings to the
// command context.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(resolveConfigPath(a.configPath))
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel()
	if a.debug {
		level = -1
	}
	a.run.MinLogLevel = level
	a.log = logger.Get(level).WithValues(logger.CommandKey, cmd.Name())

	ctx := logger.WithLogger(cmd.Context(), &a.log)
	cmd.SetContext(settings.IntoContext(ctx, a.run))
	return nil
}

// resolveConfigPath returns explicit when set, otherwise
// $XDG_CONFIG_HOME/dumpx/config.yaml or ~/.config/dumpx/config.yaml if one
// exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidate := ""
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate = filepath.Join(xdg, settings.CliBinaryName, "config.yaml")
	} else if home, err := os.UserHomeDir(); err == nil {
		candidate = filepath.Join(home, ".config", settings.CliBinaryName, "config.yaml")
	}
	if candidate != "" {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}

func (a *app) runDump(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		a.run.Input.Path = args[0]
	}
	closeDB, err := a.open(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if a.exprFunctions {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(a.engine.Functions(), "\n"))
		return err
	}
	if a.run.Watch {
		if a.run.Input.FromStdin() {
			return errWatchStdin
		}
		return a.watch(cmd, func() error { return a.dumpOnce(cmd) })
	}
	return a.dumpOnce(cmd)
}

func (a *app) dumpOnce(cmd *cobra.Command) error {
	v, err := a.loadValue(cmd, a.run.Input.Path)
	if err != nil {
		return err
	}
	if a.run.HistoryKey != "" {
		out, tracked, err := a.trackHistory(cmd.Context(), v)
		if err != nil {
			return err
		}
		if tracked {
			return a.write(cmd, a.title(), out)
		}
	}
	return a.emit(cmd, v)
}

func (a *app) title() string {
	if a.run.Input.FromStdin() {
		return "stdin"
	}
	return filepath.Base(a.run.Input.Path)
}

func versionString() string {
	v := settings.VersionInformation
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", settings.CliBinaryName, v.BuildVersion, v.Commit, v.BuildTime, runtime.Version())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dumpx version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return err
		},
	}
}
