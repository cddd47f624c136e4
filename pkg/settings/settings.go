// Package settings holds build metadata and per-invocation settings of the
// dumpx CLI.
package settings

// CliBinaryName is the canonical binary name.
const CliBinaryName = "dumpx"

// VersionInformation is set at build time via ldflags.
var VersionInformation = VersionInfo{
	Commit:       "unknown",
	BuildVersion: "v0.0.0-nightly",
	BuildTime:    "unknown",
}

// VersionInfo describes the running binary.
type VersionInfo struct {
	Commit       string
	BuildVersion string
	BuildTime    string
}

// Input names where the dumped value comes from.
type Input struct {
	// Path is a file path, or "-" / "" for stdin.
	Path string
	// Expr is an optional CEL expression applied after loading.
	Expr string
}

// FromStdin reports whether the value is read from standard input.
func (i Input) FromStdin() bool { return i.Path == "" || i.Path == "-" }

// Run holds the settings of one CLI invocation.
type Run struct {
	MinLogLevel int8
	Input       Input
	Format      string
	OutPath     string
	HistoryKey  string
	Interactive bool
	Watch       bool
	NoColor     bool
}

// NewCliParams returns the defaults used before flags are parsed.
func NewCliParams() *Run {
	return &Run{
		Input:  Input{Path: "-"},
		Format: "cli",
	}
}
