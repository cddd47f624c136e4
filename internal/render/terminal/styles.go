package terminal

import (
	"charm.land/lipgloss/v2"

	"github.com/oakwood-commons/dumpx/internal/jsonfmt"
	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
)

var (
	defaultArrayColor     = lipgloss.Color("12")
	defaultObjectColor    = lipgloss.Color("13")
	defaultKeyColor       = lipgloss.Color("14")
	defaultStringColor    = lipgloss.Color("10")
	defaultNumberColor    = lipgloss.Color("11")
	defaultBoolColor      = lipgloss.Color("208")
	defaultNullColor      = lipgloss.Color("244")
	defaultUnknownColor   = lipgloss.Color("9")
	defaultMutedColor     = lipgloss.Color("240")
	defaultExceptionColor = lipgloss.Color("196")
	defaultAddedColor     = lipgloss.Color("2")
	defaultRemovedColor   = lipgloss.Color("1")
	defaultModifiedColor  = lipgloss.Color("3")
)

// Styles holds the lipgloss style for each semantic category.
type Styles struct {
	Array     lipgloss.Style
	Object    lipgloss.Style
	Key       lipgloss.Style
	String    lipgloss.Style
	Number    lipgloss.Style
	Bool      lipgloss.Style
	Null      lipgloss.Style
	Unknown   lipgloss.Style
	Notice    lipgloss.Style
	Muted     lipgloss.Style
	Exception lipgloss.Style
	Added     lipgloss.Style
	Removed   lipgloss.Style
	Modified  lipgloss.Style

	SQL  sqlfmt.Styles
	JSON map[jsonfmt.TokenClass]lipgloss.Style
}

// DefaultStyles returns the ANSI 256 palette used when none is given.
func DefaultStyles() Styles {
	s := Styles{
		Array:     lipgloss.NewStyle().Bold(true).Foreground(defaultArrayColor),
		Object:    lipgloss.NewStyle().Bold(true).Foreground(defaultObjectColor),
		Key:       lipgloss.NewStyle().Foreground(defaultKeyColor),
		String:    lipgloss.NewStyle().Foreground(defaultStringColor),
		Number:    lipgloss.NewStyle().Foreground(defaultNumberColor),
		Bool:      lipgloss.NewStyle().Foreground(defaultBoolColor),
		Null:      lipgloss.NewStyle().Italic(true).Foreground(defaultNullColor),
		Unknown:   lipgloss.NewStyle().Foreground(defaultUnknownColor),
		Notice:    lipgloss.NewStyle().Italic(true).Foreground(defaultMutedColor),
		Muted:     lipgloss.NewStyle().Foreground(defaultMutedColor),
		Exception: lipgloss.NewStyle().Bold(true).Foreground(defaultExceptionColor),
		Added:     lipgloss.NewStyle().Foreground(defaultAddedColor),
		Removed:   lipgloss.NewStyle().Foreground(defaultRemovedColor),
		Modified:  lipgloss.NewStyle().Foreground(defaultModifiedColor),
	}
	s.SQL = sqlfmt.Styles{
		sqlfmt.ClassClause:  lipgloss.NewStyle().Bold(true).Foreground(defaultArrayColor),
		sqlfmt.ClassKeyword: lipgloss.NewStyle().Foreground(defaultObjectColor),
		sqlfmt.ClassString:  s.String,
		sqlfmt.ClassNumber:  s.Number,
		sqlfmt.ClassComment: s.Muted,
	}
	s.JSON = map[jsonfmt.TokenClass]lipgloss.Style{
		jsonfmt.Key:     s.Key,
		jsonfmt.String:  s.String,
		jsonfmt.Number:  s.Number,
		jsonfmt.Keyword: s.Bool,
	}
	return s
}
