package html

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lucasb-eyer/go-colorful"
)

// MinContrast is the WCAG AA ratio every foreground role must reach against
// the palette background.
const MinContrast = 4.5

// Role names one colour slot of a palette.
type Role string

const (
	RoleArray     Role = "array"
	RoleObject    Role = "object"
	RoleKey       Role = "key"
	RoleString    Role = "string"
	RoleNumber    Role = "number"
	RoleBool      Role = "bool"
	RoleNull      Role = "null"
	RoleNotice    Role = "notice"
	RoleException Role = "exception"
	RoleAccent    Role = "accent"
	RoleAdded     Role = "added"
	RoleRemoved   Role = "removed"
	RoleModified  Role = "modified"
	RoleMuted     Role = "muted"
)

// Roles lists every foreground role in the order variables are emitted.
var Roles = []Role{
	RoleArray, RoleObject, RoleKey, RoleString, RoleNumber, RoleBool, RoleNull,
	RoleNotice, RoleException, RoleAccent, RoleAdded, RoleRemoved, RoleModified, RoleMuted,
}

// Palette is a validated colour profile.
type Palette struct {
	name       string
	background string
	surface    string
	text       string
	roles      map[Role]string
}

// NewPalette validates colours and contrast. Text must reach MinContrast
// against both background and surface; every role against background.
// A missing role is an error.
func NewPalette(name, background, surface, text string, roles map[Role]string) (*Palette, error) {
	bg, err := colorful.Hex(background)
	if err != nil {
		return nil, errors.Wrapf(err, "palette %s: background", name)
	}
	sf, err := colorful.Hex(surface)
	if err != nil {
		return nil, errors.Wrapf(err, "palette %s: surface", name)
	}
	fg, err := colorful.Hex(text)
	if err != nil {
		return nil, errors.Wrapf(err, "palette %s: text", name)
	}
	if c := Contrast(fg, bg); c < MinContrast {
		return nil, errors.Newf("palette %s: text contrast %.2f below %.1f", name, c, MinContrast)
	}
	if c := Contrast(fg, sf); c < MinContrast {
		return nil, errors.Newf("palette %s: text on surface contrast %.2f below %.1f", name, c, MinContrast)
	}
	p := &Palette{name: name, background: background, surface: surface, text: text, roles: map[Role]string{}}
	for _, r := range Roles {
		hex, ok := roles[r]
		if !ok {
			return nil, errors.Newf("palette %s: missing role %s", name, r)
		}
		col, err := colorful.Hex(hex)
		if err != nil {
			return nil, errors.Wrapf(err, "palette %s: role %s", name, r)
		}
		if c := Contrast(col, bg); c < MinContrast {
			return nil, errors.Newf("palette %s: role %s contrast %.2f below %.1f", name, r, c, MinContrast)
		}
		p.roles[r] = hex
	}
	return p, nil
}

// Contrast returns the WCAG contrast ratio of a and b.
func Contrast(a, b colorful.Color) float64 {
	la, lb := luminance(a), luminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

func luminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Name returns the profile name.
func (p *Palette) Name() string { return p.name }

// Background returns the page background colour.
func (p *Palette) Background() string { return p.background }

// Color returns the hex value of role.
func (p *Palette) Color(r Role) string { return p.roles[r] }

// Vars renders the palette as CSS custom properties.
func (p *Palette) Vars() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--dumpx-bg:%s;--dumpx-surface:%s;--dumpx-text:%s;", p.background, p.surface, p.text)
	for _, r := range Roles {
		fmt.Fprintf(&b, "--dumpx-%s:%s;", r, p.roles[r])
	}
	return b.String()
}

// Light and Dark are the built-in profiles.
var (
	Light = mustPalette(NewPalette("light", "#ffffff", "#f6f8fa", "#1f2328", map[Role]string{
		RoleArray:     "#0550ae",
		RoleObject:    "#8250df",
		RoleKey:       "#24292f",
		RoleString:    "#116329",
		RoleNumber:    "#953800",
		RoleBool:      "#cf222e",
		RoleNull:      "#656d76",
		RoleNotice:    "#57606a",
		RoleException: "#a40e26",
		RoleAccent:    "#0969da",
		RoleAdded:     "#116329",
		RoleRemoved:   "#82071e",
		RoleModified:  "#7d4e00",
		RoleMuted:     "#656d76",
	}))
	Dark = mustPalette(NewPalette("dark", "#0d1117", "#161b22", "#e6edf3", map[Role]string{
		RoleArray:     "#79c0ff",
		RoleObject:    "#d2a8ff",
		RoleKey:       "#7ee787",
		RoleString:    "#a5d6ff",
		RoleNumber:    "#ffa657",
		RoleBool:      "#ff7b72",
		RoleNull:      "#8b949e",
		RoleNotice:    "#8b949e",
		RoleException: "#ffa198",
		RoleAccent:    "#58a6ff",
		RoleAdded:     "#3fb950",
		RoleRemoved:   "#f85149",
		RoleModified:  "#d29922",
		RoleMuted:     "#8b949e",
	}))
)

func mustPalette(p *Palette, err error) *Palette {
	if err != nil {
		panic(err)
	}
	return p
}
