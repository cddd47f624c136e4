// Package pager shows rendered output in a scrollable terminal view with
// incremental search (dumpx -i).
package pager

import (
	"context"
	"fmt"
	"io"
	"strings"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// Model is the pager state.
type Model struct {
	title string
	plain []string

	vp    viewport.Model
	input textinput.Model

	searching bool
	query     string
	matches   []int
	current   int

	width  int
	height int

	footer lipgloss.Style
	muted  lipgloss.Style
}

var _ tea.Model = (*Model)(nil)

// New returns a pager over content. Colour codes in content are kept for
// display and ignored by search.
func New(title, content string) *Model {
	in := textinput.New()
	in.Prompt = "/"
	m := &Model{
		title:  title,
		plain:  strings.Split(ansi.Strip(content), "\n"),
		vp:     viewport.New(viewport.WithWidth(80), viewport.WithHeight(23)),
		input:  in,
		footer: lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		width:  80,
		height: 24,
	}
	m.vp.SetContent(content)
	return m
}

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.vp.SetWidth(msg.Width)
		m.vp.SetHeight(max(msg.Height-1, 1))
		return m, nil
	case tea.KeyPressMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.searching = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case "n":
			m.step(1)
			return m, nil
		case "N":
			m.step(-1)
			return m, nil
		case "g", "home":
			m.vp.GotoTop()
			return m, nil
		case "G", "end":
			m.vp.GotoBottom()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *Model) updateSearch(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.input.Blur()
		m.Search(m.input.Value())
		return m, nil
	case "esc", "ctrl+c":
		m.searching = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Search records the lines containing q, case-insensitively, and scrolls
// to the first one. An empty query clears the search.
func (m *Model) Search(q string) {
	m.query = q
	m.matches = m.matches[:0]
	m.current = 0
	if q == "" {
		return
	}
	needle := strings.ToLower(q)
	for i, line := range m.plain {
		if strings.Contains(strings.ToLower(line), needle) {
			m.matches = append(m.matches, i)
		}
	}
	if len(m.matches) > 0 {
		m.vp.SetYOffset(m.matches[0])
	}
}

// Matches returns the line numbers of the current search hits.
func (m *Model) Matches() []int { return append([]int(nil), m.matches...) }

func (m *Model) step(dir int) {
	if len(m.matches) == 0 {
		return
	}
	m.current = (m.current + dir + len(m.matches)) % len(m.matches)
	m.vp.SetYOffset(m.matches[m.current])
}

func (m *Model) View() tea.View {
	v := tea.NewView(m.vp.View() + "\n" + m.status())
	v.AltScreen = true
	return v
}

func (m *Model) status() string {
	if m.searching {
		return m.input.View()
	}
	left := " " + m.title
	right := fmt.Sprintf("%d/%d  %3.0f%% ", min(m.vp.YOffset()+1, len(m.plain)), len(m.plain), m.vp.ScrollPercent()*100)
	switch {
	case m.query != "" && len(m.matches) == 0:
		right = fmt.Sprintf("/%s: no match  ", m.query) + right
	case m.query != "":
		right = fmt.Sprintf("/%s (%d/%d)  ", m.query, m.current+1, len(m.matches)) + right
	}
	gap := m.width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if gap < 1 {
		left = runewidth.Truncate(left, max(m.width-runewidth.StringWidth(right)-1, 0), "…")
		gap = 1
	}
	return m.footer.Render(left + strings.Repeat(" ", gap) + right)
}

// Run shows content until the user quits.
func Run(ctx context.Context, title, content string, in io.Reader, out io.Writer) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	_, err := tea.NewProgram(New(title, content), opts...).Run()
	return err
}
