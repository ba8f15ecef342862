// Package panel renders the interactive settings panel: one row per behavior
// toggle plus a row that clears the saved search state. Edits are written
// through the controller immediately, so the panel never holds a dirty copy.
package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/settings"
)

// Controller is the slice of the plugin the panel drives.
type Controller interface {
	Current() settings.Settings
	UpdateSettings(s settings.Settings) error
	ClearSavedState(ctx context.Context) error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	onStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	offStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	helpText = "↑/↓ move · space toggle · q quit"
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Toggle: key.NewBinding(key.WithKeys(" ", "enter")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
}

// row indices, in display order.
const (
	rowOpenInMainArea = iota
	rowAutoPin
	rowRememberQuery
	rowClearSidebar
	rowDebug
	rowClearSaved
	rowCount
)

var rowLabels = [rowCount]string{
	rowOpenInMainArea: "Open search in main area",
	rowAutoPin:        "Pin redirected search views",
	rowRememberQuery:  "Remember last query",
	rowClearSidebar:   "Clear sidebar search on startup",
	rowDebug:          "Debug logging",
	rowClearSaved:     "Clear saved search settings",
}

// Model is the bubbletea model for the panel.
type Model struct {
	ctrl   Controller
	cursor int
	status string
	errMsg string
	quit   bool
}

// NewModel creates the panel model.
func NewModel(ctrl Controller) Model {
	return Model{ctrl: ctrl}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.quit = true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Up):
		m.cursor = (m.cursor + rowCount - 1) % rowCount
	case key.Matches(keyMsg, keys.Down):
		m.cursor = (m.cursor + 1) % rowCount
	case key.Matches(keyMsg, keys.Toggle):
		m.activate()
	}
	return m, nil
}

func (m *Model) activate() {
	m.errMsg = ""
	m.status = ""

	if m.cursor == rowClearSaved {
		if err := m.ctrl.ClearSavedState(context.Background()); err != nil {
			m.errMsg = err.Error()
			return
		}
		m.status = "saved search settings cleared"
		return
	}

	s := m.ctrl.Current()
	switch m.cursor {
	case rowOpenInMainArea:
		s.OpenInMainArea = !s.OpenInMainArea
	case rowAutoPin:
		s.AutoPin = !s.AutoPin
	case rowRememberQuery:
		s.RememberQuery = !s.RememberQuery
	case rowClearSidebar:
		s.ClearSidebarOnStartup = !s.ClearSidebarOnStartup
	case rowDebug:
		s.Debug = !s.Debug
	}
	if err := m.ctrl.UpdateSettings(s); err != nil {
		m.errMsg = err.Error()
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" Searchpin Settings "))
	b.WriteString("\n\n")

	s := m.ctrl.Current()
	values := [rowCount]string{
		rowOpenInMainArea: onOff(s.OpenInMainArea),
		rowAutoPin:        onOff(s.AutoPin),
		rowRememberQuery:  onOff(s.RememberQuery),
		rowClearSidebar:   onOff(s.ClearSidebarOnStartup),
		rowDebug:          onOff(s.Debug),
		rowClearSaved:     savedSummary(s.LastSearchState),
	}

	for i := 0; i < rowCount; i++ {
		cursor := "  "
		label := rowLabels[i]
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
			label = cursorStyle.Render(label)
		}
		fmt.Fprintf(&b, "%s%-34s %s\n", cursor, label, values[i])
	}

	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errStyle.Render(m.errMsg))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(onStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(offStyle.Render(helpText))

	if m.quit {
		b.WriteString("\n")
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}

func savedSummary(s searchstate.State) string {
	if s == nil {
		return offStyle.Render("nothing saved")
	}
	return onStyle.Render(fmt.Sprintf("%d fields saved", len(s)))
}

// Run starts the panel and blocks until the user quits.
func Run(ctrl Controller) error {
	p := tea.NewProgram(NewModel(ctrl))
	_, err := p.Run()
	return err
}
