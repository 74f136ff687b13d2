// Package browse provides an interactive terminal browser for lint
// findings. The left pane lists findings, the right pane shows the
// offending page source around the finding's line.
package browse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docnerd/internal/lint"
)

const contextLines = 6

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	markStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
)

// findingItem adapts lint.Finding to list.Item.
type findingItem struct {
	finding lint.Finding
}

func (i findingItem) Title() string {
	badge := warningStyle.Render("warn")
	if i.finding.Severity == lint.SeverityError {
		badge = errorStyle.Render("err ")
	}
	return fmt.Sprintf("%s %s:%d", badge, i.finding.Page, i.finding.Line)
}

func (i findingItem) Description() string { return i.finding.Message }
func (i findingItem) FilterValue() string {
	return i.finding.Page + " " + i.finding.Rule + " " + i.finding.Message
}

// Model is the findings browser.
type Model struct {
	width    int
	height   int
	list     list.Model
	viewport viewport.Model

	focusViewport bool

	root     string
	findings []lint.Finding
	selected *lint.Finding
}

// NewModel creates a findings browser over a lint report. root is the
// docs root the finding paths are relative to.
func NewModel(root string, report *lint.Report) Model {
	vp := viewport.New(0, 0)
	vp.SetContent("Select a finding to view the page source.")

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("Findings (%d errors, %d warnings)", report.Errors(), report.Warnings())
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	items := make([]list.Item, 0, len(report.Findings))
	for _, f := range report.Findings {
		items = append(items, findingItem{finding: f})
	}
	l.SetItems(items)

	return Model{
		list:     l,
		viewport: vp,
		root:     root,
		findings: report.Findings,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if m.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "tab":
				m.focusViewport = !m.focusViewport
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}
	}

	// Route events: non-key messages go to both components.
	_, isKey := msg.(tea.KeyMsg)
	updateList := !isKey || (!m.focusViewport || m.list.FilterState() == list.Filtering)
	updateViewport := !isKey || (m.focusViewport && m.list.FilterState() != list.Filtering)

	if updateList {
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}
	if updateViewport {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	if sel := m.list.SelectedItem(); sel != nil {
		item := sel.(findingItem)
		if m.selected == nil || *m.selected != item.finding {
			f := item.finding
			m.selected = &f
			m.viewport.SetContent(m.renderFinding(f))
			m.viewport.GotoTop()
		}
	}

	return m, tea.Batch(cmds...)
}

// renderFinding formats a finding with the surrounding page source.
func (m Model) renderFinding(f lint.Finding) string {
	badge := warningStyle.Render("warning")
	if f.Severity == lint.SeverityError {
		badge = errorStyle.Render("error")
	}

	header := headerStyle.Render(fmt.Sprintf("%s:%d", f.Page, f.Line))
	info := fmt.Sprintf("%s  %s", badge, mutedStyle.Render("["+f.Rule+"]"))
	separator := mutedStyle.Render(strings.Repeat("─", 40))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		info,
		f.Message,
		separator,
		m.sourceExcerpt(f),
	)
}

// sourceExcerpt reads the page and returns the lines around the
// finding, the offending line marked.
func (m Model) sourceExcerpt(f lint.Finding) string {
	data, err := os.ReadFile(filepath.Join(m.root, filepath.FromSlash(f.Page)))
	if err != nil {
		return mutedStyle.Render(fmt.Sprintf("(source unavailable: %v)", err))
	}

	lines := strings.Split(string(data), "\n")
	start := f.Line - 1 - contextLines
	if start < 0 {
		start = 0
	}
	end := f.Line + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for n := start; n < end; n++ {
		prefix := "  "
		lineNo := fmt.Sprintf("%4d", n+1)
		if n+1 == f.Line {
			prefix = markStyle.Render("> ")
			lineNo = markStyle.Render(lineNo)
		} else {
			lineNo = mutedStyle.Render(lineNo)
		}
		b.WriteString(fmt.Sprintf("%s%s  %s\n", prefix, lineNo, lines[n]))
	}
	return b.String()
}

// View renders the browser.
func (m Model) View() string {
	if len(m.findings) == 0 {
		return titleStyle.Render("No findings. Docs are clean.") + "\n"
	}

	totalWidth := m.width
	if totalWidth == 0 {
		totalWidth = 100
	}
	listPaneWidth := int(float64(totalWidth) * 0.4)
	viewPaneWidth := totalWidth - listPaneWidth

	baseStyle := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder())

	focused := lipgloss.Color("#8BC34A")
	blurred := lipgloss.Color("#2a3850")

	var listStyle, viewStyle lipgloss.Style
	if !m.focusViewport {
		listStyle = baseStyle.BorderForeground(focused)
		viewStyle = baseStyle.BorderForeground(blurred)
	} else {
		listStyle = baseStyle.BorderForeground(blurred)
		viewStyle = baseStyle.BorderForeground(focused)
	}

	listView := listStyle.Width(listPaneWidth - 4).Render(m.list.View())
	contentView := viewStyle.Width(viewPaneWidth - 4).Render(m.viewport.View())

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, listView, contentView)
	help := mutedStyle.Render(" tab: focus switch • /: filter • q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, mainView, help)
}

// SetSize updates the layout for a new terminal size.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h

	chromeW := 4
	chromeH := 2
	paneH := h - 3 - chromeH
	if paneH < 3 {
		paneH = 3
	}

	listPaneWidth := int(float64(w) * 0.4)
	viewPaneWidth := w - listPaneWidth

	m.list.SetSize(listPaneWidth-chromeW, paneH)
	m.viewport.Width = viewPaneWidth - chromeW
	m.viewport.Height = paneH
}

// Run launches the browser and blocks until the user quits.
func Run(root string, report *lint.Report) error {
	p := tea.NewProgram(NewModel(root, report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
