package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/briefcast/internal/script"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	roleStyles = map[script.Role]lipgloss.Style{
		script.RoleHost:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
		script.RoleAnalyst: lipgloss.NewStyle().Foreground(lipgloss.Color("#3C9DF0")).Bold(true),
		script.RoleSFX:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454")).Italic(true),
	}

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)
)

// reviewModel is a read-only pager over a segmentation. Enter expands the
// selected utterance to show its raw fragment next to the spoken text.
type reviewModel struct {
	seg      script.Segmentation
	tags     map[script.Role]string
	cursor   int
	offset   int
	height   int
	width    int
	expanded bool
}

func newReviewModel(seg script.Segmentation, cast *script.Cast) reviewModel {
	tags := map[script.Role]string{}
	for _, r := range cast.Roles() {
		tags[r] = cast.Tag(r)
	}
	return reviewModel{seg: seg, tags: tags, height: 20, width: 80}
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		// header, summary and help take about seven lines
		m.height = max(msg.Height-7, 3)
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		n := len(m.seg.Utterances)
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < n-1 {
				m.cursor++
			}
		case "pgup":
			m.cursor = max(m.cursor-m.height, 0)
		case "pgdown", " ":
			m.cursor = min(m.cursor+m.height, max(n-1, 0))
		case "g", "home":
			m.cursor = 0
		case "G", "end":
			m.cursor = max(n-1, 0)
		case "enter":
			m.expanded = !m.expanded
		}
		m.clampOffset()
	}
	return m, nil
}

// clampOffset keeps the cursor inside the visible window.
func (m *reviewModel) clampOffset() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m reviewModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("Transcript review")))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %d utterances · %d tagged · %d carried forward · %d dropped\n\n",
		len(m.seg.Utterances), m.seg.Matched, m.seg.CarriedForward, m.seg.Dropped)

	if len(m.seg.Utterances) == 0 {
		b.WriteString(dimStyle.Render("  nothing to say"))
		b.WriteString("\n")
	}

	end := min(m.offset+m.height, len(m.seg.Utterances))
	textWidth := max(m.width-20, 20)
	for i := m.offset; i < end; i++ {
		u := m.seg.Utterances[i]
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		label := m.tags[u.Role]
		if label == "" {
			label = string(u.Role)
		}
		style, ok := roleStyles[u.Role]
		if !ok {
			style = lipgloss.NewStyle().Bold(true)
		}
		fmt.Fprintf(&b, "%s%3d %s %s\n", cursor, u.Index, style.Width(9).Render(label), clip(u.Text, textWidth))
		if i == m.cursor && m.expanded {
			fmt.Fprintf(&b, "      %s\n", dimStyle.Render("raw: "+clip(u.Raw, textWidth)))
			fmt.Fprintf(&b, "      %s\n", dimStyle.Render("say: "+u.Text))
		}
	}

	b.WriteString(helpStyle.Render("  ↑/↓ move · enter details · g/G top/bottom · q quit"))
	b.WriteString("\n")
	return b.String()
}

func runReview(seg script.Segmentation, cast *script.Cast) error {
	p := tea.NewProgram(newReviewModel(seg, cast), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
