package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/canopyviz/canopy/pkg/mergetree"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// maxMemberPreview caps the rendered member list per cluster row.
const maxMemberPreview = 60

// BrowseModel is the bubbletea model for exploring clusterings. The
// left/right keys switch between resolutions, up/down move through the
// clusters of the current resolution.
type BrowseModel struct {
	Clusterings []mergetree.Clustering
	Level       int
	Cursor      int
	Offset      int
	Height      int
}

// NewBrowseModel creates a browse model over the cut output.
func NewBrowseModel(clusterings []mergetree.Clustering) BrowseModel {
	return BrowseModel{
		Clusterings: clusterings,
		Height:      15,
	}
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			if m.Level > 0 {
				m.Level--
				m.Cursor, m.Offset = 0, 0
			}
		case "right", "l":
			if m.Level < len(m.Clusterings)-1 {
				m.Level++
				m.Cursor, m.Offset = 0, 0
			}
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.current().Clusters)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m BrowseModel) current() mergetree.Clustering {
	if len(m.Clusterings) == 0 {
		return mergetree.Clustering{}
	}
	return m.Clusterings[m.Level]
}

func (m BrowseModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Browse Clusterings"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("←/→ resolution  ↑/↓ cluster  q quit"))
	b.WriteString("\n\n")

	b.WriteString(m.resolutionTabs())
	b.WriteString("\n\n")

	c := m.current()
	end := m.Offset + m.Height
	if end > len(c.Clusters) {
		end = len(c.Clusters)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		cl := c.Clusters[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		members := strings.Join(cl.Items, " ")
		if len(members) > maxMemberPreview {
			members = members[:maxMemberPreview-1] + "…"
		}

		rows = append(rows, []string{
			cursor,
			strconv.Itoa(cl.Size),
			strconv.FormatFloat(cl.Quality, 'f', 3, 64),
			members,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Size", "Quality", "Members").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("%d clusters · cluster %d of %d",
		len(c.Clusters), m.Cursor+1, max(len(c.Clusters), 1))))
	b.WriteString("\n")

	return b.String()
}

// resolutionTabs renders the selectable resolution levels.
func (m BrowseModel) resolutionTabs() string {
	parts := make([]string, len(m.Clusterings))
	for i, c := range m.Clusterings {
		label := fmt.Sprintf("R=%d", c.Resolution)
		if i == m.Level {
			parts[i] = listSelectedStyle.Render(label)
		} else {
			parts[i] = listDimStyle.Render(label)
		}
	}
	return "  " + strings.Join(parts, listDimStyle.Render(" · "))
}
