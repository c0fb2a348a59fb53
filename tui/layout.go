package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const (
	metadataPanelWidth = 34
	minCanvasWidth     = 40
	minCanvasHeight    = 10
	tabBarHeight       = 1
	statusBarHeight    = 1
	borderSize         = 2
)

type viewTab int

const (
	tabVisualization viewTab = iota
	tabList
	tabStats
)

type layoutDimensions struct {
	totalWidth   int
	totalHeight  int
	canvasWidth  int
	canvasHeight int
}

func (m Model) calculateLayout() layoutDimensions {
	marginX := 2
	marginY := 2

	totalWidth := m.width - marginX
	totalHeight := m.height - marginY

	canvasHeight := totalHeight - tabBarHeight - statusBarHeight
	if canvasHeight < minCanvasHeight {
		canvasHeight = minCanvasHeight
	}

	canvasWidth := totalWidth - borderSize
	if canvasWidth < minCanvasWidth {
		canvasWidth = minCanvasWidth
	}

	return layoutDimensions{
		totalWidth:   totalWidth,
		totalHeight:  totalHeight,
		canvasWidth:  canvasWidth,
		canvasHeight: canvasHeight,
	}
}

type styles struct {
	title       lipgloss.Style
	canvas      lipgloss.Style
	panel       lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	tabBar      lipgloss.Style
	statusBar   lipgloss.Style
}

func newStyles() styles {
	accentColor := lipgloss.Color("#FF87D7")
	borderColor := lipgloss.Color("#5F5FAF")
	canvasBorderColor := lipgloss.Color("#FF8700")
	dimColor := lipgloss.Color("#6C6C6C")

	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor),

		canvas: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(canvasBorderColor),

		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1),

		tabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Padding(0, 1),

		tabInactive: lipgloss.NewStyle().
			Foreground(dimColor).
			Padding(0, 1),

		tabBar: lipgloss.NewStyle().
			Foreground(dimColor),

		statusBar: lipgloss.NewStyle().
			Foreground(dimColor),
	}
}

func (m Model) renderTabBar(s styles, width int) string {
	tabs := []struct {
		name string
		tab  viewTab
	}{
		{"Visualization", tabVisualization},
		{"List", tabList},
		{"Stats", tabStats},
	}

	var parts []string
	for _, t := range tabs {
		style := s.tabInactive
		if t.tab == m.activeTab {
			style = s.tabActive
		}
		parts = append(parts, style.Render(t.name))
	}

	tabRow := strings.Join(parts, s.tabBar.Render(" │ "))
	title := s.title.Render("manifold")

	gap := width - lipgloss.Width(tabRow) - lipgloss.Width(title)
	if gap < 1 {
		gap = 1
	}

	return tabRow + strings.Repeat(" ", gap) + title
}

// renderContentArea draws the scatter plot, with the metadata panel beside it
// when a point is selected.
func (m Model) renderContentArea(s styles, layout layoutDimensions) string {
	innerHeight := layout.canvasHeight - borderSize
	canvasInnerWidth := layout.canvasWidth - borderSize

	showPanel := m.showMetadata && m.hasSelection() && canvasInnerWidth > metadataPanelWidth+minCanvasWidth
	if !showPanel {
		return s.canvas.
			Width(canvasInnerWidth).
			Height(innerHeight).
			Render(m.renderCanvas(canvasInnerWidth, innerHeight))
	}

	canvasInnerWidth -= metadataPanelWidth + 1
	canvasBox := s.canvas.
		Width(canvasInnerWidth).
		Height(innerHeight).
		Render(m.renderCanvas(canvasInnerWidth, innerHeight))

	panelInnerWidth := metadataPanelWidth - 4
	panel := s.panel.
		Width(panelInnerWidth).
		Height(innerHeight).
		Render(m.renderMetadata(panelInnerWidth, innerHeight))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasBox, " ", panel)
}

func (m Model) renderStatusBar(s styles, width int) string {
	help := "↑↓: select │ /: info │ L: labels │ F: focus │ 1-3: tabs │ Esc: quit"

	version := m.version
	gap := width - lipgloss.Width(help) - lipgloss.Width(version)
	if gap < 1 {
		gap = 1
	}

	return s.statusBar.Render(help + strings.Repeat(" ", gap) + version)
}

// padding returns the spaces that fill text up to width terminal cells.
func padding(text string, width int) string {
	return strings.Repeat(" ", max(width-ansi.StringWidth(text), 0))
}
