// Package tui renders a 2D embedding as an interactive terminal scatter plot.
// The selected point is linked to its nearest neighbors in the original
// high-dimensional space, which shows how well the embedding kept them close.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/alDuncanson/manifold/umap"
)

// maxLinkedNeighbors caps the connector lines drawn for the selected point.
const maxLinkedNeighbors = 5

// Point is one embedded vector with its high-dimensional neighbors.
type Point struct {
	Label     string
	X, Y      float64
	Neighbors []int     // Indices of the nearest neighbors in the input space
	Distances []float64 // Input-space distances to Neighbors
}

// Summary describes the run that produced the embedding.
type Summary struct {
	RunID     string
	Points    int
	Dims      int
	Neighbors int
	Metric    string
	Edges     int
	Epochs    int
	A, B      float64
}

// FromResult pairs the first two embedding columns with labels and the
// neighbor lists of the run. Missing labels are replaced by the point index.
func FromResult(labels []string, metricName string, dims int, res *umap.Result) ([]Point, Summary) {
	n, cols := res.Embedding.Dims()
	points := make([]Point, n)
	for i := range points {
		label := fmt.Sprintf("#%d", i)
		if i < len(labels) && labels[i] != "" {
			label = labels[i]
		}
		p := Point{Label: label, X: res.Embedding.At(i, 0)}
		if cols > 1 {
			p.Y = res.Embedding.At(i, 1)
		}
		if res.Neighbors != nil && i < res.Neighbors.Len() {
			p.Neighbors = res.Neighbors.Indices[i]
			p.Distances = res.Neighbors.Distances[i]
		}
		points[i] = p
	}

	summary := Summary{
		RunID:  res.RunID,
		Points: n,
		Dims:   dims,
		Metric: metricName,
		Epochs: res.Epochs,
		A:      res.A,
		B:      res.B,
	}
	if res.Neighbors != nil {
		summary.Neighbors = res.Neighbors.K
	}
	if res.Graph != nil {
		summary.Edges = res.Graph.Len() / 2
	}
	return points, summary
}

// Model is the bubbletea model of the viewer.
type Model struct {
	width, height int
	points        []Point
	summary       Summary
	selectedIndex int
	listOffset    int
	showMetadata  bool
	showLabels    bool
	focusMode     bool
	activeTab     viewTab
	version       string
}

// NewModel creates a viewer for points.
func NewModel(points []Point, summary Summary, version string) Model {
	return Model{
		points:        points,
		summary:       summary,
		width:         80,
		height:        24,
		selectedIndex: -1,
		showMetadata:  true,
		showLabels:    true,
		version:       version,
	}
}

// Init implements tea.Model. The embedding is computed before the viewer starts.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles all incoming messages and updates the model state accordingly.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch message := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(message)

	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
	}

	return m, nil
}

func (m Model) handleKeyPress(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c", "esc", "q":
		return m, tea.Quit

	case "down", "tab", "j":
		m.selectNextPoint()

	case "up", "shift+tab", "k":
		m.selectPreviousPoint()

	case "/":
		m.showMetadata = !m.showMetadata

	case "f", "F":
		m.focusMode = !m.focusMode

	case "l", "L":
		m.showLabels = !m.showLabels

	case "1":
		m.activeTab = tabVisualization

	case "2":
		m.activeTab = tabList

	case "3":
		m.activeTab = tabStats
	}

	return m, nil
}

// selectNextPoint moves the selection to the next point in the list.
func (m *Model) selectNextPoint() {
	if len(m.points) > 0 {
		m.selectedIndex = (m.selectedIndex + 1) % len(m.points)
		m.scrollToSelection()
	}
}

// selectPreviousPoint moves the selection to the previous point in the list.
func (m *Model) selectPreviousPoint() {
	if len(m.points) > 0 {
		m.selectedIndex--
		if m.selectedIndex < 0 {
			m.selectedIndex = len(m.points) - 1
		}
		m.scrollToSelection()
	}
}

func (m *Model) scrollToSelection() {
	visible := max(m.calculateLayout().canvasHeight-borderSize-1, 1)
	if m.selectedIndex < m.listOffset {
		m.listOffset = m.selectedIndex
	}
	if m.selectedIndex >= m.listOffset+visible {
		m.listOffset = m.selectedIndex - visible + 1
	}
}

func (m Model) hasSelection() bool {
	return m.selectedIndex >= 0 && m.selectedIndex < len(m.points)
}

// linkedNeighbors returns the nearest input-space neighbors of the selected point.
func (m Model) linkedNeighbors() []int {
	if !m.hasSelection() {
		return nil
	}
	neighbors := m.points[m.selectedIndex].Neighbors
	if len(neighbors) > maxLinkedNeighbors {
		neighbors = neighbors[:maxLinkedNeighbors]
	}
	return neighbors
}

// View renders the complete UI as a string.
func (m Model) View() string {
	s := newStyles()
	layout := m.calculateLayout()

	var b strings.Builder
	b.WriteString(m.renderTabBar(s, layout.totalWidth))
	b.WriteString("\n")

	switch m.activeTab {
	case tabList:
		b.WriteString(s.canvas.Width(layout.canvasWidth - borderSize).Render(
			m.renderList(layout.canvasWidth-borderSize, layout.canvasHeight-borderSize)))
	case tabStats:
		b.WriteString(s.canvas.Width(layout.canvasWidth - borderSize).Render(
			m.renderStats(layout.canvasHeight - borderSize)))
	default:
		b.WriteString(m.renderContentArea(s, layout))
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar(s, layout.totalWidth))

	return lipgloss.NewStyle().Padding(1, 1).Render(b.String())
}

// renderMetadata generates the side panel content for the selected point.
func (m Model) renderMetadata(panelWidth, panelHeight int) string {
	if !m.hasSelection() {
		return ""
	}

	selected := m.points[m.selectedIndex]
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	lines := []string{
		headerStyle.Render("Selected"),
		valueStyle.Render(truncate.StringWithTail(selected.Label, uint(panelWidth), "...")),
		labelStyle.Render("Position: ") + valueStyle.Render(fmt.Sprintf("%.2f, %.2f", selected.X, selected.Y)),
		"",
	}

	if len(selected.Neighbors) > 0 {
		lines = append(lines, headerStyle.Render("Nearest (input space)"))
		for r, j := range selected.Neighbors {
			if r == maxLinkedNeighbors || j < 0 || j >= len(m.points) {
				break
			}
			label := truncate.StringWithTail(m.points[j].Label, uint(max(panelWidth-8, 1)), "...")
			dist := 0.0
			if r < len(selected.Distances) {
				dist = selected.Distances[r]
			}
			lines = append(lines, fmt.Sprintf("%7.3f %s", dist, label))
		}
	}

	for len(lines) < panelHeight {
		lines = append(lines, "")
	}
	if len(lines) > panelHeight {
		lines = lines[:panelHeight]
	}
	return strings.Join(lines, "\n")
}

// renderList shows every point with its coordinates, scrolled to the selection.
func (m Model) renderList(width, height int) string {
	if len(m.points) == 0 {
		return "No points"
	}
	normal := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	selected := lipgloss.NewStyle().Foreground(lipgloss.Color("118")).Bold(true)

	labelWidth := max(width-24, 4)
	var lines []string
	for i := m.listOffset; i < len(m.points) && len(lines) < height; i++ {
		p := m.points[i]
		label := truncate.StringWithTail(p.Label, uint(labelWidth), "...")
		line := fmt.Sprintf("%4d  %s%s  %7.2f %7.2f", i, label, padding(label, labelWidth), p.X, p.Y)
		if i == m.selectedIndex {
			line = selected.Render(line)
		} else {
			line = normal.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderStats describes the run and the spread of the embedding.
func (m Model) renderStats(height int) string {
	s := m.summary
	lines := []string{
		fmt.Sprintf("Run:        %s", s.RunID),
		fmt.Sprintf("Points:     %d", s.Points),
		fmt.Sprintf("Input dims: %d", s.Dims),
		fmt.Sprintf("Metric:     %s", s.Metric),
		fmt.Sprintf("Neighbors:  %d", s.Neighbors),
		fmt.Sprintf("Edges:      %d", s.Edges),
		fmt.Sprintf("Epochs:     %d", s.Epochs),
		fmt.Sprintf("Curve:      a=%.4f b=%.4f", s.A, s.B),
	}
	if len(m.points) > 0 {
		minX, maxX, minY, maxY := m.calculatePointBounds()
		lines = append(lines, fmt.Sprintf("Extent:     x [%.2f, %.2f]  y [%.2f, %.2f]", minX, maxX, minY, maxY))
		lines = append(lines, fmt.Sprintf("Preserved:  %.1f%% of input neighbors among embedded neighbors", 100*m.neighborPreservation()))
	}
	if len(lines) > height && height > 0 {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

// neighborPreservation is the mean fraction of each point's input-space
// neighbors that are also among its nearest points in the embedding.
func (m Model) neighborPreservation() float64 {
	var total float64
	var counted int
	for i, p := range m.points {
		k := len(p.Neighbors)
		if k == 0 || k >= len(m.points) {
			continue
		}
		type ranked struct {
			index int
			dist  float64
		}
		others := make([]ranked, 0, len(m.points)-1)
		for j, q := range m.points {
			if j != i {
				dx, dy := p.X-q.X, p.Y-q.Y
				others = append(others, ranked{j, dx*dx + dy*dy})
			}
		}
		sort.Slice(others, func(a, b int) bool {
			if others[a].dist != others[b].dist {
				return others[a].dist < others[b].dist
			}
			return others[a].index < others[b].index
		})
		embedded := make(map[int]bool, k)
		for _, o := range others[:k] {
			embedded[o.index] = true
		}
		hits := 0
		for _, j := range p.Neighbors {
			if embedded[j] {
				hits++
			}
		}
		total += float64(hits) / float64(k)
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}
