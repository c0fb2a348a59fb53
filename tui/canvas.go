package tui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// maxLabelWidth is the widest label drawn next to a marker.
const maxLabelWidth = 12

// canvasCell represents a single cell in the rendering grid with its character and styling.
type canvasCell struct {
	char  rune
	style lipgloss.Style
}

// canvasStyles holds all the lipgloss styles used for canvas rendering.
type canvasStyles struct {
	selectedDot   lipgloss.Style
	selectedLabel lipgloss.Style
	normal        lipgloss.Style
	line          lipgloss.Style
	neighborDot   lipgloss.Style
	neighborLabel lipgloss.Style
}

func newCanvasStyles() canvasStyles {
	return canvasStyles{
		selectedDot:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		selectedLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("118")).Bold(true),
		normal:        lipgloss.NewStyle().Foreground(lipgloss.Color("239")),
		line:          lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
		neighborDot:   lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
		neighborLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true),
	}
}

// gridPoint represents a point positioned on the canvas grid.
type gridPoint struct {
	row, col   int
	pointIndex int
	label      string
	isSelected bool
}

// renderCanvas generates the scatter plot of all points.
func (m Model) renderCanvas(width, height int) string {
	grid := newCanvasGrid(width, height)
	if len(m.points) == 0 {
		writeCentered(grid, "No points to show")
	} else {
		m.renderPointsOnCanvas(grid, width, height, newCanvasStyles())
	}
	return gridToString(grid)
}

func newCanvasGrid(width, height int) [][]canvasCell {
	grid := make([][]canvasCell, height)
	for r := range grid {
		grid[r] = make([]canvasCell, width)
		for c := range grid[r] {
			grid[r][c] = canvasCell{char: ' ', style: lipgloss.NewStyle()}
		}
	}
	return grid
}

func writeCentered(grid [][]canvasCell, message string) {
	if len(grid) == 0 {
		return
	}
	row := grid[len(grid)/2]
	start := max((len(row)-len(message))/2, 0)
	for offset, ch := range []rune(message) {
		if start+offset < len(row) {
			row[start+offset] = canvasCell{char: ch, style: lipgloss.NewStyle()}
		}
	}
}

// renderPointsOnCanvas draws all points, labels, and connector lines on the canvas.
func (m Model) renderPointsOnCanvas(grid [][]canvasCell, width, height int, styles canvasStyles) {
	minX, maxX, minY, maxY := m.calculatePointBounds()
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}

	const pad = 2
	plotWidth := max(width-2*pad, 1)
	plotHeight := max(height-2*pad, 1)

	points := make([]gridPoint, len(m.points))
	for i, p := range m.points {
		col := pad + int((p.X-minX)/rangeX*float64(plotWidth-1))
		row := pad + plotHeight - 1 - int((p.Y-minY)/rangeY*float64(plotHeight-1))
		points[i] = gridPoint{
			row:        clampInt(row, 0, height-1),
			col:        clampInt(col, 0, width-1),
			pointIndex: i,
			label:      p.Label,
			isSelected: i == m.selectedIndex,
		}
	}

	linked := make(map[int]bool)
	for _, j := range m.linkedNeighbors() {
		linked[j] = true
	}

	if m.hasSelection() {
		from := points[m.selectedIndex]
		for _, j := range m.linkedNeighbors() {
			if j >= 0 && j < len(points) {
				drawLineOnCanvas(grid, from.col, from.row, points[j].col, points[j].row, styles.line)
			}
		}
	}

	// Highlighted points are drawn last so they stay on top.
	priority := func(p gridPoint) int {
		switch {
		case p.isSelected:
			return 2
		case linked[p.pointIndex]:
			return 1
		}
		return 0
	}
	sort.SliceStable(points, func(a, b int) bool { return priority(points[a]) < priority(points[b]) })

	for _, p := range points {
		if m.focusMode && m.hasSelection() && priority(p) == 0 {
			continue
		}

		marker, markerStyle, labelStyle := "○", styles.normal, styles.normal
		markerCol := p.col
		switch {
		case p.isSelected:
			marker, markerStyle, labelStyle = "[*]", styles.selectedDot, styles.selectedLabel
			markerCol = max(p.col-1, 0)
		case linked[p.pointIndex]:
			marker, markerStyle, labelStyle = "◆", styles.neighborDot, styles.neighborLabel
		}

		markerRunes := []rune(marker)
		for offset, r := range markerRunes {
			if markerCol+offset < width {
				grid[p.row][markerCol+offset] = canvasCell{char: r, style: markerStyle}
			}
		}

		if !m.showLabels && priority(p) == 0 {
			continue
		}
		labelCol := markerCol + len(markerRunes) + 1
		for offset, r := range []rune(truncate.String(p.label, maxLabelWidth)) {
			if labelCol+offset < width {
				grid[p.row][labelCol+offset] = canvasCell{char: r, style: labelStyle}
			}
		}
	}
}

// calculatePointBounds finds the min/max X and Y coordinates across all points.
func (m Model) calculatePointBounds() (minX, maxX, minY, maxY float64) {
	minX, maxX = m.points[0].X, m.points[0].X
	minY, maxY = m.points[0].Y, m.points[0].Y
	for _, p := range m.points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return
}

// gridToString converts the canvas grid into a renderable string.
func gridToString(grid [][]canvasCell) string {
	var b strings.Builder
	for r, row := range grid {
		for _, cell := range row {
			b.WriteString(cell.style.Render(string(cell.char)))
		}
		if r < len(grid)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// drawLineOnCanvas uses Bresenham's line algorithm to draw a dotted line
// between two cells. Occupied cells are left untouched.
func drawLineOnCanvas(grid [][]canvasCell, x0, y0, x1, y1 int, style lipgloss.Style) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx - dy

	x, y := x0, y0
	for {
		if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) && grid[y][x].char == ' ' {
			grid[y][x] = canvasCell{char: '·', style: style}
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x += sx
		}
		if e2 < dx {
			e += dx
			y += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
