package terminal

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
)

// Board geometry in screen cells. Each board cell is a block of
// (cellW-1)x(cellH-1) with a one cell gutter.
const (
	boardLeft = 4
	boardTop  = 3
	cellW     = 7
	cellH     = 3

	controlWidth = 10
	controlGap   = 2
	logWidth     = 34
)

var (
	styleText     = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleDim      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleTitle    = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleHint     = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleCell     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray)
	styleAgent    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy).Bold(true)
	styleTrap     = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorDarkSlateGray).Bold(true)
	styleSelected = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow).Bold(true)
	styleDrag     = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorTeal)
	styleActive   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen).Bold(true)
	styleInactive = tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.ColorBlack)
	styleBanner   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon).Bold(true)
)

// Frame is everything one redraw needs
type Frame struct {
	View     *service.StateView
	Log      []engine.LogEntry // newest first
	Cursor   engine.Position
	DragFrom *engine.Position
}

// Renderer draws frames onto a tcell screen
type Renderer struct {
	screen tcell.Screen
}

// NewRenderer creates a renderer for screen
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Draw clears the screen and paints the frame
func (r *Renderer) Draw(f Frame) {
	r.screen.Clear()
	if f.View == nil || f.View.GameState == nil {
		r.put(0, 0, "No game state available", styleText)
		r.screen.Show()
		return
	}

	state := f.View.GameState
	size := boardSize(f.View)

	r.put(0, 0, fmt.Sprintf("TRAP GRID  session %s  TURN %d", f.View.SessionID, state.Turn), styleTitle)
	r.put(0, 1, "[m] move  [t] trap  [arrows] cursor  [enter] activate  [q] quit", styleDim)

	for col := 0; col < size; col++ {
		r.put(boardLeft+col*cellW+2, boardTop-1, fmt.Sprintf("%d", col+1), styleDim)
	}
	for row := 0; row < size; row++ {
		r.put(boardLeft-3, boardTop+row*cellH, fmt.Sprintf("%2d", row+1), styleDim)
		for col := 0; col < size; col++ {
			r.drawCell(state, engine.Position{Row: row, Col: col}, f)
		}
	}

	y := boardTop + size*cellH
	r.drawControls(y, state.PendingAction)
	r.put(boardLeft, y+2, f.View.Hint, styleHint)
	if f.View.Notice != nil {
		r.put(boardLeft, y+4, " ! "+f.View.Notice.Message+" ", styleBanner)
	}

	r.drawLog(logLeft(size), boardTop-1, size*cellH+1, f.Log)
	r.screen.Show()
}

func (r *Renderer) drawCell(state *engine.GameState, pos engine.Position, f Frame) {
	agents := state.AgentsAt(pos)
	traps := state.TrapsAt(pos)

	style := styleCell
	switch {
	case state.Selection != nil && *state.Selection == pos:
		style = styleSelected
	case f.DragFrom != nil && *f.DragFrom == pos:
		style = styleDrag
	case len(agents) > 0:
		style = styleAgent
	}
	if f.Cursor == pos {
		style = style.Reverse(true)
	}

	x0 := boardLeft + pos.Col*cellW
	y0 := boardTop + pos.Row*cellH
	for dy := 0; dy < cellH-1; dy++ {
		for dx := 0; dx < cellW-1; dx++ {
			r.screen.SetContent(x0+dx, y0+dy, ' ', nil, style)
		}
	}

	r.put(x0, y0, agentLabel(agents, cellW-1), style)
	if traps > 0 {
		trapStyle := style
		if style == styleCell {
			trapStyle = styleTrap
		}
		r.put(x0, y0+1, fmt.Sprintf("T%d", traps), trapStyle)
	}
}

func (r *Renderer) drawControls(y int, pending engine.ActionKind) {
	for i, kind := range []engine.ActionKind{engine.ActionMove, engine.ActionTrap} {
		style := styleInactive
		if pending == kind {
			style = styleActive
		}
		label := fmt.Sprintf(" %-*s", controlWidth-1, controlLabel(kind))
		r.put(controlX(i), y, label, style)
	}
}

func (r *Renderer) drawLog(x, y, height int, entries []engine.LogEntry) {
	r.put(x, y, "LOG", styleTitle)
	for i, entry := range entries {
		if i >= height-1 {
			break
		}
		line := fmt.Sprintf("%3d %s", entry.Seq, entry.Message)
		if len(line) > logWidth {
			line = line[:logWidth]
		}
		r.put(x, y+1+i, line, styleText)
	}
}

func (r *Renderer) put(x, y int, s string, style tcell.Style) {
	for _, ch := range s {
		r.screen.SetContent(x, y, ch, nil, style)
		x++
	}
}

// agentLabel lists agent IDs, collapsing to "A1+n" when they do not fit
func agentLabel(agents []engine.Agent, width int) string {
	var label string
	for _, a := range agents {
		label += fmt.Sprintf("A%d", a.ID)
	}
	if len(label) > width && len(agents) > 0 {
		label = fmt.Sprintf("A%d+%d", agents[0].ID, len(agents)-1)
	}
	return label
}

func controlLabel(kind engine.ActionKind) string {
	if kind == engine.ActionMove {
		return "MOVE (m)"
	}
	return "TRAP (t)"
}

func logLeft(size int) int {
	return boardLeft + size*cellW + 2
}

// RequiredWidth is the number of terminal columns a board of the given size
// needs, log panel included.
func RequiredWidth(size int) int {
	return logLeft(size) + logWidth
}

func controlX(i int) int {
	return boardLeft + i*(controlWidth+controlGap)
}

func boardSize(view *service.StateView) int {
	if view != nil && view.Rules != nil {
		return view.Rules.BoardSize
	}
	return engine.DefaultBoardSize
}

// cellAt maps a screen coordinate to a board cell. Gutters map to nothing.
func cellAt(x, y, size int) (engine.Position, bool) {
	dx, dy := x-boardLeft, y-boardTop
	if dx < 0 || dy < 0 || dx%cellW == cellW-1 || dy%cellH == cellH-1 {
		return engine.Position{}, false
	}
	pos := engine.Position{Row: dy / cellH, Col: dx / cellW}
	return pos, pos.InBounds(size)
}

// controlAt maps a screen coordinate to an action control
func controlAt(x, y, size int) (engine.ActionKind, bool) {
	if y != boardTop+size*cellH {
		return engine.ActionNone, false
	}
	for i, kind := range []engine.ActionKind{engine.ActionMove, engine.ActionTrap} {
		if x >= controlX(i) && x < controlX(i)+controlWidth {
			return kind, true
		}
	}
	return engine.ActionNone, false
}
