package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
)

const cellWidth = 8

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	fmt.Fprintf(&b, "Config: %s\n", session.ConfigName)
	fmt.Fprintf(&b, "Phase: %s\n", session.Phase)
	if session.GameState != nil {
		fmt.Fprintf(&b, "Turn: %d\n", session.GameState.Turn)
		fmt.Fprintf(&b, "Agents: %d  Traps: %d\n", len(session.GameState.Agents), len(session.GameState.Traps))
	}
	if session.Rules != nil {
		fmt.Fprintf(&b, "Rules: %dx%d board, %d agents, %d traps per cell\n",
			session.Rules.BoardSize, session.Rules.BoardSize, session.Rules.MaxAgents, session.Rules.MaxTrapsPerCell)
	}
	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format(time.RFC3339))
	return b.String()
}

// cellLabel renders the contents of one cell, e.g. "A1A3 T2"
func cellLabel(state *engine.GameState, pos engine.Position) string {
	var label string
	for _, a := range state.AgentsAt(pos) {
		label += fmt.Sprintf("A%d", a.ID)
	}
	if n := state.TrapsAt(pos); n > 0 {
		if label != "" {
			label += " "
		}
		label += fmt.Sprintf("T%d", n)
	}
	if label == "" {
		label = "."
	}
	return label
}

// formatBoard draws the board with 0-based headers. The selected cell is
// wrapped in brackets.
func formatBoard(state *engine.GameState, size int) string {
	var b strings.Builder
	b.WriteString("    ")
	for col := 0; col < size; col++ {
		fmt.Fprintf(&b, " %-*d", cellWidth, col)
	}
	b.WriteString("\n")

	for row := 0; row < size; row++ {
		fmt.Fprintf(&b, "%3d ", row)
		for col := 0; col < size; col++ {
			pos := engine.Position{Row: row, Col: col}
			label := cellLabel(state, pos)
			if state.Selection != nil && *state.Selection == pos {
				label = "[" + label + "]"
			}
			fmt.Fprintf(&b, " %-*s", cellWidth, label)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatStateView(view *service.StateView) string {
	state := view.GameState
	if state == nil {
		return "No game state available"
	}

	size := engine.DefaultBoardSize
	if view.Rules != nil {
		size = view.Rules.BoardSize
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s | Turn %d | Phase %s\n", view.SessionID, state.Turn, view.Phase)
	action := "none"
	if state.PendingAction != engine.ActionNone {
		action = string(state.PendingAction)
	}
	selection := "none"
	if state.Selection != nil {
		selection = fmt.Sprintf("{row:%d col:%d}", state.Selection.Row, state.Selection.Col)
	}
	fmt.Fprintf(&b, "Action: %s | Selection: %s\n\n", action, selection)
	b.WriteString(formatBoard(state, size))
	fmt.Fprintf(&b, "\nHint: %s\n", view.Hint)
	if view.Notice != nil {
		fmt.Fprintf(&b, "ERROR: %s\n", view.Notice.Message)
	}
	return b.String()
}

func formatCommandResult(result *service.CommandResult) string {
	var b strings.Builder
	switch {
	case result.Notice != nil:
		fmt.Fprintf(&b, "ERROR: %s\n", result.Notice.Message)
	case len(result.Events) == 0:
		b.WriteString("Nothing happened (the command does not apply right now).\n")
	default:
		for _, ev := range result.Events {
			fmt.Fprintf(&b, "- %s\n", ev.Message)
		}
	}

	if result.GameState != nil {
		size := boardSizeFor(result.GameState)
		fmt.Fprintf(&b, "\nTurn %d | Phase %s\n", result.GameState.Turn, result.Phase)
		b.WriteString(formatBoard(result.GameState, size))
	}
	if result.Hint != "" {
		fmt.Fprintf(&b, "\nHint: %s\n", result.Hint)
	}
	return b.String()
}

// boardSizeFor infers the board size when only the state is at hand
func boardSizeFor(state *engine.GameState) int {
	size := engine.DefaultBoardSize
	for _, a := range state.Agents {
		if a.Position.Row+1 > size {
			size = a.Position.Row + 1
		}
		if a.Position.Col+1 > size {
			size = a.Position.Col + 1
		}
	}
	for _, t := range state.Traps {
		if t.Position.Row+1 > size {
			size = t.Position.Row + 1
		}
		if t.Position.Col+1 > size {
			size = t.Position.Col + 1
		}
	}
	return size
}

func formatLog(page *service.LogResponse) string {
	if page.TotalEntries == 0 {
		return "The log is empty."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Log page %d/%d (%d entries)\n", page.Page, page.TotalPages, page.TotalEntries)
	for _, entry := range page.Entries {
		fmt.Fprintf(&b, "#%d [turn %d] %s\n", entry.Seq, entry.Turn, entry.Message)
	}
	if page.HasNext {
		fmt.Fprintf(&b, "More entries on page %d\n", page.Page+1)
	}
	return b.String()
}

func describeCell(view *service.StateView, pos engine.Position) string {
	state := view.GameState
	size := engine.DefaultBoardSize
	if view.Rules != nil {
		size = view.Rules.BoardSize
	}
	if state == nil || !pos.InBounds(size) {
		return fmt.Sprintf("Cell {row:%d col:%d} is off the board. Valid rows and columns are 0-%d.", pos.Row, pos.Col, size-1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cell {row:%d col:%d}\n", pos.Row, pos.Col)

	agents := state.AgentsAt(pos)
	if len(agents) == 0 {
		b.WriteString("Agents: none\n")
	} else {
		ids := make([]string, 0, len(agents))
		for _, a := range agents {
			ids = append(ids, fmt.Sprintf("A%d", a.ID))
		}
		fmt.Fprintf(&b, "Agents: %s (first placed moves first)\n", strings.Join(ids, ", "))
	}

	traps := state.TrapsAt(pos)
	if view.Rules != nil {
		fmt.Fprintf(&b, "Traps: %d of %d\n", traps, view.Rules.MaxTrapsPerCell)
	} else {
		fmt.Fprintf(&b, "Traps: %d\n", traps)
	}

	adjacent := engine.Neighbors(pos, size)
	cells := make([]string, 0, len(adjacent))
	for _, n := range adjacent {
		cells = append(cells, fmt.Sprintf("{row:%d col:%d}", n.Row, n.Col))
	}
	fmt.Fprintf(&b, "Adjacent cells: %s\n", strings.Join(cells, ", "))

	switch {
	case state.Selection != nil && *state.Selection == pos:
		b.WriteString("This is the selected cell.\n")
	case state.Selection != nil && engine.IsAdjacent(*state.Selection, pos):
		fmt.Fprintf(&b, "Adjacent to the selection: activate it to %s here.\n", state.PendingAction)
	case state.Selection != nil:
		b.WriteString("Not adjacent to the selection: activating it does nothing.\n")
	}
	return b.String()
}
