package engine

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dr := from.Row - to.Row
	if dr < 0 {
		dr = -dr
	}
	dc := from.Col - to.Col
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// IsAdjacent reports orthogonal adjacency: one step up, down, left or right
func IsAdjacent(from, to Position) bool {
	return ManhattanDistance(from, to) == 1
}

// Neighbors returns the orthogonally adjacent cells that lie on the board
func Neighbors(p Position, boardSize int) []Position {
	candidates := []Position{
		{Row: p.Row - 1, Col: p.Col},
		{Row: p.Row + 1, Col: p.Col},
		{Row: p.Row, Col: p.Col - 1},
		{Row: p.Row, Col: p.Col + 1},
	}
	var out []Position
	for _, c := range candidates {
		if c.InBounds(boardSize) {
			out = append(out, c)
		}
	}
	return out
}

// AgentsAt returns the agents on a cell in creation order
func (gs *GameState) AgentsAt(p Position) []Agent {
	var out []Agent
	for _, a := range gs.Agents {
		if a.Position == p {
			out = append(out, a)
		}
	}
	return out
}

// FirstAgentAt returns the index of the first-created agent on a cell, or -1
func (gs *GameState) FirstAgentAt(p Position) int {
	for i, a := range gs.Agents {
		if a.Position == p {
			return i
		}
	}
	return -1
}

// TrapsAt counts the traps on a cell
func (gs *GameState) TrapsAt(p Position) int {
	count := 0
	for _, t := range gs.Traps {
		if t.Position == p {
			count++
		}
	}
	return count
}

// TrapCounts returns trap counts per occupied cell
func (gs *GameState) TrapCounts() map[Position]int {
	counts := make(map[Position]int)
	for _, t := range gs.Traps {
		counts[t.Position]++
	}
	return counts
}

// Clone returns a deep copy safe to hand to readers outside the engine
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	out := &GameState{
		Agents:        append([]Agent{}, gs.Agents...),
		Traps:         append([]Trap{}, gs.Traps...),
		Turn:          gs.Turn,
		PendingAction: gs.PendingAction,
		ConfigName:    gs.ConfigName,
	}
	if gs.Selection != nil {
		sel := *gs.Selection
		out.Selection = &sel
	}
	return out
}

func posPtr(p Position) *Position {
	return &p
}
