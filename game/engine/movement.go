package engine

import "fmt"

// ResolveAction applies the pending action from the selected cell to target.
// Targets that are not orthogonally adjacent to the selection are ignored.
func (gs *GameState) ResolveAction(target Position, rules *Rules) ([]Event, error) {
	if !target.InBounds(rules.BoardSize) {
		return nil, fmt.Errorf("resolve at %v: %w", target, ErrInvalidPosition)
	}
	if gs.Selection == nil || gs.PendingAction == ActionNone {
		return nil, nil
	}
	if !IsAdjacent(*gs.Selection, target) {
		return nil, nil
	}

	switch gs.PendingAction {
	case ActionMove:
		return gs.resolveMove(target), nil
	case ActionTrap:
		return gs.resolveTrap(target, rules), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, gs.PendingAction)
	}
}

// resolveMove relocates the agent found at the selection by position lookup.
// With several agents on one cell the first-created one moves.
func (gs *GameState) resolveMove(target Position) []Event {
	from := *gs.Selection
	idx := gs.FirstAgentAt(from)
	if idx < 0 {
		return nil
	}

	gs.Agents[idx].Position = target
	agentID := gs.Agents[idx].ID

	moved := Event{
		Kind:    EventAgentMoved,
		Message: fmt.Sprintf("AGENT A%d MOVED FROM %s TO %s", agentID, from, target),
		Turn:    gs.Turn,
		AgentID: agentID,
		From:    posPtr(from),
		To:      posPtr(target),
		Action:  ActionMove,
	}
	return []Event{moved, gs.endTurn()}
}

// resolveTrap places a trap next to the acting agent. A full cell is logged
// and the turn does not advance.
func (gs *GameState) resolveTrap(target Position, rules *Rules) []Event {
	from := *gs.Selection
	if gs.TrapsAt(target) >= rules.MaxTrapsPerCell {
		return []Event{{
			Kind:    EventTrapRejected,
			Message: fmt.Sprintf("CANNOT DEPLOY TRAP AT %s - CELL FULL", target),
			Turn:    gs.Turn,
			From:    posPtr(from),
			To:      posPtr(target),
			Action:  ActionTrap,
		}}
	}

	trap := Trap{ID: gs.nextTrapID(), Position: target}
	gs.Traps = append(gs.Traps, trap)

	deployed := Event{
		Kind:    EventTrapDeployed,
		Message: fmt.Sprintf("TRAP DEPLOYED TO %s", target),
		Turn:    gs.Turn,
		TrapID:  trap.ID,
		From:    posPtr(from),
		To:      posPtr(target),
		Action:  ActionTrap,
	}
	return []Event{deployed, gs.endTurn()}
}

// endTurn is the only way back to awaiting an action choice
func (gs *GameState) endTurn() Event {
	gs.Selection = nil
	gs.PendingAction = ActionNone
	gs.Turn++
	return Event{
		Kind:    EventTurnStarted,
		Message: fmt.Sprintf("TURN %d", gs.Turn),
		Turn:    gs.Turn,
	}
}

func (gs *GameState) nextTrapID() int {
	maxID := 0
	for _, t := range gs.Traps {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	return maxID + 1
}
