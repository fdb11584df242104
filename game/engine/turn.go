package engine

import (
	"fmt"
	"strings"
)

// Transitions return the events they produced. A nil slice with a nil error
// is a silent rejection: the command did not apply and nothing is logged.

// DeployAgent places the next agent during deployment. The last agent ends
// deployment and starts turn 1. Clicks past the cap are ignored.
func (gs *GameState) DeployAgent(cell Position, rules *Rules) ([]Event, error) {
	if !cell.InBounds(rules.BoardSize) {
		return nil, fmt.Errorf("deploy at %v: %w", cell, ErrInvalidPosition)
	}
	if gs.Turn != 0 || len(gs.Agents) >= rules.MaxAgents {
		return nil, nil
	}

	agent := Agent{ID: len(gs.Agents) + 1, Position: cell}
	gs.Agents = append(gs.Agents, agent)

	events := []Event{{
		Kind:    EventAgentDeployed,
		Message: fmt.Sprintf("AGENT A%d DEPLOYED TO %s", agent.ID, cell),
		Turn:    gs.Turn,
		AgentID: agent.ID,
		To:      posPtr(cell),
	}}

	if len(gs.Agents) == rules.MaxAgents {
		gs.Turn = 1
		events = append(events, Event{
			Kind:    EventDeploymentComplete,
			Message: "DEPLOYMENT COMPLETE - TURN 1",
			Turn:    gs.Turn,
		})
	}

	return events, nil
}

// ChooseAction sets the pending action. An existing selection is kept, so a
// player can switch between move and trap after picking an agent.
func (gs *GameState) ChooseAction(kind ActionKind) ([]Event, error) {
	if kind != ActionMove && kind != ActionTrap {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, kind)
	}
	if gs.Turn == 0 {
		return nil, nil
	}

	gs.PendingAction = kind
	return []Event{{
		Kind:    EventActionChosen,
		Message: fmt.Sprintf("%s SELECTED", strings.ToUpper(string(kind))),
		Turn:    gs.Turn,
		Action:  kind,
	}}, nil
}

// SelectAgentCell picks the cell whose agent will act
func (gs *GameState) SelectAgentCell(cell Position, rules *Rules) ([]Event, error) {
	if !cell.InBounds(rules.BoardSize) {
		return nil, fmt.Errorf("select %v: %w", cell, ErrInvalidPosition)
	}
	if gs.Turn == 0 || gs.Selection != nil {
		return nil, nil
	}
	if gs.PendingAction == ActionNone {
		return nil, ErrSelectActionFirst
	}
	if gs.FirstAgentAt(cell) < 0 {
		return nil, nil
	}

	gs.Selection = posPtr(cell)
	return []Event{{
		Kind:    EventCellSelected,
		Message: fmt.Sprintf("CELL %s SELECTED FOR %s", cell, strings.ToUpper(string(gs.PendingAction))),
		Turn:    gs.Turn,
		To:      posPtr(cell),
		Action:  gs.PendingAction,
	}}, nil
}

// ActivateCell interprets a click or drag release according to the phase:
// deploy, select an agent cell, or resolve the pending action on a target.
func (gs *GameState) ActivateCell(cell Position, rules *Rules) ([]Event, error) {
	if !cell.InBounds(rules.BoardSize) {
		return nil, fmt.Errorf("activate %v: %w", cell, ErrInvalidPosition)
	}
	if gs.Turn == 0 {
		return gs.DeployAgent(cell, rules)
	}
	if gs.PendingAction == ActionNone {
		return nil, ErrSelectActionFirst
	}
	if gs.Selection == nil {
		return gs.SelectAgentCell(cell, rules)
	}
	return gs.ResolveAction(cell, rules)
}

// BeginDrag captures a drag starting on an agent. Dragging always moves, so
// the pending action switches to move before the origin is selected.
func (gs *GameState) BeginDrag(origin Position, rules *Rules) ([]Event, error) {
	if !origin.InBounds(rules.BoardSize) {
		return nil, fmt.Errorf("drag from %v: %w", origin, ErrInvalidPosition)
	}
	if gs.Turn == 0 || gs.Selection != nil || gs.FirstAgentAt(origin) < 0 {
		return nil, nil
	}

	var events []Event
	if gs.PendingAction != ActionMove {
		chosen, err := gs.ChooseAction(ActionMove)
		if err != nil {
			return nil, err
		}
		events = append(events, chosen...)
	}

	selected, err := gs.SelectAgentCell(origin, rules)
	if err != nil {
		return events, err
	}
	return append(events, selected...), nil
}

// Phase derives the turn machine state
func (gs *GameState) Phase() Phase {
	switch {
	case gs.Turn == 0:
		return PhaseDeployment
	case gs.PendingAction == ActionNone:
		return PhaseAwaitingAction
	case gs.Selection == nil:
		return PhaseAwaitingSelection
	default:
		return PhaseAwaitingTarget
	}
}

// Hint is the one-line instruction shown to the player for the current phase
func (gs *GameState) Hint(rules *Rules) string {
	verb := "MOVE"
	if gs.PendingAction == ActionTrap {
		verb = "DEPLOY TRAP"
	}

	switch gs.Phase() {
	case PhaseDeployment:
		return fmt.Sprintf("DEPLOY %d AGENTS BY CLICKING ANY CELL", rules.MaxAgents-len(gs.Agents))
	case PhaseAwaitingAction:
		return "SELECT MOVE OR TRAP"
	case PhaseAwaitingSelection:
		return "CLICK AN AGENT CELL TO " + verb
	default:
		return "CLICK AN ADJACENT CELL TO " + verb
	}
}
