package engine

import "fmt"

// ActionKind is the action a player commits to for the current turn
type ActionKind string

const (
	ActionNone ActionKind = ""
	ActionMove ActionKind = "move"
	ActionTrap ActionKind = "trap"
)

// Phase is the derived state of the turn machine
type Phase string

const (
	PhaseDeployment        Phase = "deployment"
	PhaseAwaitingAction    Phase = "awaiting_action"
	PhaseAwaitingSelection Phase = "awaiting_selection"
	PhaseAwaitingTarget    Phase = "awaiting_target"
)

const (
	DefaultBoardSize       = 4
	DefaultMaxAgents       = 4
	DefaultMaxTrapsPerCell = 4
	DefaultErrorDisplayMs  = 2000

	// Validation constants
	MinBoardSize       = 2
	MaxBoardSize       = 16
	MaxTrapsPerCellCap = 16
	MinErrorDisplayMs  = 100
	MaxErrorDisplayMs  = 60000
)

// Position identifies a board cell, zero-based
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String renders the position the way players read it: 1-indexed
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row+1, p.Col+1)
}

// Index returns the row-major cell index on a board of the given size
func (p Position) Index(boardSize int) int {
	return p.Row*boardSize + p.Col
}

// InBounds reports whether the position lies on a board of the given size
func (p Position) InBounds(boardSize int) bool {
	return p.Row >= 0 && p.Row < boardSize && p.Col >= 0 && p.Col < boardSize
}

// PositionFromIndex is the inverse of Position.Index
func PositionFromIndex(index, boardSize int) Position {
	return Position{Row: index / boardSize, Col: index % boardSize}
}

// Agent is a deployed piece. Agents are never removed.
type Agent struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
}

// Trap is an immutable marker placed next to an agent
type Trap struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
}

// GameState represents the complete game state
type GameState struct {
	Agents        []Agent    `json:"agents"`
	Traps         []Trap     `json:"traps"`
	Turn          int        `json:"turn"`
	Selection     *Position  `json:"selection,omitempty"`
	PendingAction ActionKind `json:"pending_action,omitempty"`
	ConfigName    string     `json:"config_name"`
}

// EventKind classifies log events
type EventKind string

const (
	EventAgentDeployed      EventKind = "agent_deployed"
	EventDeploymentComplete EventKind = "deployment_complete"
	EventActionChosen       EventKind = "action_chosen"
	EventCellSelected       EventKind = "cell_selected"
	EventAgentMoved         EventKind = "agent_moved"
	EventTrapDeployed       EventKind = "trap_deployed"
	EventTrapRejected       EventKind = "trap_rejected"
	EventTurnStarted        EventKind = "turn_started"
)

// Event is produced by every state transition that changes something worth logging.
// Turn is the turn number after the transition.
type Event struct {
	Kind    EventKind  `json:"kind"`
	Message string     `json:"message"`
	Turn    int        `json:"turn"`
	AgentID int        `json:"agent_id,omitempty"`
	TrapID  int        `json:"trap_id,omitempty"`
	From    *Position  `json:"from,omitempty"`
	To      *Position  `json:"to,omitempty"`
	Action  ActionKind `json:"action,omitempty"`
}

// LogEntry is an event as recorded in the append-only game log
type LogEntry struct {
	Seq       int   `json:"seq"`
	Timestamp int64 `json:"timestamp"`
	Event
}
