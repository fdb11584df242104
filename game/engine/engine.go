package engine

import (
	"fmt"
	"time"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	GetRules() *Rules
	Phase() Phase
	Hint() string

	// Commands
	DeployAgent(cell Position) ([]Event, error)
	ChooseAction(kind ActionKind) ([]Event, error)
	SelectAgentCell(cell Position) ([]Event, error)
	ResolveAction(target Position) ([]Event, error)
	ActivateCell(cell Position) ([]Event, error)
	BeginDrag(origin Position) ([]Event, error)

	// Log
	GetLog() []LogEntry
	SetLog(entries []LogEntry)
	GetLastEntry() *LogEntry
}

// GameEngine implements the Engine interface. It is not safe for concurrent
// use; callers serialise commands.
type GameEngine struct {
	state *GameState
	rules *Rules
	log   []LogEntry
	now   func() time.Time
}

// NewEngine creates a new game engine with the provided rules
func NewEngine(rules *Rules) (*GameEngine, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	return &GameEngine{
		rules: rules,
		state: NewGameState(rules),
		log:   []LogEntry{},
		now:   time.Now,
	}, nil
}

// NewEngineWithDefaults creates a new game engine with the classic rules
func NewEngineWithDefaults() *GameEngine {
	rules := DefaultRules()
	return &GameEngine{
		rules: rules,
		state: NewGameState(rules),
		log:   []LogEntry{},
		now:   time.Now,
	}
}

// GetState returns the current game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// SetState replaces the game state (used for persistence loading)
func (e *GameEngine) SetState(state *GameState) error {
	if err := ValidateState(state, e.rules); err != nil {
		return err
	}
	if state.Agents == nil {
		state.Agents = []Agent{}
	}
	if state.Traps == nil {
		state.Traps = []Trap{}
	}
	e.state = state
	return nil
}

// GetRules returns the rules the engine was built with
func (e *GameEngine) GetRules() *Rules {
	return e.rules
}

// Phase returns the current turn machine phase
func (e *GameEngine) Phase() Phase {
	return e.state.Phase()
}

// Hint returns the player instruction for the current phase
func (e *GameEngine) Hint() string {
	return e.state.Hint(e.rules)
}

// DeployAgent places an agent during deployment
func (e *GameEngine) DeployAgent(cell Position) ([]Event, error) {
	return e.record(e.state.DeployAgent(cell, e.rules))
}

// ChooseAction sets the pending action kind
func (e *GameEngine) ChooseAction(kind ActionKind) ([]Event, error) {
	return e.record(e.state.ChooseAction(kind))
}

// SelectAgentCell selects the acting agent's cell
func (e *GameEngine) SelectAgentCell(cell Position) ([]Event, error) {
	return e.record(e.state.SelectAgentCell(cell, e.rules))
}

// ResolveAction applies the pending action on target
func (e *GameEngine) ResolveAction(target Position) ([]Event, error) {
	return e.record(e.state.ResolveAction(target, e.rules))
}

// ActivateCell is the unified click command
func (e *GameEngine) ActivateCell(cell Position) ([]Event, error) {
	return e.record(e.state.ActivateCell(cell, e.rules))
}

// BeginDrag captures the origin of a drag gesture
func (e *GameEngine) BeginDrag(origin Position) ([]Event, error) {
	return e.record(e.state.BeginDrag(origin, e.rules))
}

// GetLog returns the complete event log
func (e *GameEngine) GetLog() []LogEntry {
	return e.log
}

// SetLog replaces the event log (used for persistence loading)
func (e *GameEngine) SetLog(entries []LogEntry) {
	if entries == nil {
		entries = []LogEntry{}
	}
	e.log = entries
}

// GetLastEntry returns the last log entry, or nil if nothing was logged
func (e *GameEngine) GetLastEntry() *LogEntry {
	if len(e.log) == 0 {
		return nil
	}
	return &e.log[len(e.log)-1]
}

// record appends events to the log in emission order. Events produced before
// an error are still recorded.
func (e *GameEngine) record(events []Event, err error) ([]Event, error) {
	ts := e.now().Unix()
	for _, ev := range events {
		e.log = append(e.log, LogEntry{
			Seq:       len(e.log) + 1,
			Timestamp: ts,
			Event:     ev,
		})
	}
	if err != nil && !IsUserError(err) {
		return events, fmt.Errorf("engine: %w", err)
	}
	return events, err
}
