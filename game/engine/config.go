package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules are the tunable limits of a game, loaded from JSON or YAML files
type Rules struct {
	Name            string `json:"name" yaml:"name"`
	Description     string `json:"description" yaml:"description"`
	BoardSize       int    `json:"board_size" yaml:"board_size"`
	MaxAgents       int    `json:"max_agents" yaml:"max_agents"`
	MaxTrapsPerCell int    `json:"max_traps_per_cell" yaml:"max_traps_per_cell"`
	ErrorDisplayMs  int    `json:"error_display_ms" yaml:"error_display_ms"`
}

// ErrorDisplayDuration is how long a user error stays on the error surface
func (r *Rules) ErrorDisplayDuration() time.Duration {
	return time.Duration(r.ErrorDisplayMs) * time.Millisecond
}

// DefaultRules returns the classic 4x4 rules
func DefaultRules() *Rules {
	return &Rules{
		Name:            "classic",
		Description:     "Classic 4x4 board, four agents, four traps per cell",
		BoardSize:       DefaultBoardSize,
		MaxAgents:       DefaultMaxAgents,
		MaxTrapsPerCell: DefaultMaxTrapsPerCell,
		ErrorDisplayMs:  DefaultErrorDisplayMs,
	}
}

// ValidateRules validates a rules configuration for correctness and playability
func ValidateRules(rules *Rules) error {
	if rules == nil {
		return fmt.Errorf("config validation: rules are required")
	}
	if rules.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if rules.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	if rules.BoardSize < MinBoardSize || rules.BoardSize > MaxBoardSize {
		return fmt.Errorf("config validation: board_size must be between %d and %d, got %d",
			MinBoardSize, MaxBoardSize, rules.BoardSize)
	}

	// Deployment must be able to finish on the board
	cells := rules.BoardSize * rules.BoardSize
	if rules.MaxAgents < 1 || rules.MaxAgents > cells {
		return fmt.Errorf("config validation: max_agents must be between 1 and %d, got %d", cells, rules.MaxAgents)
	}

	if rules.MaxTrapsPerCell < 1 || rules.MaxTrapsPerCell > MaxTrapsPerCellCap {
		return fmt.Errorf("config validation: max_traps_per_cell must be between 1 and %d, got %d",
			MaxTrapsPerCellCap, rules.MaxTrapsPerCell)
	}

	if rules.ErrorDisplayMs < MinErrorDisplayMs || rules.ErrorDisplayMs > MaxErrorDisplayMs {
		return fmt.Errorf("config validation: error_display_ms must be between %d and %d, got %d",
			MinErrorDisplayMs, MaxErrorDisplayMs, rules.ErrorDisplayMs)
	}

	return nil
}

// ParseRules decodes rules from data. The format is picked from the file
// extension: .yaml and .yml are YAML, anything else is JSON.
func ParseRules(data []byte, filename string) (*Rules, error) {
	var rules Rules
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("failed to parse YAML rules: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("failed to parse JSON rules: %w", err)
		}
	}
	return &rules, nil
}

// LoadRules loads and validates a rules file
func LoadRules(filename string) (*Rules, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	rules, err := ParseRules(data, filename)
	if err != nil {
		return nil, err
	}

	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// ValidateState checks that a state (typically loaded from storage) is one the
// turn machine could have produced under the given rules.
func ValidateState(state *GameState, rules *Rules) error {
	if state == nil {
		return fmt.Errorf("%w: state cannot be nil", ErrInvalidState)
	}
	if state.Turn < 0 {
		return fmt.Errorf("%w: negative turn %d", ErrInvalidState, state.Turn)
	}
	if len(state.Agents) > rules.MaxAgents {
		return fmt.Errorf("%w: %d agents exceed max_agents %d", ErrInvalidState, len(state.Agents), rules.MaxAgents)
	}
	if (state.Turn == 0) != (len(state.Agents) < rules.MaxAgents) {
		return fmt.Errorf("%w: turn %d does not match %d deployed agents", ErrInvalidState, state.Turn, len(state.Agents))
	}

	for i, agent := range state.Agents {
		if agent.ID != i+1 {
			return fmt.Errorf("%w: agent %d has id %d", ErrInvalidState, i+1, agent.ID)
		}
		if !agent.Position.InBounds(rules.BoardSize) {
			return fmt.Errorf("%w: agent A%d at %v is off the board", ErrInvalidState, agent.ID, agent.Position)
		}
	}

	counts := make(map[Position]int)
	for _, trap := range state.Traps {
		if !trap.Position.InBounds(rules.BoardSize) {
			return fmt.Errorf("%w: trap %d at %v is off the board", ErrInvalidState, trap.ID, trap.Position)
		}
		counts[trap.Position]++
		if counts[trap.Position] > rules.MaxTrapsPerCell {
			return fmt.Errorf("%w: cell %v holds more than %d traps", ErrInvalidState, trap.Position, rules.MaxTrapsPerCell)
		}
	}

	switch state.PendingAction {
	case ActionNone, ActionMove, ActionTrap:
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidState, ErrInvalidAction, state.PendingAction)
	}

	if state.Selection != nil {
		if state.Turn == 0 || state.PendingAction == ActionNone {
			return fmt.Errorf("%w: selection without a chosen action", ErrInvalidState)
		}
		if len(state.AgentsAt(*state.Selection)) == 0 {
			return fmt.Errorf("%w: selected cell %v holds no agent", ErrInvalidState, *state.Selection)
		}
	}

	return nil
}

// NewGameState creates an empty game in the deployment phase
func NewGameState(rules *Rules) *GameState {
	name := ""
	if rules != nil {
		name = rules.Name
	}
	return &GameState{
		Agents:     []Agent{},
		Traps:      []Trap{},
		Turn:       0,
		ConfigName: name,
	}
}
