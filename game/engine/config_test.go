package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createValidRules() *Rules {
	return &Rules{
		Name:            "test",
		Description:     "Rules for config tests",
		BoardSize:       4,
		MaxAgents:       4,
		MaxTrapsPerCell: 4,
		ErrorDisplayMs:  2000,
	}
}

func TestValidateRules_ValidRules(t *testing.T) {
	if err := ValidateRules(createValidRules()); err != nil {
		t.Errorf("Expected valid rules, got error: %v", err)
	}
	if err := ValidateRules(DefaultRules()); err != nil {
		t.Errorf("Expected default rules to be valid, got error: %v", err)
	}
}

func TestValidateRules_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Rules)
		wantErr string
	}{
		{"missing name", func(r *Rules) { r.Name = "" }, "name is required"},
		{"missing description", func(r *Rules) { r.Description = "" }, "description is required"},
		{"board too small", func(r *Rules) { r.BoardSize = 1 }, "board_size must be between"},
		{"board too large", func(r *Rules) { r.BoardSize = MaxBoardSize + 1 }, "board_size must be between"},
		{"no agents", func(r *Rules) { r.MaxAgents = 0 }, "max_agents must be between"},
		{"more agents than cells", func(r *Rules) { r.MaxAgents = 17 }, "max_agents must be between 1 and 16"},
		{"no trap capacity", func(r *Rules) { r.MaxTrapsPerCell = 0 }, "max_traps_per_cell"},
		{"trap capacity too large", func(r *Rules) { r.MaxTrapsPerCell = MaxTrapsPerCellCap + 1 }, "max_traps_per_cell"},
		{"error display too short", func(r *Rules) { r.ErrorDisplayMs = 10 }, "error_display_ms"},
		{"error display too long", func(r *Rules) { r.ErrorDisplayMs = MaxErrorDisplayMs + 1 }, "error_display_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := createValidRules()
			tt.mutate(rules)
			err := ValidateRules(rules)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateRules_Nil(t *testing.T) {
	if err := ValidateRules(nil); err == nil {
		t.Error("Expected error for nil rules")
	}
}

func TestRules_ErrorDisplayDuration(t *testing.T) {
	rules := DefaultRules()
	if got := rules.ErrorDisplayDuration().Seconds(); got != 2 {
		t.Errorf("Expected 2s error display, got %vs", got)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "classic.json")
	jsonData := `{"name":"classic","description":"json rules","board_size":4,"max_agents":4,"max_traps_per_cell":4,"error_display_ms":2000}`
	if err := os.WriteFile(jsonPath, []byte(jsonData), 0644); err != nil {
		t.Fatalf("Failed to write json rules: %v", err)
	}

	yamlPath := filepath.Join(dir, "big.yaml")
	yamlData := "name: big\ndescription: yaml rules\nboard_size: 6\nmax_agents: 3\nmax_traps_per_cell: 2\nerror_display_ms: 1500\n"
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0644); err != nil {
		t.Fatalf("Failed to write yaml rules: %v", err)
	}

	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte(`{"name":"bad","description":"x","board_size":1}`), 0644); err != nil {
		t.Fatalf("Failed to write bad rules: %v", err)
	}

	t.Run("json", func(t *testing.T) {
		rules, err := LoadRules(jsonPath)
		if err != nil {
			t.Fatalf("Failed to load json rules: %v", err)
		}
		if rules.Name != "classic" || rules.BoardSize != 4 {
			t.Errorf("Unexpected rules: %+v", rules)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		rules, err := LoadRules(yamlPath)
		if err != nil {
			t.Fatalf("Failed to load yaml rules: %v", err)
		}
		if rules.BoardSize != 6 || rules.MaxAgents != 3 || rules.MaxTrapsPerCell != 2 || rules.ErrorDisplayMs != 1500 {
			t.Errorf("Unexpected rules: %+v", rules)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := LoadRules(badPath); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := LoadRules(filepath.Join(dir, "nope.json")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}

func TestValidateState(t *testing.T) {
	rules := DefaultRules()

	deployed := func() *GameState {
		gs := NewGameState(rules)
		for c := 0; c < 4; c++ {
			gs.Agents = append(gs.Agents, Agent{ID: c + 1, Position: Position{Row: 0, Col: c}})
		}
		gs.Turn = 1
		return gs
	}

	tests := []struct {
		name    string
		state   func() *GameState
		wantErr bool
	}{
		{"fresh game", func() *GameState { return NewGameState(rules) }, false},
		{"deployed game", deployed, false},
		{"nil state", func() *GameState { return nil }, true},
		{"turn without full deployment", func() *GameState {
			gs := NewGameState(rules)
			gs.Turn = 1
			return gs
		}, true},
		{"full deployment stuck at turn 0", func() *GameState {
			gs := deployed()
			gs.Turn = 0
			return gs
		}, true},
		{"agent off board", func() *GameState {
			gs := deployed()
			gs.Agents[0].Position = Position{Row: 4, Col: 0}
			return gs
		}, true},
		{"overfull trap cell", func() *GameState {
			gs := deployed()
			for i := 0; i < 5; i++ {
				gs.Traps = append(gs.Traps, Trap{ID: i + 1, Position: Position{Row: 1, Col: 0}})
			}
			return gs
		}, true},
		{"selection without action", func() *GameState {
			gs := deployed()
			gs.Selection = &Position{Row: 0, Col: 0}
			return gs
		}, true},
		{"selection on empty cell", func() *GameState {
			gs := deployed()
			gs.PendingAction = ActionMove
			gs.Selection = &Position{Row: 3, Col: 3}
			return gs
		}, true},
		{"unknown pending action", func() *GameState {
			gs := deployed()
			gs.PendingAction = "jump"
			return gs
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateState(tt.state(), rules)
			if tt.wantErr && err == nil {
				t.Fatal("Expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if err != nil && !errors.Is(err, ErrInvalidState) {
				t.Errorf("Expected ErrInvalidState, got %v", err)
			}
		})
	}
}
