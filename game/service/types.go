package service

import (
	"time"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	ConfigName     string            `json:"config_name"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	GameState      *engine.GameState `json:"game_state"`
	Rules          *engine.Rules     `json:"rules"`
	Phase          engine.Phase      `json:"phase"`
}

// CommandResult is returned by every input command. Accepted is false when
// the command was ignored or reported a user error.
type CommandResult struct {
	Accepted  bool              `json:"accepted"`
	GameState *engine.GameState `json:"game_state"`
	Phase     engine.Phase      `json:"phase"`
	Hint      string            `json:"hint"`
	Events    []engine.Event    `json:"events"`
	Notice    *Notice           `json:"notice,omitempty"`
}

// Grabbed reports whether a drag start left origin selected. A drop only
// resolves against a grabbed origin; otherwise it would act on an older
// selection.
func (r *CommandResult) Grabbed(origin engine.Position) bool {
	if r == nil || r.GameState == nil || r.GameState.Selection == nil {
		return false
	}
	return *r.GameState.Selection == origin
}

// StateView is the full projection a renderer needs after any command
type StateView struct {
	SessionID string            `json:"session_id"`
	GameState *engine.GameState `json:"game_state"`
	Rules     *engine.Rules     `json:"rules"`
	Phase     engine.Phase      `json:"phase"`
	Hint      string            `json:"hint"`
	Notice    *Notice           `json:"notice,omitempty"`
	TrapCount map[int]int       `json:"trap_count,omitempty"` // keyed by row-major cell index
}

// Notice is the single transient user-facing error message of a session
type Notice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LogOptions configures log retrieval
type LogOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// LogResponse contains a page of the game log
type LogResponse struct {
	Entries      []engine.LogEntry `json:"entries"`
	TotalEntries int               `json:"total_entries"`
	Page         int               `json:"page"`
	PageSize     int               `json:"page_size"`
	TotalPages   int               `json:"total_pages"`
	HasNext      bool              `json:"has_next"`
	HasPrevious  bool              `json:"has_previous"`
}

// ConfigInfo provides information about a rules configuration
type ConfigInfo struct {
	Filename        string `json:"filename"`
	ConfigID        string `json:"config_id"` // The identifier to use for session creation
	Name            string `json:"name"`      // Display name
	Description     string `json:"description"`
	BoardSize       int    `json:"board_size"`
	MaxAgents       int    `json:"max_agents"`
	MaxTrapsPerCell int    `json:"max_traps_per_cell"`
}
