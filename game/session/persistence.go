package session

import (
	"fmt"
	"time"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session. The error surface is
// presentation state and is not part of it.
type PersistedSessionData struct {
	ID             string            `json:"id"`
	ConfigName     string            `json:"config_name"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Rules          *engine.Rules     `json:"rules,omitempty"`
	GameState      *engine.GameState `json:"game_state"`
	Log            []engine.LogEntry `json:"log"`
}

// snapshot copies a live session and returns with the session lock still
// held. Stores release it after writing, so writes of one session land in
// the order its changes were made.
func snapshot(session *service.Session) (*PersistedSessionData, func(), error) {
	if session == nil {
		return nil, nil, fmt.Errorf("session cannot be nil")
	}

	session.Lock()
	if session.Detached() {
		session.Unlock()
		return nil, nil, fmt.Errorf("session %s: %w", session.ID, errSessionDetached)
	}
	if session.Engine == nil {
		session.Unlock()
		return nil, nil, fmt.Errorf("session %s has no engine", session.ID)
	}

	entries := session.Engine.GetLog()
	log := make([]engine.LogEntry, len(entries))
	copy(log, entries)

	return &PersistedSessionData{
		ID:             session.ID,
		ConfigName:     session.ConfigID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		Rules:          session.Rules,
		GameState:      session.Engine.GetState().Clone(),
		Log:            log,
	}, session.Unlock, nil
}

// restore rebuilds a live session. The stored rules snapshot wins so a game
// keeps the rules it started with; older records fall back to the config.
func restore(data *PersistedSessionData, configs service.ConfigManager) (*service.Session, error) {
	rules := data.Rules
	if rules == nil || engine.ValidateRules(rules) != nil {
		if configs == nil {
			return nil, fmt.Errorf("session %s: no rules stored and no config manager", data.ID)
		}
		loaded, err := configs.LoadConfig(data.ConfigName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
		rules = loaded
	}

	gameEngine, err := engine.NewEngine(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}

	if data.GameState != nil {
		if err := gameEngine.SetState(data.GameState); err != nil {
			return nil, fmt.Errorf("failed to set game state: %w", err)
		}
	}
	gameEngine.SetLog(data.Log)

	return &service.Session{
		ID:             data.ID,
		ConfigID:       data.ConfigName,
		Engine:         gameEngine,
		Rules:          rules,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}
