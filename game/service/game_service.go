package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	DeployAgent(ctx context.Context, sessionID string, cell engine.Position) (*CommandResult, error)
	ChooseAction(ctx context.Context, sessionID string, kind engine.ActionKind) (*CommandResult, error)
	ActivateCell(ctx context.Context, sessionID string, cell engine.Position) (*CommandResult, error)
	BeginDrag(ctx context.Context, sessionID string, origin engine.Position) (*CommandResult, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*StateView, error)
	GetLog(ctx context.Context, sessionID string, opts LogOptions) (*LogResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.Rules, error)
	SaveConfig(ctx context.Context, configName string, rules *engine.Rules) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, rules *engine.Rules) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, configID string, rules *engine.Rules) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	Readmit(session *Session) error
}

// ConfigManager handles rules configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.Rules, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.Rules
	DefaultID() string
	SaveConfig(name string, rules *engine.Rules) error
}

// Session represents an active game session. Engine, LastAccessedAt and
// Notices are guarded by the session lock; ID, ConfigID, Rules and CreatedAt
// never change after creation.
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.GameEngine
	Rules          *engine.Rules
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Notices is the session's error surface. It is presentation state and
	// never persisted.
	Notices *ErrorSurface

	mu       sync.Mutex
	detached bool
}

// Lock acquires the session lock. Commands, snapshots and eviction all take
// it, and none of them call into the session manager while holding it.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock
func (s *Session) Unlock() { s.mu.Unlock() }

// SetDetached records whether a session manager still holds the session.
// Callers hold the session lock.
func (s *Session) SetDetached(detached bool) { s.detached = detached }

// Detached reports whether the session was evicted from its manager. Stores
// refuse to write a detached session so a stale copy never overwrites a newer
// one. Callers hold the session lock.
func (s *Session) Detached() bool { return s.detached }

// CloseNotices stops the session's pending notice dismissal, if any
func (s *Session) CloseNotices() {
	s.mu.Lock()
	notices := s.Notices
	s.mu.Unlock()
	if notices != nil {
		notices.Close()
	}
}
