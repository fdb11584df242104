package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
	"github.com/wricardo/mcp-training/trapgrid/logging"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")

	// errSessionDetached is returned when saving a session that was evicted.
	// It matches ErrSessionNotFound so callers can readmit the session.
	errSessionDetached = fmt.Errorf("evicted: %w", ErrSessionNotFound)
)

const maxSessionIDLength = 32

// Manager handles game session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	loads       singleflight.Group
	mu          sync.RWMutex
	now         func() time.Time
}

// NewManager creates a new in-memory session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*service.Session),
		now:      time.Now,
	}
}

// NewManagerWithPersistence creates a new session manager backed by persistence
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	m := NewManager()
	m.persistence = persistence
	return m
}

// Create creates a new session with the given ID and rules. An empty ID
// gets a random four character one.
func (m *Manager) Create(id, configID string, rules *engine.Rules) (*service.Session, error) {
	if err := validateSessionID(id); err != nil {
		return nil, err
	}

	eng, err := engine.NewEngine(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	m.mu.Lock()
	if id == "" {
		id = m.uniqueSessionID()
	}
	key := strings.ToLower(id)
	if _, exists := m.sessions[key]; exists || (m.persistence != nil && m.persistence.Exists(key)) {
		m.mu.Unlock()
		return nil, ErrSessionAlreadyExists
	}

	now := m.now()
	session := &service.Session{
		ID:             key,
		ConfigID:       configID,
		Engine:         eng,
		Rules:          eng.GetRules(),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.sessions[key] = session
	m.mu.Unlock()

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			// Creation still succeeds; the next command retries the write
			logging.Warn("Failed to persist new session", err, logging.Fields{"session_id": key})
		}
	}

	logging.Info("Session created", logging.Fields{"session_id": key, "config": configID})
	return session, nil
}

// Get retrieves a session by ID (case-insensitive), loading it from
// persistence when it is not in memory.
func (m *Manager) Get(id string) (*service.Session, error) {
	key := strings.ToLower(id)

	m.mu.RLock()
	session, exists := m.sessions[key]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	if m.persistence == nil || key == "" {
		return nil, ErrSessionNotFound
	}

	// Concurrent misses for one ID share a single load
	v, err, _ := m.loads.Do(key, func() (interface{}, error) {
		m.mu.RLock()
		cached, ok := m.sessions[key]
		m.mu.RUnlock()
		if ok {
			return cached, nil
		}

		if !m.persistence.Exists(key) {
			return nil, ErrSessionNotFound
		}
		loaded, err := m.persistence.Load(key)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if cached, ok := m.sessions[key]; ok {
			return cached, nil
		}
		m.sessions[key] = loaded
		logging.Debug("Session loaded from storage", logging.Fields{"session_id": key})
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*service.Session), nil
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, configID string, rules *engine.Rules) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, configID, rules)
	}

	return nil, err
}

// List returns all in-memory sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and storage
func (m *Manager) Delete(id string) error {
	key := strings.ToLower(id)

	m.mu.Lock()
	session, inMemory := m.sessions[key]
	if inMemory {
		m.detach(key, session)
	}
	m.mu.Unlock()

	if inMemory {
		session.CloseNotices()
	}

	if m.persistence != nil && m.persistence.Exists(key) {
		if err := m.persistence.Delete(key); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// Evict removes a session from memory only. It stays in storage.
func (m *Manager) Evict(id string) error {
	key := strings.ToLower(id)

	m.mu.Lock()
	session, exists := m.sessions[key]
	if exists {
		m.detach(key, session)
	}
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	session.CloseNotices()
	return nil
}

// detach removes a session from memory and marks it so pending writes of it
// are dropped. Caller holds m.mu.
func (m *Manager) detach(key string, session *service.Session) {
	session.Lock()
	session.SetDetached(true)
	session.Unlock()
	delete(m.sessions, key)
}

// Readmit puts an evicted session back in memory. It fails if another copy
// of the session was loaded in the meantime.
func (m *Manager) Readmit(session *service.Session) error {
	key := strings.ToLower(session.ID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.sessions[key]; ok {
		if cached == session {
			return nil
		}
		return ErrSessionAlreadyExists
	}
	session.Lock()
	session.SetDetached(false)
	session.Unlock()
	m.sessions[key] = session
	logging.Debug("Session readmitted", logging.Fields{"session_id": key})
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	now := m.now()
	session.Lock()
	session.LastAccessedAt = now
	session.Unlock()
	return nil
}

// Save writes a specific session to persistence
func (m *Manager) Save(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	if m.persistence == nil {
		return nil
	}
	return m.persistence.Save(session)
}

// CleanupExpiredSessions evicts sessions that haven't been accessed within
// maxAge. Each one is saved first and reloads on the next access; a session
// that fails to save stays in memory.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)
	expired := func(session *service.Session) bool {
		session.Lock()
		defer session.Unlock()
		return session.LastAccessedAt.Before(cutoff)
	}

	var candidates []*service.Session
	for _, session := range m.List() {
		if expired(session) {
			candidates = append(candidates, session)
		}
	}

	removed := 0
	for _, session := range candidates {
		if m.persistence != nil {
			if err := m.persistence.Save(session); err != nil {
				logging.Warn("Failed to persist expired session", err, logging.Fields{"session_id": session.ID})
				continue
			}
		}

		// A command may have touched the session while it was being saved
		key := strings.ToLower(session.ID)
		m.mu.Lock()
		evict := m.sessions[key] == session && expired(session)
		if evict {
			m.detach(key, session)
		}
		m.mu.Unlock()

		if evict {
			session.CloseNotices()
			removed++
		}
	}

	return removed
}

// Count returns the number of in-memory sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	loadedCount := 0
	for _, id := range sessionIDs {
		key := strings.ToLower(id)

		m.mu.RLock()
		_, exists := m.sessions[key]
		m.mu.RUnlock()
		if exists {
			continue
		}

		session, err := m.persistence.Load(key)
		if err != nil {
			logging.Warn("Failed to load persisted session", err, logging.Fields{"session_id": id})
			continue
		}

		m.mu.Lock()
		if _, exists := m.sessions[key]; !exists {
			m.sessions[key] = session
			loadedCount++
		}
		m.mu.Unlock()
	}

	if loadedCount > 0 {
		logging.Info("Loaded persisted sessions", logging.Fields{"count": loadedCount})
	}

	return nil
}

// SaveAllSessions writes all in-memory sessions to persistence and returns
// every failure combined.
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessions := m.List()

	var errs error
	for _, session := range sessions {
		if err := m.persistence.Save(session); err != nil {
			if errors.Is(err, errSessionDetached) {
				// Evicted after listing; whoever evicted it owns the final write
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", session.ID, err))
		}
	}

	if errs != nil {
		logging.Warn("Failed to save sessions", errs, logging.Fields{
			"failed": len(multierr.Errors(errs)),
			"total":  len(sessions),
		})
	}
	return errs
}

// uniqueSessionID returns a random 4-character ID not already in use.
// Caller holds m.mu.
func (m *Manager) uniqueSessionID() string {
	for {
		id := generateSessionID()
		if _, exists := m.sessions[id]; exists {
			continue
		}
		if m.persistence != nil && m.persistence.Exists(id) {
			continue
		}
		return id
	}
}

func generateSessionID() string {
	bytes := make([]byte, 2)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// validateSessionID accepts empty IDs (generated) and short alphanumeric IDs
// with dashes or underscores.
func validateSessionID(id string) error {
	if len(id) > maxSessionIDLength {
		return ErrInvalidSessionID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrInvalidSessionID
		}
	}
	return nil
}
