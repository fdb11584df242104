package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/logging"
)

const (
	defaultLogPageSize = 20
	maxLogPageSize     = 100
)

// NoticeListener is told about error surface changes of any session
type NoticeListener func(sessionID string, notice *Notice)

// Option configures the game service
type Option func(*gameServiceImpl)

// WithNoticeListener registers a listener for notices and their dismissal
func WithNoticeListener(fn NoticeListener) Option {
	return func(s *gameServiceImpl) {
		s.onNotice = fn
	}
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	onNotice NoticeListener
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rules    *engine.Rules
		configID = configName
		err      error
	)
	if configName != "" {
		rules, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s': %w. Available configs: %v", configName, err, configIDs)
				}
				return nil, fmt.Errorf("config '%s': %w. Use /api/configs to list available configurations", configName, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		rules = s.configs.GetDefault()
		configID = s.configs.DefaultID()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", configID, rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logging.Info("session created", logging.Fields{"session_id": sess.ID, "config_id": configID})
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.touch(sessionID)
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}

	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.CloseNotices()
	}

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	return nil
}

// DeployAgent places an agent during deployment
func (s *gameServiceImpl) DeployAgent(ctx context.Context, sessionID string, cell engine.Position) (*CommandResult, error) {
	return s.runCommand(sessionID, "deploy", func(e *engine.GameEngine) ([]engine.Event, error) {
		return e.DeployAgent(cell)
	})
}

// ChooseAction sets the pending action kind
func (s *gameServiceImpl) ChooseAction(ctx context.Context, sessionID string, kind engine.ActionKind) (*CommandResult, error) {
	return s.runCommand(sessionID, "action", func(e *engine.GameEngine) ([]engine.Event, error) {
		return e.ChooseAction(kind)
	})
}

// ActivateCell handles a click or drag release on a cell
func (s *gameServiceImpl) ActivateCell(ctx context.Context, sessionID string, cell engine.Position) (*CommandResult, error) {
	return s.runCommand(sessionID, "cell", func(e *engine.GameEngine) ([]engine.Event, error) {
		return e.ActivateCell(cell)
	})
}

// BeginDrag handles the start of a drag gesture
func (s *gameServiceImpl) BeginDrag(ctx context.Context, sessionID string, origin engine.Position) (*CommandResult, error) {
	return s.runCommand(sessionID, "drag", func(e *engine.GameEngine) ([]engine.Event, error) {
		return e.BeginDrag(origin)
	})
}

// runCommand executes one input command to completion. User errors are routed
// to the session's error surface and do not fail the call.
func (s *gameServiceImpl) runCommand(sessionID, name string, cmd func(e *engine.GameEngine) ([]engine.Event, error)) (*CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.touch(sessionID)

	result, err := s.apply(sess, name, cmd)
	if err != nil {
		return nil, err
	}

	// Auto-save session after state changes
	if len(result.Events) > 0 {
		s.persist(sess, name)
	}
	return result, nil
}

// apply runs cmd against the session engine under the session lock
func (s *gameServiceImpl) apply(sess *Session, name string, cmd func(e *engine.GameEngine) ([]engine.Event, error)) (*CommandResult, error) {
	sess.Lock()
	defer sess.Unlock()

	events, err := cmd(sess.Engine)
	if events == nil {
		events = []engine.Event{}
	}

	result := &CommandResult{
		Accepted: len(events) > 0,
		Events:   events,
	}

	if err != nil {
		if !engine.IsUserError(err) {
			return nil, err
		}
		result.Accepted = false
		result.Notice = s.surface(sess).Show(err.Error())
		logging.Debug("user error", logging.Fields{"session_id": sess.ID, "command": name, "message": err.Error()})
	}

	for _, ev := range events {
		logging.Debug("game event", logging.Fields{
			"session_id": sess.ID,
			"command":    name,
			"kind":       string(ev.Kind),
			"message":    ev.Message,
			"turn":       ev.Turn,
		})
	}

	result.GameState = sess.Engine.GetState().Clone()
	result.Phase = sess.Engine.Phase()
	result.Hint = sess.Engine.Hint()
	return result, nil
}

// GetGameState retrieves the current game state projection
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*StateView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.touch(sessionID)

	sess.Lock()
	defer sess.Unlock()

	state := sess.Engine.GetState()
	view := &StateView{
		SessionID: sess.ID,
		GameState: state.Clone(),
		Rules:     sess.Rules,
		Phase:     sess.Engine.Phase(),
		Hint:      sess.Engine.Hint(),
	}
	if sess.Notices != nil {
		view.Notice = sess.Notices.Current()
	}
	if counts := state.TrapCounts(); len(counts) > 0 {
		view.TrapCount = make(map[int]int, len(counts))
		for pos, n := range counts {
			view.TrapCount[pos.Index(sess.Rules.BoardSize)] = n
		}
	}
	return view, nil
}

// GetLog returns a page of the game log
func (s *gameServiceImpl) GetLog(ctx context.Context, sessionID string, opts LogOptions) (*LogResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	sess.Lock()
	entries := append([]engine.LogEntry(nil), sess.Engine.GetLog()...)
	sess.Unlock()
	total := len(entries)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLogPageSize
	}
	if opts.Limit > maxLogPageSize {
		opts.Limit = maxLogPageSize
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	page := []engine.LogEntry{}
	if start < total {
		if opts.Order == "desc" {
			// Most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				page = append(page, entries[i])
			}
		} else {
			page = append(page, entries[start:end]...)
		}
	}

	return &LogResponse{
		Entries:      page,
		TotalEntries: total,
		Page:         opts.Page,
		PageSize:     opts.Limit,
		TotalPages:   totalPages,
		HasNext:      opts.Page < totalPages,
		HasPrevious:  opts.Page > 1,
	}, nil
}

// ListConfigs returns available rules configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific rules configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.Rules, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a rules configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, rules *engine.Rules) error {
	return s.configs.SaveConfig(configName, rules)
}

// persist saves a session after an accepted command. A session evicted while
// the command ran is put back first so the command is not lost.
func (s *gameServiceImpl) persist(sess *Session, command string) {
	err := s.sessions.Save(sess.ID)
	if errors.Is(err, ErrSessionNotFound) {
		logging.Debug("session evicted during command", logging.Fields{"session_id": sess.ID, "command": command})
		if err = s.sessions.Readmit(sess); err == nil {
			err = s.sessions.Save(sess.ID)
		}
	}
	if err != nil {
		logging.Warn("failed to persist session", err, logging.Fields{"session_id": sess.ID, "command": command})
	}
}

func (s *gameServiceImpl) touch(sessionID string) {
	if err := s.sessions.UpdateLastAccessed(sessionID); err != nil {
		logging.Debug("failed to update last access", logging.Fields{"session_id": sessionID, "error": err.Error()})
	}
}

// surface returns the session's error surface, creating it on first use.
// Callers hold the session lock.
func (s *gameServiceImpl) surface(sess *Session) *ErrorSurface {
	if sess.Notices == nil {
		id := sess.ID
		listener := s.onNotice
		sess.Notices = NewErrorSurface(sess.Rules.ErrorDisplayDuration(), func(n *Notice) {
			if listener != nil {
				listener(id, n)
			}
		})
	}
	return sess.Notices
}

func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	sess.Lock()
	defer sess.Unlock()

	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState().Clone(),
		Rules:          sess.Rules,
		Phase:          sess.Engine.Phase(),
	}
}
