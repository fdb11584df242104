package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions  map[string]*service.Session
	saveCalls int
	saveErr   error

	// evictOnTouch drops a session from memory when it is touched, the way an
	// expiry sweep can while a command is running
	evictOnTouch bool
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id, configID string, rules *engine.Rules) (*service.Session, error) {
	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}

	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	eng, err := engine.NewEngine(rules)
	if err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:             id,
		ConfigID:       configID,
		Engine:         eng,
		Rules:          rules,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}

	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	session, exists := m.sessions[id]
	if !exists {
		return nil, service.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionManager) GetOrCreate(id, configID string, rules *engine.Rules) (*service.Session, error) {
	if session, exists := m.sessions[id]; exists {
		return session, nil
	}
	return m.Create(id, configID, rules)
}

func (m *MockSessionManager) List() []*service.Session {
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return service.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	session, exists := m.sessions[id]
	if !exists {
		return service.ErrSessionNotFound
	}
	session.Lock()
	session.LastAccessedAt = time.Now()
	session.Unlock()
	if m.evictOnTouch {
		delete(m.sessions, id)
	}
	return nil
}

func (m *MockSessionManager) Readmit(session *service.Session) error {
	if _, exists := m.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MockSessionManager) Save(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return service.ErrSessionNotFound
	}
	m.saveCalls++
	return m.saveErr
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.Rules
}

func NewMockConfigManager() *MockConfigManager {
	fast := engine.DefaultRules()
	fast.Name = "fast"
	fast.Description = "Short error display for tests"
	fast.ErrorDisplayMs = 100

	small := engine.DefaultRules()
	small.Name = "small"
	small.Description = "Two agents, one trap per cell"
	small.MaxAgents = 2
	small.MaxTrapsPerCell = 1

	return &MockConfigManager{
		configs: map[string]*engine.Rules{
			"classic": engine.DefaultRules(),
			"fast":    fast,
			"small":   small,
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.Rules, error) {
	rules, ok := m.configs[name]
	if !ok {
		return nil, service.ErrConfigNotFound
	}
	return rules, nil
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	var out []*service.ConfigInfo
	for id, rules := range m.configs {
		out = append(out, &service.ConfigInfo{
			Filename:        id + ".json",
			ConfigID:        id,
			Name:            rules.Name,
			Description:     rules.Description,
			BoardSize:       rules.BoardSize,
			MaxAgents:       rules.MaxAgents,
			MaxTrapsPerCell: rules.MaxTrapsPerCell,
		})
	}
	return out, nil
}

func (m *MockConfigManager) GetDefault() *engine.Rules {
	return m.configs["classic"]
}

func (m *MockConfigManager) DefaultID() string {
	return "classic"
}

func (m *MockConfigManager) SaveConfig(name string, rules *engine.Rules) error {
	if err := engine.ValidateRules(rules); err != nil {
		return err
	}
	m.configs[name] = rules
	return nil
}

func newTestService(opts ...service.Option) (service.GameService, *MockSessionManager) {
	sessions := NewMockSessionManager()
	return service.NewGameService(sessions, NewMockConfigManager(), opts...), sessions
}

func createDeployedSession(t *testing.T, svc service.GameService, configName string) string {
	t.Helper()
	ctx := context.Background()
	info, err := svc.CreateSession(ctx, configName)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	for col := 0; col < info.Rules.MaxAgents; col++ {
		if _, err := svc.DeployAgent(ctx, info.ID, engine.Position{Row: 0, Col: col}); err != nil {
			t.Fatalf("Failed to deploy: %v", err)
		}
	}
	return info.ID
}

func TestGameService_CreateSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if info.ConfigName != "classic" {
		t.Errorf("Expected default config classic, got %s", info.ConfigName)
	}
	if info.Phase != engine.PhaseDeployment {
		t.Errorf("Expected deployment phase, got %s", info.Phase)
	}

	info, err = svc.CreateSession(ctx, "small")
	if err != nil {
		t.Fatalf("Failed to create session with config: %v", err)
	}
	if info.ConfigName != "small" || info.Rules.MaxAgents != 2 {
		t.Errorf("Unexpected session info: %+v", info)
	}
}

func TestGameService_CreateSession_UnknownConfig(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateSession(context.Background(), "nope")
	if !errors.Is(err, service.ErrConfigNotFound) {
		t.Fatalf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestGameService_SessionNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("GetSession: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.ActivateCell(ctx, "missing", engine.Position{}); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("ActivateCell: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.GetGameState(ctx, "missing"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("GetGameState: expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.DeleteSession(ctx, "missing"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("DeleteSession: expected ErrSessionNotFound, got %v", err)
	}
}

func TestGameService_DeploymentAndMove(t *testing.T) {
	svc, sessions := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "")

	if sessions.saveCalls != 4 {
		t.Errorf("Expected 4 auto-saves during deployment, got %d", sessions.saveCalls)
	}

	res, err := svc.ChooseAction(ctx, id, engine.ActionMove)
	if err != nil || !res.Accepted {
		t.Fatalf("ChooseAction failed: res=%+v err=%v", res, err)
	}
	if res.Hint != "CLICK AN AGENT CELL TO MOVE" {
		t.Errorf("Unexpected hint: %s", res.Hint)
	}

	res, err = svc.ActivateCell(ctx, id, engine.Position{Row: 0, Col: 0})
	if err != nil || res.Phase != engine.PhaseAwaitingTarget {
		t.Fatalf("Select failed: res=%+v err=%v", res, err)
	}

	res, err = svc.ActivateCell(ctx, id, engine.Position{Row: 1, Col: 0})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Accepted || len(res.Events) != 2 {
		t.Fatalf("Expected move and turn events, got %+v", res.Events)
	}
	if res.GameState.Turn != 2 {
		t.Errorf("Expected turn 2, got %d", res.GameState.Turn)
	}
	if res.Notice != nil {
		t.Errorf("Expected no notice, got %+v", res.Notice)
	}
}

func TestGameService_SilentRejection(t *testing.T) {
	svc, sessions := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "")
	svc.ChooseAction(ctx, id, engine.ActionMove)
	svc.ActivateCell(ctx, id, engine.Position{Row: 0, Col: 0})
	saves := sessions.saveCalls

	res, err := svc.ActivateCell(ctx, id, engine.Position{Row: 2, Col: 2})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Accepted || len(res.Events) != 0 || res.Notice != nil {
		t.Errorf("Expected silent rejection, got %+v", res)
	}
	if sessions.saveCalls != saves {
		t.Error("Expected no save for a rejected command")
	}
}

func TestGameService_UserErrorRaisesNotice(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []*service.Notice
	)
	listener := func(sessionID string, n *service.Notice) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, n)
	}

	svc, _ := newTestService(service.WithNoticeListener(listener))
	ctx := context.Background()
	id := createDeployedSession(t, svc, "fast")

	res, err := svc.ActivateCell(ctx, id, engine.Position{Row: 0, Col: 0})
	if err != nil {
		t.Fatalf("User error must not fail the call: %v", err)
	}
	if res.Accepted {
		t.Error("Expected command not accepted")
	}
	if res.Notice == nil || res.Notice.Message != "select move or trap first" {
		t.Fatalf("Expected notice, got %+v", res.Notice)
	}
	if res.GameState.Turn != 1 || res.GameState.Selection != nil {
		t.Errorf("Expected unchanged state, got %+v", res.GameState)
	}

	view, err := svc.GetGameState(ctx, id)
	if err != nil {
		t.Fatalf("GetGameState failed: %v", err)
	}
	if view.Notice == nil || view.Notice.ID != res.Notice.ID {
		t.Errorf("Expected state view to carry the notice, got %+v", view.Notice)
	}

	// fast rules dismiss after 100ms
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, _ = svc.GetGameState(ctx, id)
		if view.Notice == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if view.Notice != nil {
		t.Fatal("Expected notice to be dismissed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 || changes[0] == nil || changes[1] != nil {
		t.Errorf("Expected show then clear notifications, got %v", changes)
	}
}

func TestGameService_InvalidInputErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "")

	if _, err := svc.ChooseAction(ctx, id, "jump"); !errors.Is(err, engine.ErrInvalidAction) {
		t.Errorf("Expected ErrInvalidAction, got %v", err)
	}
	if _, err := svc.ActivateCell(ctx, id, engine.Position{Row: 7, Col: 0}); !errors.Is(err, engine.ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition, got %v", err)
	}
}

func TestGameService_BeginDrag(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "")

	res, err := svc.BeginDrag(ctx, id, engine.Position{Row: 0, Col: 2})
	if err != nil {
		t.Fatalf("BeginDrag failed: %v", err)
	}
	if res.GameState.PendingAction != engine.ActionMove || res.GameState.Selection == nil {
		t.Fatalf("Expected move pending with selection, got %+v", res.GameState)
	}

	res, err = svc.ActivateCell(ctx, id, engine.Position{Row: 1, Col: 2})
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if res.GameState.Agents[2].Position != (engine.Position{Row: 1, Col: 2}) {
		t.Errorf("Expected A3 at (2,3), got %v", res.GameState.Agents[2].Position)
	}
}

func TestGameService_ResultIsSnapshot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "")

	res, _ := svc.ChooseAction(ctx, id, engine.ActionTrap)
	res.GameState.Agents[0].Position = engine.Position{Row: 3, Col: 3}

	view, _ := svc.GetGameState(ctx, id)
	if view.GameState.Agents[0].Position != (engine.Position{Row: 0, Col: 0}) {
		t.Error("Mutating a result must not change the session")
	}
}

func TestGameService_TrapCountsInView(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "small")

	svc.ChooseAction(ctx, id, engine.ActionTrap)
	svc.ActivateCell(ctx, id, engine.Position{Row: 0, Col: 0})
	svc.ActivateCell(ctx, id, engine.Position{Row: 1, Col: 0})

	// small rules allow one trap per cell
	svc.ChooseAction(ctx, id, engine.ActionTrap)
	svc.ActivateCell(ctx, id, engine.Position{Row: 0, Col: 0})
	res, err := svc.ActivateCell(ctx, id, engine.Position{Row: 1, Col: 0})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Kind != engine.EventTrapRejected {
		t.Errorf("Expected trap rejection, got %+v", res.Events)
	}
	if !res.Accepted {
		t.Error("A logged rejection counts as accepted")
	}

	view, _ := svc.GetGameState(ctx, id)
	if view.TrapCount[4] != 1 {
		t.Errorf("Expected one trap at index 4, got %v", view.TrapCount)
	}
}

func TestGameService_GetLog(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "") // 5 entries

	for i := 0; i < 5; i++ {
		svc.ChooseAction(ctx, id, engine.ActionMove) // 5 more
	}

	tests := []struct {
		name      string
		opts      service.LogOptions
		wantLen   int
		wantFirst int
		wantNext  bool
	}{
		{"defaults newest first", service.LogOptions{}, 10, 10, false},
		{"ascending page 1", service.LogOptions{Page: 1, Limit: 4, Order: "asc"}, 4, 1, true},
		{"ascending page 3", service.LogOptions{Page: 3, Limit: 4, Order: "asc"}, 2, 9, false},
		{"descending page 2", service.LogOptions{Page: 2, Limit: 4, Order: "desc"}, 4, 6, true},
		{"past the end", service.LogOptions{Page: 9, Limit: 4}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.GetLog(ctx, id, tt.opts)
			if err != nil {
				t.Fatalf("GetLog failed: %v", err)
			}
			if resp.TotalEntries != 10 {
				t.Errorf("Expected 10 total entries, got %d", resp.TotalEntries)
			}
			if len(resp.Entries) != tt.wantLen {
				t.Fatalf("Expected %d entries, got %d", tt.wantLen, len(resp.Entries))
			}
			if tt.wantLen > 0 && resp.Entries[0].Seq != tt.wantFirst {
				t.Errorf("Expected first seq %d, got %d", tt.wantFirst, resp.Entries[0].Seq)
			}
			if resp.HasNext != tt.wantNext {
				t.Errorf("Expected HasNext=%v, got %v", tt.wantNext, resp.HasNext)
			}
		})
	}
}

func TestGameService_ListAndDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx, "")
	svc.CreateSession(ctx, "small")

	list, err := svc.ListSessions(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("Expected 2 sessions, got %d (err=%v)", len(list), err)
	}

	if err := svc.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	list, _ = svc.ListSessions(ctx)
	if len(list) != 1 {
		t.Errorf("Expected 1 session after delete, got %d", len(list))
	}
}

func TestGameService_Configs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	configs, err := svc.ListConfigs(ctx)
	if err != nil || len(configs) != 3 {
		t.Fatalf("Expected 3 configs, got %d (err=%v)", len(configs), err)
	}

	rules := engine.DefaultRules()
	rules.Name = "wide"
	rules.BoardSize = 6
	if err := svc.SaveConfig(ctx, "wide", rules); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := svc.LoadConfig(ctx, "wide")
	if err != nil || loaded.BoardSize != 6 {
		t.Errorf("Expected saved config, got %+v (err=%v)", loaded, err)
	}
}

func TestGameService_CommandSurvivesEviction(t *testing.T) {
	svc, sessions := newTestService()
	ctx := context.Background()
	id := createDeployedSession(t, svc, "")

	sessions.evictOnTouch = true
	res, err := svc.ChooseAction(ctx, id, engine.ActionTrap)
	if err != nil || !res.Accepted {
		t.Fatalf("ChooseAction failed: res=%+v err=%v", res, err)
	}
	sessions.evictOnTouch = false

	if _, ok := sessions.sessions[id]; !ok {
		t.Fatal("Expected the evicted session to be readmitted")
	}
	if sessions.saveCalls != 5 {
		t.Errorf("Expected the readmitted session to be saved, got %d saves", sessions.saveCalls)
	}

	view, err := svc.GetGameState(ctx, id)
	if err != nil {
		t.Fatalf("GetGameState failed: %v", err)
	}
	if view.GameState.PendingAction != engine.ActionTrap {
		t.Errorf("Expected the trap action to survive eviction, got %s", view.GameState.PendingAction)
	}
}
