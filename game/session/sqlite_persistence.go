package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
)

// sessionRecord is the game_sessions row. Structured parts are stored as JSON text.
type sessionRecord struct {
	ID             string `gorm:"primaryKey;size:32"`
	ConfigName     string `gorm:"size:128"`
	CreatedAt      time.Time
	LastAccessedAt time.Time `gorm:"index"`
	Rules          string    `gorm:"type:text"`
	GameState      string    `gorm:"type:text"`
	Log            string    `gorm:"type:text"`
}

func (sessionRecord) TableName() string {
	return "game_sessions"
}

// SQLitePersistence implements SessionPersistence on a SQLite database via gorm
type SQLitePersistence struct {
	db            *gorm.DB
	configManager service.ConfigManager
}

// OpenSQLitePersistence opens (or creates) the database and migrates the schema
func OpenSQLitePersistence(dataSourceName string, configManager service.ConfigManager) (*SQLitePersistence, error) {
	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	return NewSQLitePersistence(db, configManager)
}

// NewSQLitePersistence wraps an open database
func NewSQLitePersistence(db *gorm.DB, configManager service.ConfigManager) (*SQLitePersistence, error) {
	// SQLite allows one writer; a single connection queues saves instead of
	// failing them with "database is locked"
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access session database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}
	return &SQLitePersistence{db: db, configManager: configManager}, nil
}

// Save upserts a session row
func (sp *SQLitePersistence) Save(session *service.Session) error {
	data, unlock, err := snapshot(session)
	if err != nil {
		return err
	}
	defer unlock()

	rules, err := json.Marshal(data.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	state, err := json.Marshal(data.GameState)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}
	log, err := json.Marshal(data.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	record := sessionRecord{
		ID:             strings.ToLower(data.ID),
		ConfigName:     data.ConfigName,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		Rules:          string(rules),
		GameState:      string(state),
		Log:            string(log),
	}

	return sp.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
}

// Load retrieves a session row by ID
func (sp *SQLitePersistence) Load(id string) (*service.Session, error) {
	var record sessionRecord
	if err := sp.db.Where("id = ?", strings.ToLower(id)).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	data := PersistedSessionData{
		ID:             record.ID,
		ConfigName:     record.ConfigName,
		CreatedAt:      record.CreatedAt,
		LastAccessedAt: record.LastAccessedAt,
	}

	if record.Rules != "" && record.Rules != "null" {
		var rules engine.Rules
		if err := json.Unmarshal([]byte(record.Rules), &rules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
		}
		data.Rules = &rules
	}
	if record.GameState != "" {
		var state engine.GameState
		if err := json.Unmarshal([]byte(record.GameState), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
		}
		data.GameState = &state
	}
	if record.Log != "" {
		if err := json.Unmarshal([]byte(record.Log), &data.Log); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log: %w", err)
		}
	}

	return restore(&data, sp.configManager)
}

// Delete removes a session row
func (sp *SQLitePersistence) Delete(id string) error {
	res := sp.db.Where("id = ?", strings.ToLower(id)).Delete(&sessionRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all stored session IDs
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	var ids []string
	if err := sp.db.Model(&sessionRecord{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Exists checks if a session row exists
func (sp *SQLitePersistence) Exists(id string) bool {
	var count int64
	if err := sp.db.Model(&sessionRecord{}).Where("id = ?", strings.ToLower(id)).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// Close releases the underlying database handle
func (sp *SQLitePersistence) Close() error {
	sqlDB, err := sp.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
