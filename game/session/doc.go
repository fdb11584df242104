// Package session stores trap grid game sessions.
//
// Manager keeps live sessions in memory keyed by lowercased ID. Each session
// owns a GameEngine built from the rules it was created with. When a
// SessionPersistence is attached, sessions are written on create and on
// request, and a miss in memory falls back to storage. Concurrent misses for
// the same ID share one load.
//
// Two stores are provided:
//
//	fp, _ := session.NewFilePersistence("sessions", configs)      // <id>.json files
//	sp, _ := session.OpenSQLitePersistence("sessions.db", configs) // game_sessions table
//
//	manager := session.NewManagerWithPersistence(fp)
//	sess, err := manager.Create("", "classic", rules)
//
// Stored sessions carry a snapshot of their rules, so editing a config file
// does not change games already in progress. Records without one fall back
// to the named config.
//
// CleanupExpiredSessions evicts idle sessions from memory only; persisted
// copies reload on the next Get.
package session
