// Package service provides the business logic layer for the trap grid game.
//
// The service package implements:
//   - Multi-session game management
//   - The three input commands plus drag start, serialised per service
//   - A per-session error surface for user errors
//   - Paginated access to the append-only game log
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages rules configuration loading and validation.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP and
// the terminal client) and the game engine. Every command returns a
// CommandResult carrying the events it produced and a snapshot of the state,
// so renderers never read engine internals.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.ActivateCell(ctx, info.ID, engine.Position{Row: 0, Col: 0})
//
// Error Surface:
//
// A user error (activating a cell before choosing move or trap) does not fail
// the call. It is shown on the session's ErrorSurface, returned as
// CommandResult.Notice, and dismissed automatically after the rules' error
// display duration.
package service
