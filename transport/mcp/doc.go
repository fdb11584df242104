// Package mcp exposes the trap grid game to AI agents over the Model Context
// Protocol.
//
// Client builds an mcp-go server whose tools are thin proxies to the REST
// API, so an MCP session sees exactly what HTTP and WebSocket clients see.
// Tool results are plain text: a rendered board, the hint line and any
// error notice.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - game_state, game_log
//   - deploy_agent, choose_action, activate_cell, drag_agent
//   - list_configs, game_instructions, describe_cell
//
// Coordinates are 0-based. Numeric arguments may arrive as JSON numbers or
// strings and are coerced with spf13/cast.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
