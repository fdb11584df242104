// Package api provides the HTTP REST API for the trap grid game.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id": "..."} optional)
//   - GET /api/sessions - List sessions (sort=created|accessed, order, limit)
//   - GET /api/sessions/{id} - Session details
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game:
//   - GET /api/sessions/{id}/state - Board, phase, hint, error notice
//   - POST /api/sessions/{id}/deploy - {"row":0,"col":0}
//   - POST /api/sessions/{id}/action - {"kind":"move"|"trap"}
//   - POST /api/sessions/{id}/cell - {"row":0,"col":0}
//   - POST /api/sessions/{id}/drag - {"row":0,"col":0}, start of a drag
//   - GET /api/sessions/{id}/log - Paginated log (page, limit, order)
//
// Configuration:
//   - GET /api/configs, GET /api/configs/{name}, POST /api/configs
//
// Other:
//   - GET /api/health
//   - GET /ws?session={id} - WebSocket projection
//
// Errors are returned as {"error": "..."}. Unknown sessions and configs give
// 404, malformed bodies, off-board cells and unknown action kinds give 400.
// A click before choosing an action is a game-level error: the response is
// 200 with accepted=false and a notice.
package api
