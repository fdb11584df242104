// Package terminal is a tcell client for one game session. The renderer
// draws the board, the move and trap controls, the hint, the error banner
// and the tail of the log. App turns keys and mouse gestures into
// service.GameService commands: a click activates a cell, a press on one
// cell released on another is a drag.
package terminal
