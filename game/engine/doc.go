// Package engine provides the turn machine for the trap grid game.
//
// Players deploy agents onto a small square board, then take turns either
// moving an agent or placing a trap on a cell orthogonally adjacent to one:
//   - Deployment: each activated cell receives the next agent until the
//     agent cap is reached, which starts turn 1
//   - Action choice: the player picks move or trap
//   - Selection: the player activates a cell holding an agent
//   - Resolution: the player activates an adjacent target; the turn ends
//
// Core Types:
//
// GameState is the owned game value. Its transition methods take the Rules
// explicitly and return the Events they produced instead of touching any
// presentation layer. The Engine interface, implemented by GameEngine, wraps
// a state with its rules and an append-only log of those events.
//
// Usage:
//
//	rules, err := engine.LoadRules("configs/classic.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(rules)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	events, err := gameEngine.ActivateCell(engine.Position{Row: 0, Col: 0})
//	if engine.IsUserError(err) {
//		// show "select move or trap first" to the player
//	}
//
// Rejections:
//
// Only activating a cell before choosing an action is reported, through
// ErrSelectActionFirst. Non-adjacent targets, deployment past the cap and
// empty-cell selections are ignored silently. A trap aimed at a full cell
// produces a trap_rejected event and the turn does not advance.
package engine
