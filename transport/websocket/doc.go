// Package websocket pushes trap grid projections to browser clients.
//
// Clients connect to /ws?session=<id> and receive JSON messages:
//
//	{"session_id":"ab12","event":"state_update","game_state":{...},"data":{"phase":...,"hint":...}}
//	{"session_id":"ab12","event":"notice","data":{"id":...,"message":"select move or trap first"}}
//	{"session_id":"ab12","event":"notice_cleared"}
//	{"session_id":"ab12","event":"game_events","data":[{"kind":"agent_moved","message":...}]}
//
// Hub owns the subscriber map on its Run goroutine; every other method
// talks to it over channels. Slow clients whose buffers fill are dropped.
package websocket
