package terminal

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
	"github.com/wricardo/mcp-training/trapgrid/logging"
)

const logLines = 12

// quitSignal is posted as interrupt data when the context ends
type quitSignal struct{}

// App plays one session in a terminal. It owns the screen for the
// lifetime of Run.
type App struct {
	screen    tcell.Screen
	renderer  *Renderer
	svc       service.GameService
	sessionID string

	cursor    engine.Position
	pressed   bool
	pressCell *engine.Position
}

// NewApp binds an initialised screen to a session
func NewApp(screen tcell.Screen, svc service.GameService, sessionID string) *App {
	return &App{
		screen:    screen,
		renderer:  NewRenderer(screen),
		svc:       svc,
		sessionID: sessionID,
	}
}

// NoticeChanged wakes the event loop so the error banner appears or
// disappears. It has the shape of service.NoticeListener.
func (a *App) NoticeChanged(sessionID string, _ *service.Notice) {
	if sessionID != a.sessionID {
		return
	}
	_ = a.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Run draws the board and handles input until the player quits or ctx is
// cancelled. The screen is finalised before returning.
func (a *App) Run(ctx context.Context) error {
	defer a.screen.Fini()
	a.screen.EnableMouse()

	stop := context.AfterFunc(ctx, func() {
		_ = a.screen.PostEvent(tcell.NewEventInterrupt(quitSignal{}))
	})
	defer stop()

	if err := a.draw(ctx); err != nil {
		return err
	}

	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if a.handleEvent(ctx, ev) {
			return nil
		}
		if err := a.draw(ctx); err != nil {
			return err
		}
	}
}

// handleEvent applies one terminal event and reports whether to quit
func (a *App) handleEvent(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
	case *tcell.EventInterrupt:
		if _, ok := ev.Data().(quitSignal); ok {
			return true
		}
	case *tcell.EventKey:
		return a.handleKey(ctx, ev)
	case *tcell.EventMouse:
		a.handleMouse(ctx, ev)
	}
	return false
}

func (a *App) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	size := a.boardSize(ctx)
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		a.moveCursor(-1, 0, size)
	case tcell.KeyDown:
		a.moveCursor(1, 0, size)
	case tcell.KeyLeft:
		a.moveCursor(0, -1, size)
	case tcell.KeyRight:
		a.moveCursor(0, 1, size)
	case tcell.KeyEnter:
		a.command("activate", func() (*service.CommandResult, error) {
			return a.svc.ActivateCell(ctx, a.sessionID, a.cursor)
		})
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return true
		case 'm', 'M':
			a.choose(ctx, engine.ActionMove)
		case 't', 'T':
			a.choose(ctx, engine.ActionTrap)
		case ' ':
			a.command("activate", func() (*service.CommandResult, error) {
				return a.svc.ActivateCell(ctx, a.sessionID, a.cursor)
			})
		}
	}
	return false
}

// handleMouse turns press and release pairs into clicks or drags. A release
// on the press cell is a click; a release elsewhere is a drag.
func (a *App) handleMouse(ctx context.Context, ev *tcell.EventMouse) {
	x, y := ev.Position()
	size := a.boardSize(ctx)
	down := ev.Buttons()&tcell.Button1 != 0

	switch {
	case down && !a.pressed:
		a.pressed = true
		a.pressCell = nil
		if kind, ok := controlAt(x, y, size); ok {
			a.choose(ctx, kind)
			return
		}
		if pos, ok := cellAt(x, y, size); ok {
			a.pressCell = &pos
			a.cursor = pos
		}

	case !down && a.pressed:
		a.pressed = false
		origin := a.pressCell
		a.pressCell = nil
		if origin == nil {
			return
		}
		release, ok := cellAt(x, y, size)
		if !ok {
			return
		}
		a.cursor = release
		if release != *origin && !a.grab(ctx, *origin) {
			return
		}
		a.command("activate", func() (*service.CommandResult, error) {
			return a.svc.ActivateCell(ctx, a.sessionID, release)
		})
	}
}

// grab starts a drag at origin and reports whether the drop may resolve
func (a *App) grab(ctx context.Context, origin engine.Position) bool {
	res, err := a.svc.BeginDrag(ctx, a.sessionID, origin)
	if err != nil {
		logging.Warn("Terminal command failed", err, logging.Fields{
			"session_id": a.sessionID,
			"command":    "drag",
		})
		return false
	}
	return res.Grabbed(origin)
}

func (a *App) choose(ctx context.Context, kind engine.ActionKind) {
	a.command("choose", func() (*service.CommandResult, error) {
		return a.svc.ChooseAction(ctx, a.sessionID, kind)
	})
}

// command runs a service call. User errors arrive as notices and are drawn
// from the state view, so only caller errors are logged here.
func (a *App) command(name string, fn func() (*service.CommandResult, error)) {
	if _, err := fn(); err != nil {
		logging.Warn("Terminal command failed", err, logging.Fields{
			"session_id": a.sessionID,
			"command":    name,
		})
	}
}

func (a *App) moveCursor(dRow, dCol, size int) {
	next := engine.Position{Row: a.cursor.Row + dRow, Col: a.cursor.Col + dCol}
	if next.InBounds(size) {
		a.cursor = next
	}
}

func (a *App) boardSize(ctx context.Context) int {
	view, err := a.svc.GetGameState(ctx, a.sessionID)
	if err != nil {
		return engine.DefaultBoardSize
	}
	return boardSize(view)
}

func (a *App) draw(ctx context.Context) error {
	view, err := a.svc.GetGameState(ctx, a.sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", a.sessionID, err)
	}

	frame := Frame{View: view, Cursor: a.cursor, DragFrom: a.pressCell}
	if page, err := a.svc.GetLog(ctx, a.sessionID, service.LogOptions{Limit: logLines, Order: "desc"}); err == nil {
		frame.Log = page.Entries
	}

	a.renderer.Draw(frame)
	return nil
}
