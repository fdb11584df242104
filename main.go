// Command trapgrid runs the trap grid game.
//
// It supports three modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket and an /mcp endpoint
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "play" opens a session in the terminal
//
// Flags control host/port, config and session storage, debug logging and
// optional ngrok tunneling for external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/trapgrid/api"
	"github.com/wricardo/mcp-training/trapgrid/game/config"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
	"github.com/wricardo/mcp-training/trapgrid/game/session"
	"github.com/wricardo/mcp-training/trapgrid/logging"
	"github.com/wricardo/mcp-training/trapgrid/transport/mcp"
	"github.com/wricardo/mcp-training/trapgrid/transport/websocket"
	"github.com/wricardo/mcp-training/trapgrid/ui/terminal"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Trap Grid Game Server"
)

const (
	storeFile   = "file"
	storeSQLite = "sqlite"

	sessionMaxAge   = 24 * time.Hour
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
)

// options is the resolved flag set shared by every mode
type options struct {
	host        string
	port        int
	configDir   string
	sessionsDir string
	store       string
	dbPath      string
	debug       bool
	ngrok       bool
	ngrokAuth   string
	ngrokDomain string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.host, o.port)
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		host:        cmd.String("host"),
		port:        cmd.Int("port"),
		configDir:   cmd.String("config-dir"),
		sessionsDir: cmd.String("sessions-dir"),
		store:       cmd.String("store"),
		dbPath:      cmd.String("db-path"),
		debug:       cmd.Bool("debug"),
		ngrok:       cmd.Bool("ngrok"),
		ngrokAuth:   cmd.String("ngrok-auth"),
		ngrokDomain: cmd.String("ngrok-domain"),
	}
}

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newCommand()
	app.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if err := logging.Init(cmd.Bool("debug")); err != nil {
			return ctx, fmt.Errorf("failed to initialize logging: %w", err)
		}
		switch {
		case envErr == nil:
			logging.Debug("Loaded environment variables from .env file", nil)
		case !os.IsNotExist(envErr):
			logging.Warn("Error loading .env file", envErr, nil)
		}
		return ctx, nil
	}

	err := app.Run(ctx, os.Args)
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app.Name, err)
		logging.Fatal("trapgrid stopped with an error", err, nil)
	}
}

// newCommand builds the CLI. Flags on the root command are inherited by
// every subcommand.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "trapgrid",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing rules configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory for session files (file store)", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "store", Value: storeFile, Usage: "Session store: file or sqlite", Sources: cli.EnvVars("SESSION_STORE")},
			&cli.StringFlag{Name: "db-path", Value: "trapgrid.db", Usage: "SQLite database path (sqlite store)", Sources: cli.EnvVars("DB_PATH")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runHTTPServer(ctx, optionsFrom(cmd))
		},
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runHTTPServer(ctx, optionsFrom(cmd))
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runStdioMCPWithInternalServer(ctx, optionsFrom(cmd))
				},
			},
			{
				Name:  "play",
				Usage: "Play a session in the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "Resume this session instead of creating one"},
					&cli.StringFlag{Name: "config", Usage: "Rules configuration for a new session"},
					&cli.StringFlag{Name: "log-file", Value: "trapgrid-play.log", Usage: "Log destination while the terminal is in use"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTerminal(ctx, optionsFrom(cmd), cmd.String("session"), cmd.String("config"), cmd.String("log-file"))
				},
			},
		},
	}
}

// services bundles what every mode needs
type services struct {
	game     service.GameService
	sessions *session.Manager
	store    session.SessionPersistence
	close    func() error
}

// initializeServices wires the config manager, the selected session store,
// the session manager and the game service.
func initializeServices(opts options, serviceOpts ...service.Option) (*services, error) {
	configManager, err := config.NewManager(opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	svc := &services{close: func() error { return nil }}
	switch opts.store {
	case storeSQLite:
		store, err := session.OpenSQLitePersistence(opts.dbPath, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		svc.store = store
		svc.close = store.Close
	case storeFile, "":
		store, err := session.NewFilePersistence(opts.sessionsDir, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		svc.store = store
	default:
		return nil, fmt.Errorf("unknown session store %q", opts.store)
	}

	svc.sessions = session.NewManagerWithPersistence(svc.store)
	if err := svc.sessions.LoadPersistedSessions(); err != nil {
		logging.Warn("Failed to load persisted sessions", err, nil)
	}

	svc.game = service.NewGameService(svc.sessions, configManager, serviceOpts...)
	return svc, nil
}

// startMaintenance runs the background routines until ctx ends
func (s *services) startMaintenance(ctx context.Context, opts options) {
	go sessionCleanupRoutine(ctx, s.sessions)
	if opts.store != storeSQLite {
		go filesystemSyncRoutine(ctx, s.sessions, s.store)
	}
}

// shutdown saves every in-memory session and releases the store
func (s *services) shutdown() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		logging.Warn("Some sessions were not saved", err, nil)
	}
	if err := s.close(); err != nil {
		logging.Warn("Failed to close session store", err, nil)
	}
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp endpoint.
// If ngrok is enabled it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	svc, err := initializeServices(opts, service.WithNoticeListener(hub.BroadcastNotice))
	if err != nil {
		return err
	}
	defer svc.shutdown()
	svc.startMaintenance(ctx, opts)

	addr := opts.addr()
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(svc.game, hub))
	mainRouter.Handle("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Info("HTTP server listening", logging.Fields{
			"addr":      addr,
			"api":       fmt.Sprintf("http://%s/api", addr),
			"websocket": fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp":       fmt.Sprintf("http://%s/mcp", addr),
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if opts.ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, opts, mainRouter)
		}()
	}

	select {
	case <-ctx.Done():
		logging.Info("Shutting down", nil)
	case err = <-serveErr:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logging.Warn("HTTP server shutdown error", shutdownErr, nil)
	}

	wg.Wait()
	logging.Info("Server stopped", nil)
	return err
}

// mcpHandler answers single JSON-RPC messages posted to /mcp
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// runNgrok serves handler through an ngrok tunnel until ctx ends
func runNgrok(ctx context.Context, opts options, handler http.Handler) {
	if opts.ngrokAuth == "" {
		logging.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)", nil, nil)
		return
	}

	tunnel := ngrokConfig.HTTPEndpoint()
	if opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.ngrokDomain))
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.ngrokAuth))
	if err != nil {
		logging.Error("Failed to start ngrok tunnel", err, nil)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			logging.Warn("Failed to close ngrok tunnel", err, nil)
		}
	}()

	url := tun.URL()
	logging.Info("Ngrok tunnel established", logging.Fields{
		"url":       url,
		"api":       url + "/api",
		"websocket": url + "/ws?session=<session_id>",
		"mcp":       url + "/mcp",
	})

	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logging.Warn("Ngrok server error", err, nil)
	}
	logging.Info("Ngrok tunnel closed", nil)
}

// sessionCleanupRoutine periodically evicts sessions that have not been
// accessed within sessionMaxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				logging.Info("Cleaned up expired sessions", logging.Fields{"count": removed})
			}
		}
	}
}

// filesystemSyncRoutine drops sessions from memory when their files are
// deleted on disk.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, store session.SessionPersistence) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruneOrphanedSessions(manager, store); pruned > 0 {
				logging.Info("Filesystem sync pruned orphaned sessions", logging.Fields{"count": pruned})
			}
		}
	}
}

func pruneOrphanedSessions(manager *session.Manager, store session.SessionPersistence) int {
	if store == nil {
		return 0
	}

	pruned := 0
	for _, sess := range manager.List() {
		if store.Exists(sess.ID) {
			continue
		}
		if err := manager.Evict(sess.ID); err == nil {
			pruned++
			logging.Debug("Pruned session from memory (file deleted)", logging.Fields{"session_id": sess.ID})
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses an
// external API at host:port when one answers; otherwise it starts an
// internal HTTP API on a random loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, opts options) error {
	externalURL := fmt.Sprintf("http://%s", opts.addr())
	baseURL := externalURL

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logging.Info("External API server found, using it for MCP", logging.Fields{"url": externalURL})
	} else {
		if err == nil {
			resp.Body.Close()
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		hub := websocket.NewHub()
		go hub.Run(ctx)

		svc, err := initializeServices(opts, service.WithNoticeListener(hub.BroadcastNotice))
		if err != nil {
			return err
		}
		defer svc.shutdown()
		svc.startMaintenance(ctx, opts)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		httpServer := &http.Server{Handler: api.NewServer(svc.game, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Internal HTTP server error", err, nil)
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		logging.Info("Started internal HTTP server for MCP stdio", logging.Fields{"url": baseURL})
	}

	mcpClient := mcp.NewClient(baseURL)
	logging.Info("MCP stdio server ready", logging.Fields{"api": baseURL})

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runTerminal plays one session in the terminal. Logs go to logFile so
// they do not draw over the board.
func runTerminal(ctx context.Context, opts options, sessionID, configName, logFile string) error {
	if err := logging.Init(opts.debug, logFile); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	var app *terminal.App
	svc, err := initializeServices(opts, service.WithNoticeListener(func(id string, notice *service.Notice) {
		if app != nil {
			app.NoticeChanged(id, notice)
		}
	}))
	if err != nil {
		return err
	}
	defer svc.shutdown()

	info, err := openSession(ctx, svc.game, sessionID, configName)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}

	app = terminal.NewApp(screen, svc.game, info.ID)
	if err := app.Run(ctx); err != nil {
		return err
	}

	fmt.Printf("Session %s saved. Resume with: trapgrid play --session %s\n", info.ID, info.ID)
	return nil
}

// openSession resumes sessionID when given, otherwise creates a session
func openSession(ctx context.Context, game service.GameService, sessionID, configName string) (*service.SessionInfo, error) {
	if sessionID != "" {
		info, err := game.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, err)
		}
		return info, nil
	}
	return game.CreateSession(ctx, configName)
}
