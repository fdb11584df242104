package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Trap Grid",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Trap Grid - MCP Interface

A turn-based game on a square board. Deploy your agents, then each turn
either move an agent one step or lay a trap next to it.

All coordinates are 0-based {row, col}. Rows grow downward.

TYPICAL FLOW:
1. create_session
2. deploy_agent until every agent is on the board (turn becomes 1)
3. choose_action "move" or "trap"
4. activate_cell on a cell holding an agent (selects it)
5. activate_cell on an orthogonally adjacent cell (resolves and ends the turn)

drag_agent is a shortcut for steps 3 and 4 in move mode.
Use game_instructions for the full rules.`),
	)

	c.registerTools()
}

func sessionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func cellProps(description string) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionProp(),
		"row": map[string]interface{}{
			"type":        "integer",
			"description": description + " row (0-based)",
		},
		"col": map[string]interface{}{
			"type":        "integer",
			"description": description + " column (0-based)",
		},
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List active game sessions, most recently used first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum sessions to return (optional)",
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Show the board, phase, hint and any active error notice",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "deploy_agent",
		Description: "Place the next agent on a cell during deployment",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: cellProps("Target"),
			Required:   []string{"session_id", "row", "col"},
		},
	}, c.handleDeployAgent)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "choose_action",
		Description: "Choose the action for this turn: move or trap",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"kind": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(engine.ActionMove), string(engine.ActionTrap)},
					"description": "Action kind",
				},
			},
			Required: []string{"session_id", "kind"},
		},
	}, c.handleChooseAction)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "activate_cell",
		Description: "Click a cell: deploys during deployment, otherwise selects an agent cell or resolves the pending action on an adjacent cell",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: cellProps("Cell"),
			Required:   []string{"session_id", "row", "col"},
		},
	}, c.handleActivateCell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "drag_agent",
		Description: "Drag an agent from one cell to an adjacent cell. Switches to move mode.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"from_row":   map[string]interface{}{"type": "integer", "description": "Origin row (0-based)"},
				"from_col":   map[string]interface{}{"type": "integer", "description": "Origin column (0-based)"},
				"to_row":     map[string]interface{}{"type": "integer", "description": "Target row (0-based)"},
				"to_col":     map[string]interface{}{"type": "integer", "description": "Target column (0-based)"},
			},
			Required: []string{"session_id", "from_row", "from_col", "to_row", "to_col"},
		},
	}, c.handleDragAgent)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_log",
		Description: "Show the game log, newest first by default",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"page":       map[string]interface{}{"type": "integer", "description": "Page number (default 1)"},
				"limit":      map[string]interface{}{"type": "integer", "description": "Entries per page (default 20)"},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Sort order (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameLog)

	// Configuration and help
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available rules configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the full game rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe one cell: agents, trap count and whether it can be targeted from the selection",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: cellProps("Cell"),
			Required:   []string{"session_id", "row", "col"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs a REST call and decodes the JSON response into result
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Argument helpers

func stringArg(args map[string]interface{}, key string) string {
	return strings.TrimSpace(cast.ToString(args[key]))
}

func requireSession(args map[string]interface{}) (string, error) {
	id := stringArg(args, "session_id")
	if id == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return url.PathEscape(id), nil
}

func intArg(args map[string]interface{}, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %v", key, err)
	}
	return n, nil
}

func cellArg(args map[string]interface{}, rowKey, colKey string) (engine.Position, error) {
	row, err := intArg(args, rowKey)
	if err != nil {
		return engine.Position{}, err
	}
	col, err := intArg(args, colKey)
	if err != nil {
		return engine.Position{}, err
	}
	return engine.Position{Row: row, Col: col}, nil
}

// Handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	body := map[string]string{}
	if configID := stringArg(args, "config_id"); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path := "/api/sessions"
	if limit := cast.ToInt(args["limit"]); limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var response struct {
		Count    int                    `json:"count"`
		Total    int                    `json:"total"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Sessions) == 0 {
		return mcp.NewToolResultText("No active sessions. Use create_session to start one."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sessions (%d of %d):\n", response.Count, response.Total)
	for _, s := range response.Sessions {
		turn := 0
		if s.GameState != nil {
			turn = s.GameState.Turn
		}
		fmt.Fprintf(&b, "- %s  config=%s  phase=%s  turn=%d  last used %s\n",
			s.ID, s.ConfigName, s.Phase, turn, s.LastAccessedAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSession(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+sessionID, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSession(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view service.StateView
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+sessionID+"/state", nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStateView(&view)), nil
}

func (c *Client) handleDeployAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.cellCommand(ctx, request, "deploy")
}

func (c *Client) handleActivateCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.cellCommand(ctx, request, "cell")
}

func (c *Client) cellCommand(ctx context.Context, request mcp.CallToolRequest, endpoint string) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cell, err := cellArg(args, "row", "col")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/sessions/%s/%s", sessionID, endpoint), cell, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleChooseAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := strings.ToLower(stringArg(args, "kind"))
	if kind == "" {
		return mcp.NewToolResultError("kind is required (move or trap)"), nil
	}

	var result service.CommandResult
	body := map[string]string{"kind": kind}
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/action", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleDragAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := cellArg(args, "from_row", "from_col")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := cellArg(args, "to_row", "to_col")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var start service.CommandResult
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/drag", from, &start); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !start.Grabbed(from) {
		// Dropping now would resolve whatever cell is already selected
		return mcp.NewToolResultText(fmt.Sprintf("Drag not started: no agent could be picked up at {row:%d col:%d}.\n\n%s",
			from.Row, from.Col, formatCommandResult(&start))), nil
	}

	var drop service.CommandResult
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/cell", to, &drop); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Report both halves of the gesture
	drop.Events = append(start.Events, drop.Events...)
	drop.Accepted = drop.Accepted || start.Accepted
	return mcp.NewToolResultText(formatCommandResult(&drop)), nil
}

func (c *Client) handleGameLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := url.Values{}
	if page := cast.ToInt(args["page"]); page > 0 {
		params.Set("page", cast.ToString(page))
	}
	if limit := cast.ToInt(args["limit"]); limit > 0 {
		params.Set("limit", cast.ToString(limit))
	}
	if order := stringArg(args, "order"); order == "asc" || order == "desc" {
		params.Set("order", order)
	}
	path := "/api/sessions/" + sessionID + "/log"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page service.LogResponse
	if err := c.apiCall(ctx, "GET", path, nil, &page); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLog(&page)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []*service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(configs) == 0 {
		return mcp.NewToolResultText("No config files found; sessions use the built-in classic rules."), nil
	}

	var b strings.Builder
	b.WriteString("Available configs:\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "- %s: %s (%dx%d board, %d agents, %d traps per cell)\n",
			cfg.ConfigID, cfg.Description, cfg.BoardSize, cfg.BoardSize, cfg.MaxAgents, cfg.MaxTrapsPerCell)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cell, err := cellArg(args, "row", "col")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view service.StateView
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+sessionID+"/state", nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(describeCell(&view, cell)), nil
}

const instructions = `TRAP GRID RULES

BOARD
A square board (4x4 by default). Cells are addressed {row, col}, 0-based.

DEPLOYMENT (turn 0)
Click any cell to place the next agent (A1, A2, ...). Agents may share a cell.
When the last agent is placed the game moves to turn 1.

TURNS
1. Choose an action: move or trap. Clicking a cell before choosing is an error
   and shows "select move or trap first".
2. Click a cell that holds an agent to select it. Empty cells are ignored.
3. Click a cell orthogonally adjacent to the selection (no diagonals).
   - move: the first agent placed in the selected cell steps there.
   - trap: a trap is laid there, unless the cell is already at its trap limit;
     then the attempt is logged and the turn does not end.
   Clicking any other cell does nothing.
A resolved action clears the selection and the action choice, and the turn
counter goes up by one.

You may switch between move and trap at any time; the selection is kept.

DRAG
Dragging from an agent cell selects it in move mode. Releasing on an adjacent
cell moves the agent.

There is no win condition; the game continues indefinitely.`
