// Command analyze prints quick, human-readable summaries of persisted session
// files: turn and phase, agent positions, a trap heat map and trap density.
// It also flags states that would fail to load.
//
// Usage: analyze [sessions-dir]
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/game/session"
)

// Summary is the analysis of one session file
type Summary struct {
	ID           string
	ConfigName   string
	Rules        *engine.Rules
	RulesStored  bool
	State        *engine.GameState
	Phase        engine.Phase
	Traps        int
	Capacity     int
	Density      float64
	Hottest      engine.Position
	HottestCount int
	LogEntries   int
	Problem      error
}

func main() {
	dir := "sessions"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		fmt.Printf("Error listing %s: %v\n", dir, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No session files in %s\n", dir)
		return
	}

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		summary, err := analyzeFile(file)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printSummary(os.Stdout, summary)
	}
}

func analyzeFile(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var persisted session.PersistedSessionData
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return analyze(&persisted), nil
}

func analyze(data *session.PersistedSessionData) *Summary {
	s := &Summary{
		ID:          data.ID,
		ConfigName:  data.ConfigName,
		Rules:       data.Rules,
		RulesStored: data.Rules != nil,
		State:       data.GameState,
		LogEntries:  len(data.Log),
	}
	if s.Rules == nil {
		s.Rules = engine.DefaultRules()
	}
	if s.State == nil {
		s.Problem = fmt.Errorf("no game state")
		return s
	}

	s.Phase = s.State.Phase()
	s.Problem = engine.ValidateState(s.State, s.Rules)

	for pos, n := range s.State.TrapCounts() {
		s.Traps += n
		if n > s.HottestCount || (n == s.HottestCount && pos.Index(s.Rules.BoardSize) < s.Hottest.Index(s.Rules.BoardSize)) {
			s.Hottest, s.HottestCount = pos, n
		}
	}
	s.Capacity = s.Rules.BoardSize * s.Rules.BoardSize * s.Rules.MaxTrapsPerCell
	if s.Capacity > 0 {
		s.Density = float64(s.Traps) / float64(s.Capacity)
	}
	return s
}

func printSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "Session: %s\n", s.ID)
	fmt.Fprintf(w, "Config: %s", s.ConfigName)
	if !s.RulesStored {
		fmt.Fprint(w, " (rules not stored, assuming classic)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Board: %d x %d, %d agents, %d traps per cell\n",
		s.Rules.BoardSize, s.Rules.BoardSize, s.Rules.MaxAgents, s.Rules.MaxTrapsPerCell)
	fmt.Fprintf(w, "Log entries: %d\n", s.LogEntries)

	if s.State == nil {
		fmt.Fprintf(w, "⚠️  CRITICAL: %v\n", s.Problem)
		return
	}

	fmt.Fprintf(w, "Turn: %d  Phase: %s\n", s.State.Turn, s.Phase)
	for _, a := range s.State.Agents {
		fmt.Fprintf(w, "  A%d at %s\n", a.ID, a.Position)
	}

	fmt.Fprintf(w, "Traps: %d of %d (%.1f%% density)\n", s.Traps, s.Capacity, s.Density*100)
	if s.HottestCount > 0 {
		fmt.Fprintf(w, "Most trapped cell: %s with %d\n", s.Hottest, s.HottestCount)
	}
	fmt.Fprint(w, heatMap(s.State, s.Rules.BoardSize))

	if s.Problem != nil {
		fmt.Fprintf(w, "⚠️  WARNING: state would not load: %v\n", s.Problem)
	} else {
		fmt.Fprintln(w, "✅ State is valid")
	}
}

// heatMap draws trap counts per cell, '.' for none, with agents marked '*'
func heatMap(state *engine.GameState, size int) string {
	counts := state.TrapCounts()
	var b strings.Builder
	for row := 0; row < size; row++ {
		b.WriteString("  ")
		for col := 0; col < size; col++ {
			pos := engine.Position{Row: row, Col: col}
			mark := " "
			if state.FirstAgentAt(pos) >= 0 {
				mark = "*"
			}
			if n := counts[pos]; n > 0 {
				fmt.Fprintf(&b, "%d%s ", n, mark)
			} else {
				fmt.Fprintf(&b, ".%s ", mark)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
